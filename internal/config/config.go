package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every runtime setting of the service.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Store     StoreConfig
	Interview InterviewConfig
	Jobs      JobsConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	interview, err := loadInterviewConfig()
	if err != nil {
		return nil, err
	}

	jobs, err := loadJobsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Store:     loadStoreConfig(),
		Interview: interview,
		Jobs:      jobs,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the generative backend.
type AIConfig struct {
	Provider    string // "ark" or "gemini"
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	GeminiKey   string
	GeminiModel string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the selected provider has usable credentials.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case "gemini":
		return c.GeminiKey != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// NewChatModel builds the Ark chat model used by the eino chain.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials missing: provide ARK_API_KEY + ARK_MODEL or AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", "ark"))
	if provider != "ark" && provider != "gemini" {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value: %q", provider)
	}

	return AIConfig{
		Provider:    provider,
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		GeminiKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel: getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
	DSN    string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Driver: getEnvOrDefault("STORE_DRIVER", "sqlite"),
		DSN:    strings.TrimSpace(os.Getenv("STORE_DSN")),
	}
}

// InterviewConfig holds session defaults.
type InterviewConfig struct {
	DefaultQuestionLimit int
	MaxQuestionLimit     int
	OpeningLine          string
}

func loadInterviewConfig() (InterviewConfig, error) {
	defaultLimit := 5
	if override, err := parseOptionalIntEnv("INTERVIEW_QUESTION_LIMIT"); err != nil {
		return InterviewConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return InterviewConfig{}, fmt.Errorf("INTERVIEW_QUESTION_LIMIT must be positive, got %d", *override)
		}
		defaultLimit = *override
	}

	maxLimit := 20
	if override, err := parseOptionalIntEnv("INTERVIEW_MAX_QUESTION_LIMIT"); err != nil {
		return InterviewConfig{}, err
	} else if override != nil {
		if *override < defaultLimit {
			return InterviewConfig{}, fmt.Errorf("INTERVIEW_MAX_QUESTION_LIMIT must be >= %d, got %d", defaultLimit, *override)
		}
		maxLimit = *override
	}

	return InterviewConfig{
		DefaultQuestionLimit: defaultLimit,
		MaxQuestionLimit:     maxLimit,
		OpeningLine:          getEnvOrDefault("INTERVIEW_OPENING_LINE", "I have your resume. Let's begin. Tell me about yourself."),
	}, nil
}

// JobsConfig drives the scheduled report exporter and session sweeper.
type JobsConfig struct {
	ExportEnabled  bool
	ExportSchedule string
	ExportDir      string
	SweepSchedule  string
	SessionIdleTTL time.Duration
}

func loadJobsConfig() (JobsConfig, error) {
	exportEnabled, err := parseBoolEnv("REPORT_EXPORT_ENABLED", false)
	if err != nil {
		return JobsConfig{}, err
	}

	ttl := 2 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("SESSION_IDLE_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return JobsConfig{}, fmt.Errorf("invalid SESSION_IDLE_TTL value %q: %w", raw, err)
		}
		if parsed <= 0 {
			return JobsConfig{}, fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", parsed)
		}
		ttl = parsed
	}

	return JobsConfig{
		ExportEnabled:  exportEnabled,
		ExportSchedule: getEnvOrDefault("REPORT_EXPORT_SCHEDULE", "0 2 * * *"),
		ExportDir:      getEnvOrDefault("REPORT_EXPORT_DIR", "exports"),
		SweepSchedule:  getEnvOrDefault("SESSION_SWEEP_SCHEDULE", "*/30 * * * *"),
		SessionIdleTTL: ttl,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

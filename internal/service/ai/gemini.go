package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/prepdeck/backend/internal/config"
	"github.com/prepdeck/backend/internal/model/interview"
)

// GeminiGenerator runs question generation and evaluation against the
// Gemini API. Streamed chunks are adapted onto the same StreamReader the
// Ark chain produces so callers never see the provider difference.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	prompts     *PromptManager
	temperature *float64
}

// NewGeminiGenerator creates the Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, cfg config.AIConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	prompts, err := NewPromptManager()
	if err != nil {
		return nil, err
	}

	return &GeminiGenerator{
		client:      client,
		model:       cfg.GeminiModel,
		prompts:     prompts,
		temperature: cfg.Temperature,
	}, nil
}

// StreamAnswer streams the next interviewer turn for the given exchange.
func (g *GeminiGenerator) StreamAnswer(ctx context.Context, req AnswerRequest) (*schema.StreamReader[*schema.Message], error) {
	system, err := g.prompts.BuildInterviewerPrompt(InterviewerPromptData{
		Resume:         req.Resume,
		JobDescription: req.JobDescription,
		QuestionLimit:  req.QuestionLimit,
		FinalQuestion:  req.FinalQuestion,
	})
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := "user"
		if turn.Role == interview.RoleInterviewer {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Candidate}},
	})

	genCfg := g.generationConfig(system)

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer writer.Close()
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, genCfg) {
			if err != nil {
				writer.Send(nil, err)
				return
			}
			text, err := resp.Text()
			if err != nil || text == "" {
				continue
			}
			if closed := writer.Send(schema.AssistantMessage(text, nil), nil); closed {
				return
			}
		}
	}()

	return reader, nil
}

// generationConfig builds the per-request settings for one exchange.
func (g *GeminiGenerator) generationConfig(system string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       g.temperature,
	}
}

// GenerateFeedback produces the raw evaluation document in one round trip.
func (g *GeminiGenerator) GenerateFeedback(ctx context.Context, turns []interview.Turn) (string, error) {
	prompt, err := g.prompts.BuildFeedbackPrompt(turns)
	if err != nil {
		return "", err
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate evaluation: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("empty evaluation response")
	}

	text, err := result.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract evaluation text: %w", err)
	}
	return text, nil
}

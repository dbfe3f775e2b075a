package ai

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/prepdeck/backend/internal/model/interview"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// promptFile is the on-disk shape of a prompt template.
type promptFile struct {
	System string `yaml:"system"`
}

// PromptManager renders the interviewer and evaluation prompts from the
// embedded YAML templates.
type PromptManager struct {
	templates map[string]*template.Template
}

// InterviewerPromptData feeds the interviewer system prompt.
type InterviewerPromptData struct {
	Resume         string
	JobDescription string
	QuestionLimit  int
	FinalQuestion  bool
}

// NewPromptManager parses the embedded templates.
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{templates: make(map[string]*template.Template)}

	for _, name := range []string{"interviewer", "feedback"} {
		raw, err := templateFS.ReadFile("templates/" + name + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template %s: %w", name, err)
		}

		var file promptFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %s: %w", name, err)
		}

		tmpl, err := template.New(name).Parse(file.System)
		if err != nil {
			return nil, fmt.Errorf("failed to compile prompt template %s: %w", name, err)
		}
		pm.templates[name] = tmpl
	}

	return pm, nil
}

// BuildInterviewerPrompt renders the system prompt for question generation.
func (pm *PromptManager) BuildInterviewerPrompt(data InterviewerPromptData) (string, error) {
	return pm.render("interviewer", data)
}

// BuildFeedbackPrompt renders the evaluation prompt over the full transcript.
func (pm *PromptManager) BuildFeedbackPrompt(turns []interview.Turn) (string, error) {
	transcript := make([]map[string]string, 0, len(turns))
	for _, turn := range turns {
		transcript = append(transcript, map[string]string{
			"role":    turn.Role,
			"content": turn.Content,
		})
	}

	encoded, err := json.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("failed to encode transcript: %w", err)
	}

	return pm.render("feedback", map[string]string{"Transcript": string(encoded)})
}

func (pm *PromptManager) render(name string, data any) (string, error) {
	tmpl, ok := pm.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

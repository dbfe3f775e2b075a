package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/prepdeck/backend/internal/config"
	"github.com/prepdeck/backend/internal/model/interview"
)

// AnswerRequest carries everything the generator needs to produce one
// interviewer turn.
type AnswerRequest struct {
	Resume         string
	JobDescription string
	QuestionLimit  int
	// FinalQuestion asks the model to close out the interview after this
	// answer instead of asking another question.
	FinalQuestion bool
	// History is the ordered transcript up to but excluding the latest
	// candidate submission.
	History []interview.Turn
	// Candidate is the latest candidate submission.
	Candidate string
}

// Generator produces streamed interviewer answers and, at the end of a
// session, a single evaluation document.
type Generator interface {
	StreamAnswer(ctx context.Context, req AnswerRequest) (*schema.StreamReader[*schema.Message], error)
	GenerateFeedback(ctx context.Context, turns []interview.Turn) (string, error)
}

// NewGenerator builds the provider selected by configuration.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("ai provider %q has no usable credentials", cfg.Provider)
	}

	switch cfg.Provider {
	case "gemini":
		return NewGeminiGenerator(ctx, cfg)
	default:
		return NewArkGenerator(ctx, cfg)
	}
}

// historyMessages maps stored turns onto chat messages. Candidate turns
// become user messages, interviewer turns assistant messages.
func historyMessages(turns []interview.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case interview.RoleCandidate:
			history = append(history, schema.UserMessage(turn.Content))
		case interview.RoleInterviewer:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

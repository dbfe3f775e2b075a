package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/prepdeck/backend/internal/config"
	"github.com/prepdeck/backend/internal/model/interview"
)

// ArkGenerator runs question generation and evaluation through an Ark chat
// model behind an eino chain.
type ArkGenerator struct {
	chatModel model.ChatModel
	prompts   *PromptManager
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewArkGenerator creates the Ark-backed generator.
func NewArkGenerator(ctx context.Context, cfg config.AIConfig) (*ArkGenerator, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	prompts, err := NewPromptManager()
	if err != nil {
		return nil, err
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkGenerator{
		chatModel: chatModel,
		prompts:   prompts,
		chain:     runnable,
	}, nil
}

// StreamAnswer streams the next interviewer turn for the given exchange.
func (g *ArkGenerator) StreamAnswer(ctx context.Context, req AnswerRequest) (*schema.StreamReader[*schema.Message], error) {
	system, err := g.prompts.BuildInterviewerPrompt(InterviewerPromptData{
		Resume:         req.Resume,
		JobDescription: req.JobDescription,
		QuestionLimit:  req.QuestionLimit,
		FinalQuestion:  req.FinalQuestion,
	})
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"system":  system,
		"history": historyMessages(req.History),
		"query":   req.Candidate,
	}

	stream, err := g.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chain output: %w", err)
	}
	return stream, nil
}

// GenerateFeedback produces the raw evaluation document for a finished
// transcript in a single round trip.
func (g *ArkGenerator) GenerateFeedback(ctx context.Context, turns []interview.Turn) (string, error) {
	system, err := g.prompts.BuildFeedbackPrompt(turns)
	if err != nil {
		return "", err
	}

	input := map[string]any{
		"system":  system,
		"history": []*schema.Message(nil),
		"query":   "Produce the evaluation report now.",
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run evaluation chain: %w", err)
	}

	log.Printf("[ai] evaluation generated, length=%d", len(response.Content))
	return response.Content, nil
}

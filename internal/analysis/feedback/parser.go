// Package feedback parses the evaluation document returned by the
// generative backend. Models wrap the JSON payload in code fences or
// surrounding prose often enough that strict decoding is not an option;
// parsing here must never take the session down.
package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prepdeck/backend/internal/model/interview"
)

// Parse extracts the outermost JSON object from raw model output and
// decodes it into a feedback report.
func Parse(raw string) (interview.Feedback, error) {
	payload, err := extractObject(raw)
	if err != nil {
		return interview.Feedback{}, err
	}

	var fb interview.Feedback
	if err := json.Unmarshal([]byte(payload), &fb); err != nil {
		return interview.Feedback{}, fmt.Errorf("invalid evaluation payload: %w", err)
	}
	if fb.Summary == "" && fb.TechnicalScore == 0 && fb.CommunicationScore == 0 {
		return interview.Feedback{}, fmt.Errorf("evaluation payload missing expected fields")
	}
	return fb, nil
}

// Fallback is the deterministic report substituted when evaluation fails.
func Fallback(reason string) interview.Feedback {
	return interview.Feedback{
		TechnicalScore:     0,
		CommunicationScore: 0,
		Strengths:          nil,
		Weaknesses:         interview.StringSlice{"Evaluation could not be generated: " + reason},
		Summary:            "The evaluation service did not return a valid report for this interview.",
	}
}

// extractObject returns the text between the first '{' and its matching
// final '}', tolerating fences and prose around the payload.
func extractObject(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in evaluation output")
	}
	return trimmed[start : end+1], nil
}

package ai

import (
	"strings"
	"testing"

	"github.com/prepdeck/backend/internal/model/interview"
)

func TestBuildInterviewerPrompt(t *testing.T) {
	pm, err := NewPromptManager()
	if err != nil {
		t.Fatalf("NewPromptManager err: %v", err)
	}

	prompt, err := pm.BuildInterviewerPrompt(InterviewerPromptData{
		Resume:         "Five years of Go backend work.",
		JobDescription: "Platform engineer role.",
		QuestionLimit:  3,
	})
	if err != nil {
		t.Fatalf("BuildInterviewerPrompt err: %v", err)
	}

	if !strings.Contains(prompt, "Five years of Go backend work.") {
		t.Fatal("prompt must embed the resume text")
	}
	if !strings.Contains(prompt, "Platform engineer role.") {
		t.Fatal("prompt must embed the job description")
	}
	if !strings.Contains(prompt, "limit of 3 questions") {
		t.Fatalf("prompt must state the question limit: %s", prompt)
	}
	if strings.Contains(prompt, "LAST question") {
		t.Fatal("closing instruction must not appear before the final question")
	}
}

func TestBuildInterviewerPromptFinalQuestion(t *testing.T) {
	pm, err := NewPromptManager()
	if err != nil {
		t.Fatalf("NewPromptManager err: %v", err)
	}

	prompt, err := pm.BuildInterviewerPrompt(InterviewerPromptData{
		Resume:        "resume",
		QuestionLimit: 2,
		FinalQuestion: true,
	})
	if err != nil {
		t.Fatalf("BuildInterviewerPrompt err: %v", err)
	}

	if !strings.Contains(prompt, "LAST question") {
		t.Fatal("final question must trigger the closing instruction")
	}
}

func TestBuildInterviewerPromptOmitsEmptyJobDescription(t *testing.T) {
	pm, err := NewPromptManager()
	if err != nil {
		t.Fatalf("NewPromptManager err: %v", err)
	}

	prompt, err := pm.BuildInterviewerPrompt(InterviewerPromptData{
		Resume:        "resume",
		QuestionLimit: 5,
	})
	if err != nil {
		t.Fatalf("BuildInterviewerPrompt err: %v", err)
	}

	if strings.Contains(prompt, "job description") {
		t.Fatal("job description section must be omitted when empty")
	}
}

func TestBuildFeedbackPrompt(t *testing.T) {
	pm, err := NewPromptManager()
	if err != nil {
		t.Fatalf("NewPromptManager err: %v", err)
	}

	prompt, err := pm.BuildFeedbackPrompt([]interview.Turn{
		{Role: interview.RoleInterviewer, Content: "Tell me about yourself.", Seq: 0},
		{Role: interview.RoleCandidate, Content: "I build backends.", Seq: 1},
	})
	if err != nil {
		t.Fatalf("BuildFeedbackPrompt err: %v", err)
	}

	if !strings.Contains(prompt, `"role":"interviewer"`) {
		t.Fatalf("prompt must embed the transcript roles: %s", prompt)
	}
	if !strings.Contains(prompt, "I build backends.") {
		t.Fatal("prompt must embed the transcript content")
	}
	if !strings.Contains(prompt, "technicalScore") {
		t.Fatal("prompt must describe the expected report fields")
	}
}

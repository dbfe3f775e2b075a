package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/prepdeck/backend/internal/config"
	"github.com/prepdeck/backend/internal/model/interview"
	"github.com/prepdeck/backend/internal/model/resume"
	"github.com/prepdeck/backend/internal/service/ai"
)

type fakeStore struct {
	mu         sync.Mutex
	resumes    map[string]resume.Resume
	interviews map[string]*interview.Interview
	turns      map[string][]interview.Turn

	appendErr   error
	completeErr error
	completed   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		resumes:    make(map[string]resume.Resume),
		interviews: make(map[string]*interview.Interview),
		turns:      make(map[string][]interview.Turn),
	}
}

func (s *fakeStore) GetResume(ctx context.Context, id string) (resume.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resumes[id]
	if !ok {
		return resume.Resume{}, errors.New("not found")
	}
	return r, nil
}

func (s *fakeStore) CreateInterview(ctx context.Context, iv *interview.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if iv.ID == "" {
		iv.ID = fmt.Sprintf("iv-%d", len(s.interviews)+1)
	}
	s.interviews[iv.ID] = iv
	return nil
}

func (s *fakeStore) AppendTurn(ctx context.Context, interviewID, role, content string) (interview.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return interview.Turn{}, s.appendErr
	}
	turn := interview.Turn{
		ID:          fmt.Sprintf("turn-%s-%d", interviewID, len(s.turns[interviewID])),
		InterviewID: interviewID,
		Role:        role,
		Content:     content,
		Seq:         len(s.turns[interviewID]),
		CreatedAt:   time.Now(),
	}
	s.turns[interviewID] = append(s.turns[interviewID], turn)
	return turn, nil
}

func (s *fakeStore) CompleteInterview(ctx context.Context, interviewID string, fb interview.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed++
	if iv, ok := s.interviews[interviewID]; ok {
		iv.Status = interview.StatusCompleted
		iv.Feedback = &fb
	}
	return nil
}

func (s *fakeStore) storedTurns(interviewID string) []interview.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interview.Turn, len(s.turns[interviewID]))
	copy(out, s.turns[interviewID])
	return out
}

type fakeGenerator struct {
	mu       sync.Mutex
	answers  []string
	calls    int
	requests []ai.AnswerRequest

	streamErr   error
	feedbackRaw string
	feedbackErr error

	// When set, StreamAnswer signals started and waits for release before
	// emitting anything.
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) StreamAnswer(ctx context.Context, req ai.AnswerRequest) (*schema.StreamReader[*schema.Message], error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	answer := "answer"
	if len(g.answers) > 0 {
		answer = g.answers[g.calls%len(g.answers)]
	}
	g.calls++
	streamErr := g.streamErr
	started, release := g.started, g.release
	g.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](4)
	go func() {
		defer sw.Close()
		if started != nil {
			started <- struct{}{}
		}
		if release != nil {
			<-release
		}
		if streamErr != nil {
			sw.Send(nil, streamErr)
			return
		}
		// Two chunks so relay ordering is observable.
		half := len(answer) / 2
		sw.Send(schema.AssistantMessage(answer[:half], nil), nil)
		sw.Send(schema.AssistantMessage(answer[half:], nil), nil)
	}()
	return sr, nil
}

func (g *fakeGenerator) GenerateFeedback(ctx context.Context, turns []interview.Turn) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.feedbackErr != nil {
		return "", g.feedbackErr
	}
	if g.feedbackRaw != "" {
		return g.feedbackRaw, nil
	}
	return `{"technicalScore": 7, "communicationScore": 8, "strengths": ["clear"], "weaknesses": [], "summary": "Good round."}`, nil
}

type recordSink struct {
	mu        sync.Mutex
	fragments []string
	completes int
	fragErr   error
}

func (s *recordSink) Fragment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fragErr != nil {
		return s.fragErr
	}
	s.fragments = append(s.fragments, text)
	return nil
}

func (s *recordSink) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completes++
	return nil
}

func testConfig() config.InterviewConfig {
	return config.InterviewConfig{
		DefaultQuestionLimit: 5,
		MaxQuestionLimit:     20,
		OpeningLine:          "I have your resume. Let's begin. Tell me about yourself.",
	}
}

func newTestService(t *testing.T, gen ai.Generator) (*Service, *fakeStore, string) {
	t.Helper()
	st := newFakeStore()
	st.resumes["r1"] = resume.Resume{ID: "r1", TextContent: "Go backend engineer, five years."}
	return NewService(st, gen, testConfig()), st, "r1"
}

func TestOpenCreatesSessionWithOpeningTurn(t *testing.T) {
	svc, st, resumeID := newTestService(t, &fakeGenerator{})

	result, err := svc.Open(context.Background(), resumeID, "backend role", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if result.InterviewID == "" {
		t.Fatal("expected an interview id")
	}
	if result.QuestionLimit != 3 {
		t.Fatalf("unexpected limit: %d", result.QuestionLimit)
	}
	if !strings.Contains(result.Opening, "Tell me about yourself") {
		t.Fatalf("unexpected opening: %q", result.Opening)
	}

	turns := st.storedTurns(result.InterviewID)
	if len(turns) != 1 {
		t.Fatalf("expected one persisted turn, got %d", len(turns))
	}
	if turns[0].Role != interview.RoleInterviewer || turns[0].Seq != 0 {
		t.Fatalf("opening turn misplaced: role=%s seq=%d", turns[0].Role, turns[0].Seq)
	}

	status, ok := svc.Status(result.InterviewID)
	if !ok || status != interview.StatusActive {
		t.Fatalf("expected active session, got %q ok=%v", status, ok)
	}
}

func TestOpenDefaultsAndValidatesLimit(t *testing.T) {
	svc, _, resumeID := newTestService(t, &fakeGenerator{})

	result, err := svc.Open(context.Background(), resumeID, "", 0)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if result.QuestionLimit != 5 {
		t.Fatalf("zero limit must use the default, got %d", result.QuestionLimit)
	}

	if _, err := svc.Open(context.Background(), resumeID, "", -1); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := svc.Open(context.Background(), resumeID, "", 100); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit for oversized limit, got %v", err)
	}
}

func TestOpenRequiresKnownResume(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{})

	if _, err := svc.Open(context.Background(), "", "", 3); !errors.Is(err, ErrResumeRequired) {
		t.Fatalf("expected ErrResumeRequired, got %v", err)
	}
	if _, err := svc.Open(context.Background(), "missing", "", 3); !errors.Is(err, ErrResumeNotFound) {
		t.Fatalf("expected ErrResumeNotFound, got %v", err)
	}
}

func TestSubmitTurnRelaysFragmentsInOrder(t *testing.T) {
	gen := &fakeGenerator{answers: []string{"What is a goroutine?"}}
	svc, _, resumeID := newTestService(t, gen)

	result, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	sink := &recordSink{}
	turn, err := svc.SubmitTurn(context.Background(), result.InterviewID, "Hi, I am a backend engineer.", sink)
	if err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}

	if turn.Answer != "What is a goroutine?" {
		t.Fatalf("unexpected answer: %q", turn.Answer)
	}
	if turn.Completed {
		t.Fatal("first exchange must not complete a limit-3 interview")
	}
	if strings.Join(sink.fragments, "") != turn.Answer {
		t.Fatalf("fragments must reassemble the answer: %v", sink.fragments)
	}
	if sink.completes != 1 {
		t.Fatalf("expected exactly one completion signal, got %d", sink.completes)
	}
}

func TestInterviewCompletesAtQuestionLimit(t *testing.T) {
	gen := &fakeGenerator{answers: []string{"Question one?", "Question two?", "Thanks, we are done."}}
	svc, st, resumeID := newTestService(t, gen)

	result, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	var last TurnResult
	for i := 0; i < 3; i++ {
		last, err = svc.SubmitTurn(context.Background(), result.InterviewID, fmt.Sprintf("answer %d", i+1), NopSink{})
		if err != nil {
			t.Fatalf("SubmitTurn %d err: %v", i+1, err)
		}
		if i < 2 && last.Completed {
			t.Fatalf("interview completed early after submission %d", i+1)
		}
	}

	if !last.Completed {
		t.Fatal("third submission must complete a limit-3 interview")
	}
	if last.Feedback == nil {
		t.Fatal("completion must carry the evaluation report")
	}
	if last.Feedback.TechnicalScore != 7 {
		t.Fatalf("unexpected technical score: %d", last.Feedback.TechnicalScore)
	}
	if st.completed != 1 {
		t.Fatalf("completion must persist exactly once, got %d", st.completed)
	}

	// Final question flag must be raised on the last generation only.
	if gen.requests[0].FinalQuestion || gen.requests[1].FinalQuestion {
		t.Fatal("final question flag raised too early")
	}
	if !gen.requests[2].FinalQuestion {
		t.Fatal("final question flag missing on the last generation")
	}

	// Opening + 3 exchanges: strict alternation, gapless sequence.
	turns := st.storedTurns(result.InterviewID)
	if len(turns) != 7 {
		t.Fatalf("expected 7 persisted turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Seq != i {
			t.Fatalf("sequence gap at position %d: seq=%d", i, turn.Seq)
		}
		wantRole := interview.RoleInterviewer
		if i%2 == 1 {
			wantRole = interview.RoleCandidate
		}
		if turn.Role != wantRole {
			t.Fatalf("turn %d role=%s want %s", i, turn.Role, wantRole)
		}
	}

	// Further submissions are rejected.
	if _, err := svc.SubmitTurn(context.Background(), result.InterviewID, "one more", NopSink{}); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
}

func TestSubmitTurnRejectsConcurrentGeneration(t *testing.T) {
	gen := &fakeGenerator{
		answers: []string{"Slow question?"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc, _, resumeID := newTestService(t, gen)

	result, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.SubmitTurn(context.Background(), result.InterviewID, "first answer", NopSink{})
		firstDone <- err
	}()

	<-gen.started

	if _, err := svc.SubmitTurn(context.Background(), result.InterviewID, "second answer", NopSink{}); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	close(gen.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first submission err: %v", err)
	}

	// The guard clears once the generation finishes.
	if _, err := svc.SubmitTurn(context.Background(), result.InterviewID, "third answer", NopSink{}); err != nil {
		t.Fatalf("submission after release err: %v", err)
	}
}

func TestGenerationFailureKeepsSessionUsable(t *testing.T) {
	gen := &fakeGenerator{streamErr: errors.New("provider unavailable")}
	svc, st, resumeID := newTestService(t, gen)

	result, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	_, err = svc.SubmitTurn(context.Background(), result.InterviewID, "my answer", NopSink{})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	// Candidate turn stays persisted even though generation failed.
	turns := st.storedTurns(result.InterviewID)
	if len(turns) != 2 || turns[1].Role != interview.RoleCandidate {
		t.Fatalf("candidate turn must survive the failure: %v", turns)
	}

	status, ok := svc.Status(result.InterviewID)
	if !ok || status != interview.StatusActive {
		t.Fatalf("session must stay active after failure, got %q", status)
	}

	// Resubmission works once the provider recovers.
	gen.mu.Lock()
	gen.streamErr = nil
	gen.answers = []string{"Recovered question?"}
	gen.mu.Unlock()

	turn, err := svc.SubmitTurn(context.Background(), result.InterviewID, "retry answer", NopSink{})
	if err != nil {
		t.Fatalf("resubmission err: %v", err)
	}
	if turn.Answer != "Recovered question?" {
		t.Fatalf("unexpected answer after recovery: %q", turn.Answer)
	}
}

func TestSubmitTurnValidation(t *testing.T) {
	svc, _, resumeID := newTestService(t, &fakeGenerator{})

	result, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	if _, err := svc.SubmitTurn(context.Background(), result.InterviewID, "   ", NopSink{}); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
	if _, err := svc.SubmitTurn(context.Background(), "missing", "hello", NopSink{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitTurnWithoutGenerator(t *testing.T) {
	svc, _, resumeID := newTestService(t, nil)

	result, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	if _, err := svc.SubmitTurn(context.Background(), result.InterviewID, "hello", NopSink{}); !errors.Is(err, ErrGeneratorUnavailable) {
		t.Fatalf("expected ErrGeneratorUnavailable, got %v", err)
	}
}

func TestSinkFailureDoesNotAbortAccumulation(t *testing.T) {
	gen := &fakeGenerator{answers: []string{"Question despite a dead connection?"}}
	svc, st, resumeID := newTestService(t, gen)

	result, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	sink := &recordSink{fragErr: errors.New("connection closed")}
	turn, err := svc.SubmitTurn(context.Background(), result.InterviewID, "answer", sink)
	if err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}
	if turn.Answer != "Question despite a dead connection?" {
		t.Fatalf("answer must be accumulated despite sink failure: %q", turn.Answer)
	}

	turns := st.storedTurns(result.InterviewID)
	if len(turns) != 3 {
		t.Fatalf("both turns must persist despite sink failure, got %d", len(turns))
	}
}

func TestEvaluationFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{
		answers:     []string{"Only question?"},
		feedbackErr: errors.New("provider down"),
	}
	svc, _, resumeID := newTestService(t, gen)

	result, err := svc.Open(context.Background(), resumeID, "", 1)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	turn, err := svc.SubmitTurn(context.Background(), result.InterviewID, "answer", NopSink{})
	if err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}
	if !turn.Completed {
		t.Fatal("limit-1 interview must complete after one exchange")
	}
	if turn.Feedback == nil {
		t.Fatal("completion must still carry a report")
	}
	if turn.Feedback.TechnicalScore != 0 || turn.Feedback.CommunicationScore != 0 {
		t.Fatalf("fallback report must zero the scores: %+v", turn.Feedback)
	}
	if len(turn.Feedback.Weaknesses) == 0 {
		t.Fatal("fallback report must explain the failure")
	}
}

func TestEvaluationParseFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{
		answers:     []string{"Only question?"},
		feedbackRaw: "I think the candidate did fine overall.",
	}
	svc, _, resumeID := newTestService(t, gen)

	result, err := svc.Open(context.Background(), resumeID, "", 1)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	turn, err := svc.SubmitTurn(context.Background(), result.InterviewID, "answer", NopSink{})
	if err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}
	if turn.Feedback == nil || turn.Feedback.TechnicalScore != 0 {
		t.Fatalf("unparseable report must fall back: %+v", turn.Feedback)
	}
}

func TestEvictIdleBefore(t *testing.T) {
	gen := &fakeGenerator{
		answers: []string{"Q?"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc, _, resumeID := newTestService(t, gen)

	idle, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	busy, err := svc.Open(context.Background(), resumeID, "", 3)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	busyDone := make(chan error, 1)
	go func() {
		_, err := svc.SubmitTurn(context.Background(), busy.InterviewID, "answer", NopSink{})
		busyDone <- err
	}()
	<-gen.started

	// A cutoff in the future would evict everything idle; the busy session
	// must survive regardless.
	evicted := svc.EvictIdleBefore(time.Now().Add(time.Hour))
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if _, ok := svc.Status(idle.InterviewID); ok {
		t.Fatal("idle session must be evicted")
	}
	if _, ok := svc.Status(busy.InterviewID); !ok {
		t.Fatal("busy session must survive eviction")
	}

	close(gen.release)
	if err := <-busyDone; err != nil {
		t.Fatalf("busy submission err: %v", err)
	}
}

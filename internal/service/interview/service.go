package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/prepdeck/backend/internal/analysis/feedback"
	"github.com/prepdeck/backend/internal/config"
	"github.com/prepdeck/backend/internal/model/interview"
	"github.com/prepdeck/backend/internal/model/resume"
	"github.com/prepdeck/backend/internal/service/ai"
)

var (
	ErrResumeRequired       = errors.New("resume id is required")
	ErrResumeNotFound       = errors.New("resume not found")
	ErrInvalidLimit         = errors.New("question limit must be positive")
	ErrEmptySubmission      = errors.New("submission text is empty")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionCompleted     = errors.New("session already completed")
	ErrSessionBusy          = errors.New("a generation is already in flight for this session")
	ErrGenerationFailed     = errors.New("answer generation failed")
	ErrGeneratorUnavailable = errors.New("answer generation is not configured")
)

// Store is the durable transcript store consumed by the session service.
type Store interface {
	GetResume(ctx context.Context, id string) (resume.Resume, error)
	CreateInterview(ctx context.Context, iv *interview.Interview) error
	AppendTurn(ctx context.Context, interviewID, role, content string) (interview.Turn, error)
	CompleteInterview(ctx context.Context, interviewID string, fb interview.Feedback) error
}

// AnswerSink receives generated fragments in order plus exactly one
// completion signal per generation. A sink error stops delivery for the
// rest of the job but never aborts accumulation or persistence.
type AnswerSink interface {
	Fragment(text string) error
	Complete() error
}

// NopSink discards all relay output. Used when no live channel is attached.
type NopSink struct{}

func (NopSink) Fragment(string) error { return nil }
func (NopSink) Complete() error       { return nil }

// liveSession is the in-memory state of one active interview. The busy
// flag is the single-flight generation guard.
type liveSession struct {
	id             string
	resumeText     string
	jobDescription string
	limit          int
	status         string
	turns          []interview.Turn
	busy           bool
	lastActive     time.Time
	feedback       *interview.Feedback
}

// generatedQuestions counts interviewer turns excluding the synthesized
// opening at Seq 0, so the limit equals the number of generated questions.
func (s *liveSession) generatedQuestions() int {
	count := 0
	for _, turn := range s.turns {
		if turn.Role == interview.RoleInterviewer && turn.Seq > 0 {
			count++
		}
	}
	return count
}

// Service owns session lifecycle, turn accounting, and the single-flight
// generation invariant. Different sessions share no state beyond the
// registry map itself.
type Service struct {
	mu        sync.RWMutex
	sessions  map[string]*liveSession
	store     Store
	generator ai.Generator
	cfg       config.InterviewConfig
}

// NewService builds the session service. A nil generator leaves sessions
// openable but rejects submissions, mirroring degraded startup.
func NewService(store Store, generator ai.Generator, cfg config.InterviewConfig) *Service {
	return &Service{
		sessions:  make(map[string]*liveSession),
		store:     store,
		generator: generator,
		cfg:       cfg,
	}
}

// OpenResult is returned when a session is created.
type OpenResult struct {
	InterviewID   string `json:"interviewId"`
	Opening       string `json:"opening"`
	QuestionLimit int    `json:"questionLimit"`
}

// TurnResult is returned after one full exchange.
type TurnResult struct {
	Answer    string
	Completed bool
	Feedback  *interview.Feedback
}

// Open creates a new interview session bound to an uploaded resume and
// emits the synthesized opening turn.
func (s *Service) Open(ctx context.Context, resumeID, jobDescription string, limit int) (OpenResult, error) {
	if limit == 0 {
		limit = s.cfg.DefaultQuestionLimit
	}
	if limit < 1 || limit > s.cfg.MaxQuestionLimit {
		return OpenResult{}, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	if strings.TrimSpace(resumeID) == "" {
		return OpenResult{}, ErrResumeRequired
	}
	res, err := s.store.GetResume(ctx, resumeID)
	if err != nil {
		return OpenResult{}, fmt.Errorf("%w: %s", ErrResumeNotFound, resumeID)
	}

	iv := &interview.Interview{
		ResumeID:       resumeID,
		JobDescription: jobDescription,
		QuestionLimit:  limit,
		Status:         interview.StatusActive,
	}
	if err := s.store.CreateInterview(ctx, iv); err != nil {
		return OpenResult{}, fmt.Errorf("failed to create interview: %w", err)
	}

	opening, err := s.store.AppendTurn(ctx, iv.ID, interview.RoleInterviewer, s.cfg.OpeningLine)
	if err != nil {
		return OpenResult{}, fmt.Errorf("failed to persist opening turn: %w", err)
	}

	s.mu.Lock()
	s.sessions[iv.ID] = &liveSession{
		id:             iv.ID,
		resumeText:     res.TextContent,
		jobDescription: jobDescription,
		limit:          limit,
		status:         interview.StatusActive,
		turns:          []interview.Turn{opening},
		lastActive:     time.Now(),
	}
	s.mu.Unlock()

	return OpenResult{
		InterviewID:   iv.ID,
		Opening:       opening.Content,
		QuestionLimit: limit,
	}, nil
}

// SubmitTurn runs one full exchange: persist the candidate turn, stream
// the generated answer through the sink while accumulating it, and
// persist the interviewer turn. Once the question limit is reached it
// also closes the session and evaluates the transcript before returning.
//
// A second submission while a generation is in flight fails with
// ErrSessionBusy and changes nothing; it is never queued.
func (s *Service) SubmitTurn(ctx context.Context, interviewID, text string, sink AnswerSink) (TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return TurnResult{}, ErrEmptySubmission
	}
	if s.generator == nil {
		return TurnResult{}, ErrGeneratorUnavailable
	}
	if sink == nil {
		sink = NopSink{}
	}

	req, err := s.beginGeneration(interviewID, text)
	if err != nil {
		return TurnResult{}, err
	}

	candidate, err := s.store.AppendTurn(ctx, interviewID, interview.RoleCandidate, text)
	if err != nil {
		s.endGeneration(interviewID)
		return TurnResult{}, fmt.Errorf("failed to persist candidate turn: %w", err)
	}
	s.recordTurn(interviewID, candidate)

	answer, err := s.streamAnswer(ctx, req, sink)
	if err != nil {
		// Candidate turn stays persisted; the caller may resubmit.
		s.endGeneration(interviewID)
		return TurnResult{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	interviewer, err := s.store.AppendTurn(ctx, interviewID, interview.RoleInterviewer, answer)
	if err != nil {
		s.endGeneration(interviewID)
		return TurnResult{}, fmt.Errorf("failed to persist interviewer turn: %w", err)
	}
	s.recordTurn(interviewID, interviewer)
	s.endGeneration(interviewID)

	if err := sink.Complete(); err != nil {
		log.Printf("[session] completion signal dropped for interview=%s: %v", interviewID, err)
	}

	done, turns := s.checkLimit(interviewID)
	if !done {
		return TurnResult{Answer: answer}, nil
	}

	fb := s.evaluate(ctx, interviewID, turns)
	if err := s.store.CompleteInterview(ctx, interviewID, fb); err != nil {
		log.Printf("[session] failed to persist completion for interview=%s: %v", interviewID, err)
	}
	s.attachFeedback(interviewID, fb)

	return TurnResult{Answer: answer, Completed: true, Feedback: &fb}, nil
}

// generationRequest is the immutable snapshot handed to the generator so
// no lock is held across the (slow) streaming call.
type generationRequest struct {
	resumeText     string
	jobDescription string
	limit          int
	finalQuestion  bool
	history        []interview.Turn
	candidate      string
}

func (s *Service) beginGeneration(interviewID, text string) (generationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[interviewID]
	if !ok {
		return generationRequest{}, ErrSessionNotFound
	}
	if sess.status != interview.StatusActive {
		return generationRequest{}, ErrSessionCompleted
	}
	if sess.busy {
		return generationRequest{}, ErrSessionBusy
	}

	sess.busy = true
	sess.lastActive = time.Now()

	history := make([]interview.Turn, len(sess.turns))
	copy(history, sess.turns)

	return generationRequest{
		resumeText:     sess.resumeText,
		jobDescription: sess.jobDescription,
		limit:          sess.limit,
		finalQuestion:  sess.generatedQuestions() >= sess.limit-1,
		history:        history,
		candidate:      text,
	}, nil
}

func (s *Service) endGeneration(interviewID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[interviewID]; ok {
		sess.busy = false
	}
}

func (s *Service) recordTurn(interviewID string, turn interview.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[interviewID]; ok {
		sess.turns = append(sess.turns, turn)
		sess.lastActive = time.Now()
	}
}

// checkLimit transitions the session to completed when the generated
// question count reaches the limit, returning the full transcript.
func (s *Service) checkLimit(interviewID string) (bool, []interview.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[interviewID]
	if !ok {
		return false, nil
	}
	if sess.generatedQuestions() < sess.limit {
		return false, nil
	}

	sess.status = interview.StatusCompleted
	turns := make([]interview.Turn, len(sess.turns))
	copy(turns, sess.turns)
	return true, turns
}

func (s *Service) attachFeedback(interviewID string, fb interview.Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[interviewID]; ok {
		sess.feedback = &fb
	}
}

// streamAnswer relays fragments to the sink while accumulating them; the
// accumulated answer is authoritative regardless of sink outcome.
func (s *Service) streamAnswer(ctx context.Context, req generationRequest, sink AnswerSink) (string, error) {
	stream, err := s.generator.StreamAnswer(ctx, ai.AnswerRequest{
		Resume:         req.resumeText,
		JobDescription: req.jobDescription,
		QuestionLimit:  req.limit,
		FinalQuestion:  req.finalQuestion,
		History:        req.history,
		Candidate:      req.candidate,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	sinkFailed := false

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && !sinkFailed {
			if err := sink.Fragment(chunk.Content); err != nil {
				// Connection gone: keep accumulating, stop relaying.
				sinkFailed = true
				log.Printf("[session] fragment delivery failed, continuing accumulation: %v", err)
			}
		}
	}

	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	if merged.Content == "" {
		return "", fmt.Errorf("generator returned an empty answer")
	}
	return merged.Content, nil
}

// evaluate requests the report for a finished transcript, substituting
// the deterministic fallback when the request or parse fails.
func (s *Service) evaluate(ctx context.Context, interviewID string, turns []interview.Turn) interview.Feedback {
	raw, err := s.generator.GenerateFeedback(ctx, turns)
	if err != nil {
		log.Printf("[session] evaluation request failed for interview=%s: %v", interviewID, err)
		return feedback.Fallback("the evaluation request failed")
	}

	fb, err := feedback.Parse(raw)
	if err != nil {
		log.Printf("[session] evaluation parse failed for interview=%s: %v", interviewID, err)
		return feedback.Fallback("the evaluation response could not be parsed")
	}
	return fb
}

// Status reports the live status of a session, if registered.
func (s *Service) Status(interviewID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[interviewID]
	if !ok {
		return "", false
	}
	return sess.status, true
}

// EvictIdleBefore drops live sessions whose last activity predates the
// cutoff. Stored rows are untouched: an abandoned interview stays active
// in the transcript store.
func (s *Service) EvictIdleBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.busy {
			continue
		}
		if sess.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[session] evicted %d idle sessions", evicted)
	}
	return evicted
}

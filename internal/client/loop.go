// Package client implements the interview client's turn-taking loop: a
// single-goroutine state machine that interleaves voice capture, text
// input, streamed answer display, and voice playback without ever letting
// two turns overlap in flight.
package client

import (
	"context"
	"errors"
	"strings"

	"github.com/prepdeck/backend/internal/model/interview"
)

// ErrChannelLost reports that the transport closed before the interview
// completed. The loop never retries silently.
var ErrChannelLost = errors.New("interview channel lost")

// State of the turn-taking loop.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateSending
	StateAwaitingAnswer
	StateDisplaying
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateSending:
		return "sending"
	case StateAwaitingAnswer:
		return "awaiting-answer"
	case StateDisplaying:
		return "displaying"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// EventType identifies a channel event delivered by the transport.
type EventType int

const (
	EventStarted EventType = iota
	EventFragment
	EventAnswerComplete
	EventInterviewComplete
	EventError
)

// Event is one server-to-client message, already decoded.
type Event struct {
	Type        EventType
	InterviewID string
	Text        string
	Feedback    *interview.Feedback
	Kind        string
	Message     string
}

// OpenRequest parametrizes the interview opened by the loop.
type OpenRequest struct {
	ResumeID       string
	JobDescription string
	QuestionLimit  int
}

// Transport is the bidirectional session channel. Events carries decoded
// server events in arrival order and closes when the connection drops.
type Transport interface {
	Open(ctx context.Context, req OpenRequest) error
	Submit(ctx context.Context, interviewID, text string) error
	Events() <-chan Event
	Close() error
}

// Recorder captures one utterance per Start call and delivers it on
// Results. A single subscriber reads Results, matching the loop's
// one-turn-in-flight semantics.
type Recorder interface {
	Start(ctx context.Context) error
	Results() <-chan string
}

// Speaker plays back one text per Speak call and signals Done when
// playback ends. Single subscriber, same as Recorder.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Done() <-chan struct{}
}

// Display receives loop output. Implementations must not block.
type Display interface {
	ShowOpening(text string)
	ShowFragment(text string)
	ShowAnswerDone()
	ShowError(kind, message string)
}

type nopDisplay struct{}

func (nopDisplay) ShowOpening(string)     {}
func (nopDisplay) ShowFragment(string)    {}
func (nopDisplay) ShowAnswerDone()        {}
func (nopDisplay) ShowError(string, string) {}

// Config wires the loop's collaborators. Transport is required; the rest
// degrade gracefully when absent.
type Config struct {
	Transport Transport
	Recorder  Recorder
	Speaker   Speaker
	Display   Display
	// TextInput delivers typed submissions.
	TextInput <-chan string
	// CaptureRequests triggers manual capture (the mic button).
	CaptureRequests <-chan struct{}
	// AutoVoice speaks each completed answer and re-arms capture when
	// playback ends, provided the session is still active at that moment.
	AutoVoice bool
	Open      OpenRequest
}

// Loop is the client turn-taking state machine. All state is owned by the
// goroutine running Run; suspension points are exactly the network and
// hardware operations.
type Loop struct {
	cfg         Config
	state       State
	interviewID string
	answer      strings.Builder
	feedback    *interview.Feedback
	terminal    bool
}

// New validates the configuration and builds a loop in StateIdle.
func New(cfg Config) (*Loop, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Display == nil {
		cfg.Display = nopDisplay{}
	}
	return &Loop{cfg: cfg, state: StateIdle}, nil
}

// State returns the current loop state.
func (l *Loop) State() State {
	return l.state
}

// InterviewID returns the bound interview, once started.
func (l *Loop) InterviewID() string {
	return l.interviewID
}

// Run opens the interview and drives the loop until the session completes,
// the transport drops, or the context is cancelled. On completion it
// returns the evaluation report.
func (l *Loop) Run(ctx context.Context) (*interview.Feedback, error) {
	if err := l.cfg.Transport.Open(ctx, l.cfg.Open); err != nil {
		return nil, err
	}

	var results <-chan string
	if l.cfg.Recorder != nil {
		results = l.cfg.Recorder.Results()
	}
	var done <-chan struct{}
	if l.cfg.Speaker != nil {
		done = l.cfg.Speaker.Done()
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case ev, ok := <-l.cfg.Transport.Events():
			if !ok {
				l.state = StateIdle
				return nil, ErrChannelLost
			}
			if finished := l.handleEvent(ctx, ev); finished {
				return l.feedback, nil
			}

		case text := <-l.cfg.TextInput:
			l.submit(ctx, text)

		case <-l.cfg.CaptureRequests:
			l.startCapture(ctx)

		case text := <-results:
			l.submit(ctx, text)

		case <-done:
			if l.playbackEnded(ctx) {
				return l.feedback, nil
			}
		}
	}
}

// handleEvent applies one server event; it reports true when the loop is
// finished and Run should return.
func (l *Loop) handleEvent(ctx context.Context, ev Event) bool {
	switch ev.Type {
	case EventStarted:
		l.interviewID = ev.InterviewID
		l.cfg.Display.ShowOpening(ev.Text)
		l.speakOrIdle(ctx, ev.Text)

	case EventFragment:
		if l.state == StateAwaitingAnswer {
			l.state = StateDisplaying
		}
		if l.state == StateDisplaying {
			l.answer.WriteString(ev.Text)
			l.cfg.Display.ShowFragment(ev.Text)
		}

	case EventAnswerComplete:
		assembled := l.answer.String()
		l.answer.Reset()
		l.cfg.Display.ShowAnswerDone()
		l.speakOrIdle(ctx, assembled)

	case EventInterviewComplete:
		l.feedback = ev.Feedback
		l.terminal = true
		// If playback is running, the terminal check happens when it ends.
		if l.state != StateSpeaking {
			l.state = StateIdle
			return true
		}

	case EventError:
		l.state = StateIdle
		l.answer.Reset()
		l.cfg.Display.ShowError(ev.Kind, ev.Message)
	}
	return false
}

// speakOrIdle enters playback when auto-voice is on, otherwise settles
// back to idle awaiting the next input.
func (l *Loop) speakOrIdle(ctx context.Context, text string) {
	if l.cfg.AutoVoice && l.cfg.Speaker != nil && text != "" {
		l.state = StateSpeaking
		if err := l.cfg.Speaker.Speak(ctx, text); err != nil {
			l.cfg.Display.ShowError("playback", err.Error())
			l.state = StateIdle
		}
		return
	}
	l.state = StateIdle
}

// playbackEnded handles the speaker's done signal. The terminal check
// happens here, not when playback started, so a completion that arrived
// mid-playback is honored and capture is never re-armed on a finished
// session.
func (l *Loop) playbackEnded(ctx context.Context) bool {
	l.state = StateIdle
	if l.terminal {
		return true
	}
	if l.cfg.AutoVoice {
		l.startCapture(ctx)
	}
	return false
}

// startCapture arms the recorder. Entering capture is a no-op in every
// state but idle, and on a finished session.
func (l *Loop) startCapture(ctx context.Context) {
	if l.state != StateIdle || l.terminal || l.cfg.Recorder == nil {
		return
	}
	l.state = StateCapturing
	if err := l.cfg.Recorder.Start(ctx); err != nil {
		l.cfg.Display.ShowError("capture", err.Error())
		l.state = StateIdle
	}
}

// submit sends one candidate turn. Duplicate submissions while a turn is
// in flight are ignored, mirroring the server's single-flight guarantee.
func (l *Loop) submit(ctx context.Context, text string) {
	if l.state != StateIdle && l.state != StateCapturing {
		return
	}
	if l.terminal || strings.TrimSpace(text) == "" {
		return
	}

	l.state = StateSending
	if err := l.cfg.Transport.Submit(ctx, l.interviewID, text); err != nil {
		// Failure stays visible; no auto-retry, no auto-capture.
		l.cfg.Display.ShowError("transport", err.Error())
		l.state = StateIdle
		return
	}
	l.state = StateAwaitingAnswer
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	interviewService "github.com/prepdeck/backend/internal/service/interview"
)

const readTimeout = 120 * time.Second

// Handler carries the interview channel over a websocket: it relays
// generated fragments to the connected client and signals lifecycle
// transitions. One connection drives at most one interview at a time.
type Handler struct {
	sessions *interviewService.Service
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(sessions *interviewService.Service) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the channel endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type        string      `json:"type"`
	InterviewID string      `json:"interviewId,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   int64       `json:"timestamp"`
}

// OpenMessage starts a new interview on this connection.
type OpenMessage struct {
	ResumeID       string `json:"resumeId"`
	JobDescription string `json:"jobDescription,omitempty"`
	QuestionLimit  int    `json:"questionLimit,omitempty"`
}

// SubmitMessage carries one candidate turn.
type SubmitMessage struct {
	InterviewID string `json:"interviewId"`
	Text        string `json:"text"`
}

// conn serializes writes: the ping loop and the relay share the socket.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// connState is the channel-side session binding, owned by this connection
// and dropped with it.
type connState struct {
	interviewID string
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer socket.Close()

	c := &conn{ws: socket}
	state := &connState{}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	socket.SetReadDeadline(time.Now().Add(readTimeout))
	socket.SetPongHandler(func(string) error {
		socket.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, c)

	log.Printf("[ws] connection opened from %s", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := socket.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[ws] read error: %v", err)
				}
				return
			}

			socket.SetReadDeadline(time.Now().Add(readTimeout))
			h.handleMessage(ctx, c, state, &msg)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, state *connState, msg *inboundMessage) {
	switch msg.Type {
	case "open_interview":
		h.handleOpen(ctx, c, state, msg.Data)
	case "submit_turn":
		h.handleSubmit(ctx, c, state, msg.Data)
	default:
		h.sendError(c, state.interviewID, "bad_request", "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) handleOpen(ctx context.Context, c *conn, state *connState, raw json.RawMessage) {
	var open OpenMessage
	if err := json.Unmarshal(raw, &open); err != nil {
		h.sendError(c, "", "bad_request", "invalid open_interview payload")
		return
	}

	result, err := h.sessions.Open(ctx, open.ResumeID, open.JobDescription, open.QuestionLimit)
	if err != nil {
		h.sendError(c, "", errorKind(err), err.Error())
		return
	}

	state.interviewID = result.InterviewID

	h.send(c, result.InterviewID, "interview_started", map[string]any{
		"interviewId":   result.InterviewID,
		"opening":       result.Opening,
		"questionLimit": result.QuestionLimit,
	})
}

// handleSubmit validates the payload on the read loop, then runs the
// exchange on its own goroutine so the loop keeps reading while the
// generation is in flight. A submission racing an in-flight generation
// reaches the session's busy guard and is rejected immediately instead
// of queueing behind the socket read.
func (h *Handler) handleSubmit(ctx context.Context, c *conn, state *connState, raw json.RawMessage) {
	var submit SubmitMessage
	if err := json.Unmarshal(raw, &submit); err != nil {
		h.sendError(c, state.interviewID, "bad_request", "invalid submit_turn payload")
		return
	}

	interviewID := submit.InterviewID
	if interviewID == "" {
		interviewID = state.interviewID
	}
	if interviewID == "" {
		h.sendError(c, "", "bad_request", "no interview bound to this connection")
		return
	}

	go func() {
		sink := &relaySink{handler: h, conn: c, interviewID: interviewID}

		result, err := h.sessions.SubmitTurn(ctx, interviewID, submit.Text, sink)
		if err != nil {
			h.sendError(c, interviewID, errorKind(err), err.Error())
			return
		}

		if result.Completed {
			h.send(c, interviewID, "interview_complete", result.Feedback)
			log.Printf("[ws] interview completed id=%s", interviewID)
		}
	}()
}

// relaySink forwards fragments over the connection in generation order.
// The completion event is emitted here so it can never precede a
// fragment of the same job.
type relaySink struct {
	handler     *Handler
	conn        *conn
	interviewID string
}

func (s *relaySink) Fragment(text string) error {
	return s.conn.writeJSON(outgoingMessage{
		Type:        "answer_delta",
		InterviewID: s.interviewID,
		Data:        map[string]string{"text": text},
		Timestamp:   time.Now().Unix(),
	})
}

func (s *relaySink) Complete() error {
	return s.conn.writeJSON(outgoingMessage{
		Type:        "answer_complete",
		InterviewID: s.interviewID,
		Timestamp:   time.Now().Unix(),
	})
}

func (h *Handler) send(c *conn, interviewID, msgType string, data any) {
	msg := outgoingMessage{
		Type:        msgType,
		InterviewID: interviewID,
		Data:        data,
		Timestamp:   time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		log.Printf("[ws] write failed: %v", err)
	}
}

func (h *Handler) sendError(c *conn, interviewID, kind, message string) {
	h.send(c, interviewID, "error", map[string]string{
		"kind":    kind,
		"message": message,
	})
}

// errorKind maps service errors onto the channel error taxonomy.
func errorKind(err error) string {
	switch {
	case errors.Is(err, interviewService.ErrInvalidLimit):
		return "invalid_configuration"
	case errors.Is(err, interviewService.ErrResumeRequired),
		errors.Is(err, interviewService.ErrResumeNotFound):
		return "invalid_context"
	case errors.Is(err, interviewService.ErrSessionBusy):
		return "session_busy"
	case errors.Is(err, interviewService.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, interviewService.ErrSessionCompleted):
		return "session_completed"
	case errors.Is(err, interviewService.ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, interviewService.ErrEmptySubmission):
		return "bad_request"
	case errors.Is(err, interviewService.ErrGeneratorUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

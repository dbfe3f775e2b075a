package client

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prepdeck/backend/internal/model/interview"
)

// WSTransport carries the interview channel over a websocket. Decoded
// events are delivered on a single channel in arrival order; the channel
// closes when the connection drops.
type WSTransport struct {
	conn    *websocket.Conn
	events  chan Event
	writeMu sync.Mutex

	closeOnce sync.Once
}

// Dial connects to the channel endpoint, e.g. ws://localhost:8080/api/ws.
func Dial(ctx context.Context, url string) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	t := &WSTransport{
		conn:   conn,
		events: make(chan Event, 16),
	}
	go t.readLoop()
	return t, nil
}

type clientMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type serverMessage struct {
	Type        string          `json:"type"`
	InterviewID string          `json:"interviewId,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// Open requests a new interview on this connection.
func (t *WSTransport) Open(ctx context.Context, req OpenRequest) error {
	return t.write(clientMessage{
		Type: "open_interview",
		Data: map[string]any{
			"resumeId":       req.ResumeID,
			"jobDescription": req.JobDescription,
			"questionLimit":  req.QuestionLimit,
		},
		Timestamp: time.Now().Unix(),
	})
}

// Submit sends one candidate turn.
func (t *WSTransport) Submit(ctx context.Context, interviewID, text string) error {
	return t.write(clientMessage{
		Type: "submit_turn",
		Data: map[string]string{
			"interviewId": interviewID,
			"text":        text,
		},
		Timestamp: time.Now().Unix(),
	})
}

// Events returns the decoded server event stream.
func (t *WSTransport) Events() <-chan Event {
	return t.events
}

// Close shuts the connection down. The event channel closes once the read
// loop observes the closed socket.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *WSTransport) write(msg clientMessage) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

func (t *WSTransport) readLoop() {
	defer close(t.events)

	for {
		var msg serverMessage
		if err := t.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[client] read error: %v", err)
			}
			return
		}

		ev, ok := decodeEvent(&msg)
		if !ok {
			continue
		}
		t.events <- ev
	}
}

func decodeEvent(msg *serverMessage) (Event, bool) {
	switch msg.Type {
	case "interview_started":
		var data struct {
			InterviewID   string `json:"interviewId"`
			Opening       string `json:"opening"`
			QuestionLimit int    `json:"questionLimit"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return Event{}, false
		}
		return Event{
			Type:        EventStarted,
			InterviewID: data.InterviewID,
			Text:        data.Opening,
		}, true

	case "answer_delta":
		var data struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return Event{}, false
		}
		return Event{
			Type:        EventFragment,
			InterviewID: msg.InterviewID,
			Text:        data.Text,
		}, true

	case "answer_complete":
		return Event{Type: EventAnswerComplete, InterviewID: msg.InterviewID}, true

	case "interview_complete":
		var fb interview.Feedback
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &fb); err != nil {
				log.Printf("[client] malformed feedback payload: %v", err)
			}
		}
		return Event{
			Type:        EventInterviewComplete,
			InterviewID: msg.InterviewID,
			Feedback:    &fb,
		}, true

	case "error":
		var data struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return Event{}, false
		}
		return Event{
			Type:        EventError,
			InterviewID: msg.InterviewID,
			Kind:        data.Kind,
			Message:     data.Message,
		}, true

	default:
		return Event{}, false
	}
}

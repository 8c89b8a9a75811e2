package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"once/server/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the gateway in front of this
		// service.
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
)

// streamRequest is the single message a client sends after connecting.
type streamRequest struct {
	StoryID uint   `json:"story_id"`
	Action  string `json:"action"`
	UserID  string `json:"user_id"`
}

// streamSession serializes writes to one websocket connection for the
// duration of one turn.
type streamSession struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	failed atomic.Bool
}

func (s *streamSession) send(event engine.StreamEvent) {
	if s.failed.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(event); err != nil {
		// Stop writing to a dead socket; the read pump notices the close
		// and cancels the turn.
		s.failed.Store(true)
		log.Printf("[Stream] write failed, muting session: %v", err)
	}
}

// StreamTurn upgrades to a websocket, reads one turn request, and streams
// the continuation back as narration/complete/error events.
func (h *Handlers) StreamTurn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Stream] upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var req streamRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeEvent(conn, engine.StreamEvent{Type: "error", Error: "invalid request"})
		return
	}
	user := req.UserID
	if user == "" {
		user = userID(r)
	}

	// The client sends nothing further; keep reading so a closed socket
	// cancels the in-flight turn instead of letting it persist unseen.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	session := &streamSession{conn: conn}
	_, err = h.orchestrator.ContinueStoryStream(ctx, user, req.StoryID, req.Action, session.send)
	if err != nil {
		session.send(engine.StreamEvent{Type: "error", Error: err.Error()})
	}
}

func writeEvent(conn *websocket.Conn, event engine.StreamEvent) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("[Stream] write failed: %v", err)
	}
}

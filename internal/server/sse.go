package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/presence"
	"github.com/google/uuid"
)

// sseKeepaliveInterval is how often keepalive comments are sent to
// prevent connection timeouts.
const sseKeepaliveInterval = 15 * time.Second

// EventConnected is the first event written on every stream.
const EventConnected = "connected"

var errConnClosed = errors.New("connection closed")

// sseConn is one open stream, registered in the presence registry as a
// handle of its recipient. Frames are queued on a bounded channel and
// written by the request goroutine.
type sseConn struct {
	id   string
	ch   chan presence.Frame
	done chan struct{}
	once sync.Once
}

func newSSEConn(buffer int) *sseConn {
	return &sseConn{
		id:   uuid.NewString(),
		ch:   make(chan presence.Frame, buffer),
		done: make(chan struct{}),
	}
}

func (c *sseConn) ID() string { return c.id }

// Send queues f for writing. It blocks while the queue is full, until the
// stream closes or ctx expires. A frame that fits in the queue is always
// accepted, whatever the state of ctx.
func (c *sseConn) Send(ctx context.Context, f presence.Frame) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.ch <- f:
		return nil
	default:
	}
	select {
	case c.ch <- f:
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *sseConn) close() {
	c.once.Do(func() { close(c.done) })
}

// handleNotificationStream handles GET /v1/notifications/stream?userId=
// (SSE endpoint). The recipient is present for as long as the stream is open.
func (s *NotifyServer) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	// Ensure response supports flushing (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	conn := newSSEConn(s.connBuffer)
	s.presence.Register(userID, conn)
	s.updatePresenceMetrics()
	s.log.Info("stream connected", "user_id", userID, "connection_id", conn.id)
	defer func() {
		conn.close()
		s.presence.Unregister(userID, conn)
		s.updatePresenceMetrics()
		s.log.Info("stream disconnected", "user_id", userID, "connection_id", conn.id)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	hello, _ := json.Marshal(map[string]string{
		"user_id":       userID,
		"connection_id": conn.id,
	})
	writeSSEFrame(w, presence.Frame{Event: EventConnected, Data: hello})
	flusher.Flush()

	// Stream frames until client disconnects.
	ctx := r.Context()
	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-conn.ch:
			writeSSEFrame(w, f)
			flusher.Flush()
		case <-keepalive.C:
			// Send a comment line as keepalive.
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEFrame writes a single SSE event to the writer.
func writeSSEFrame(w http.ResponseWriter, f presence.Frame) {
	fmt.Fprintf(w, "event:%s\n", f.Event)
	fmt.Fprintf(w, "data:%s\n\n", f.Data)
}

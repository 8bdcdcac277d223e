package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/delivery"
	"github.com/alfredjeanlab/notifyd/internal/model"
)

// sseEventParsed represents a single parsed SSE event from the stream.
type sseEventParsed struct {
	Event string
	Data  string
}

// sseReader reads SSE events from an HTTP response body using a bufio.Scanner.
// It sends parsed events to the returned channel and stops when the context is cancelled
// or the body is closed.
func sseReader(ctx context.Context, resp *http.Response) <-chan sseEventParsed {
	ch := make(chan sseEventParsed, 32)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEventParsed
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				current.Event = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				current.Data = strings.TrimPrefix(line, "data:")
			case line == "":
				// Empty line marks end of SSE event block.
				if current.Event != "" || current.Data != "" {
					ch <- current
					current = sseEventParsed{}
				}
			}
		}
	}()
	return ch
}

// waitForEvent reads from the SSE event channel until an event with the given
// name is received, or the timeout expires.
func waitForEvent(t *testing.T, ch <-chan sseEventParsed, event string, timeout time.Duration) sseEventParsed {
	t.Helper()
	timer := time.After(timeout)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("SSE channel closed before receiving event %q", event)
			}
			if evt.Event == event {
				return evt
			}
		case <-timer:
			t.Fatalf("timed out waiting for SSE event %q", event)
		}
	}
}

// openStream opens a notification stream for userID and returns the
// response. The caller must call the returned cleanup when done.
func openStream(t *testing.T, serverURL, userID string) (*http.Response, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/v1/notifications/stream?userId="+userID, nil)
	if err != nil {
		cancel()
		t.Fatalf("failed to create SSE request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("failed to connect to SSE stream: %v", err)
	}
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		resp.Body.Close()
		cancel()
		t.Fatalf("expected Content-Type=text/event-stream, got %q", resp.Header.Get("Content-Type"))
	}
	return resp, func() {
		cancel()
		resp.Body.Close()
	}
}

// startSSEClient opens a stream and returns a channel of parsed events.
func startSSEClient(t *testing.T, serverURL, userID string) (<-chan sseEventParsed, func()) {
	t.Helper()
	resp, cleanup := openStream(t, serverURL, userID)
	ctx, cancel := context.WithCancel(context.Background())
	ch := sseReader(ctx, resp)
	return ch, func() {
		cancel()
		cleanup()
	}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestSSE_StreamMakesRecipientPresent(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ch, cleanup := startSSEClient(t, ts.URL, "owner-1")

	evt := waitForEvent(t, ch, EventConnected, 2*time.Second)
	var hello map[string]string
	if err := json.Unmarshal([]byte(evt.Data), &hello); err != nil {
		t.Fatalf("connected payload: %v", err)
	}
	if hello["user_id"] != "owner-1" || hello["connection_id"] == "" {
		t.Errorf("connected payload = %v", hello)
	}
	if !env.reg.IsPresent("owner-1") {
		t.Fatal("owner-1 should be present while the stream is open")
	}

	cleanup()
	if !waitFor(t, 2*time.Second, func() bool { return !env.reg.IsPresent("owner-1") }) {
		t.Error("owner-1 still present after the stream closed")
	}
}

func TestSSE_NotificationDeliveredToEveryStream(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	phone, closePhone := startSSEClient(t, ts.URL, "owner-1")
	defer closePhone()
	laptop, closeLaptop := startSSEClient(t, ts.URL, "owner-1")
	defer closeLaptop()
	other, closeOther := startSSEClient(t, ts.URL, "owner-2")
	defer closeOther()
	for _, ch := range []<-chan sseEventParsed{phone, laptop, other} {
		waitForEvent(t, ch, EventConnected, 2*time.Second)
	}

	resp := postJSON(t, ts.URL+"/v1/notifications", validSubmission("owner-1"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created model.Notification
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != model.StatusSent {
		t.Fatalf("status = %s, want SENT", created.Status)
	}

	for name, ch := range map[string]<-chan sseEventParsed{"phone": phone, "laptop": laptop} {
		evt := waitForEvent(t, ch, delivery.EventNotification, 2*time.Second)
		var p model.Projection
		if err := json.Unmarshal([]byte(evt.Data), &p); err != nil {
			t.Fatalf("%s: projection: %v", name, err)
		}
		if p.ID != created.ID || p.Title != "Battery low" {
			t.Errorf("%s: projection = %+v", name, p)
		}
	}

	select {
	case evt := <-other:
		t.Errorf("owner-2 received %q meant for owner-1", evt.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSE_GeofenceAlertReachesOwner(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ch, cleanup := startSSEClient(t, ts.URL, "owner-1")
	defer cleanup()
	waitForEvent(t, ch, EventConnected, 2*time.Second)

	resp := postJSON(t, ts.URL+"/v1/public/notifications/geofence-alert", map[string]any{
		"collar_id":     "123456",
		"geofence_id":   "gf-1",
		"geofence_name": "Backyard",
		"action":        "ENTRY",
		"location":      map[string]any{"latitude": 40.7, "longitude": -74.0},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	evt := waitForEvent(t, ch, delivery.EventNotification, 2*time.Second)
	var p model.Projection
	if err := json.Unmarshal([]byte(evt.Data), &p); err != nil {
		t.Fatalf("projection: %v", err)
	}
	if p.Type != model.TypeGeofenceEntry || p.Priority != model.PriorityMedium {
		t.Errorf("got %s/%s, want GEOFENCE_ENTRY/MEDIUM", p.Type, p.Priority)
	}
}

func TestSSE_Keepalive(t *testing.T) {
	env := newTestServer(t)
	srv := NewNotifyServer(env.orch, env.reg, Options{
		Logger:    discardLogger(),
		Keepalive: 20 * time.Millisecond,
	})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	defer ts.Close()

	resp, cleanup := openStream(t, ts.URL, "owner-1")
	defer cleanup()

	found := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if scanner.Text() == ":keepalive" {
				close(found)
				return
			}
		}
	}()

	select {
	case <-found:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive comment received")
	}
}

func TestSSE_PresenceMetricsFollowStreams(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ch, cleanup := startSSEClient(t, ts.URL, "owner-1")
	waitForEvent(t, ch, EventConnected, 2*time.Second)

	rec := doJSON(t, env.handler, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), "notifyd_open_connections 1") {
		t.Errorf("expected one open connection in metrics:\n%s", rec.Body.String())
	}

	cleanup()
	ok := waitFor(t, 2*time.Second, func() bool {
		rec := doJSON(t, env.handler, http.MethodGet, "/metrics", nil)
		return strings.Contains(rec.Body.String(), "notifyd_open_connections 0")
	})
	if !ok {
		t.Error("open connections gauge did not drop to 0")
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// streamHandler writes a fixed SSE body and then holds the stream open
// until the client goes away.
func streamHandler(body string, hold bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") == "" {
			http.Error(w, `{"error":"userId is required"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, body)
		w.(http.Flusher).Flush()
		if hold {
			<-r.Context().Done()
		}
	}
}

func TestWatch_ParsesEvents(t *testing.T) {
	body := "event:connected\ndata:{\"user_id\":\"owner-1\"}\n\n" +
		":keepalive\n\n" +
		"event:notification\ndata:{\"id\":\"nt-1\"}\n\n" +
		"data: line one\ndata: line two\n\n"
	srv := httptest.NewServer(streamHandler(body, false))
	defer srv.Close()

	var got []StreamEvent
	err := NewHTTPClient(srv.URL).Watch(context.Background(), "owner-1", func(e StreamEvent) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	want := []StreamEvent{
		{Event: "connected", Data: []byte(`{"user_id":"owner-1"}`)},
		{Event: "notification", Data: []byte(`{"id":"nt-1"}`)},
		{Event: "message", Data: []byte("line one\nline two")},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Event != want[i].Event || string(got[i].Data) != string(want[i].Data) {
			t.Errorf("event %d = %s %q, want %s %q", i, got[i].Event, got[i].Data, want[i].Event, want[i].Data)
		}
	}
}

func TestWatch_CallbackErrorStops(t *testing.T) {
	srv := httptest.NewServer(streamHandler("event:connected\ndata:{}\n\n", true))
	defer srv.Close()

	stop := errors.New("stop")
	err := NewHTTPClient(srv.URL).Watch(context.Background(), "owner-1", func(StreamEvent) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Watch() error = %v, want stop", err)
	}
}

func TestWatch_CancelIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(streamHandler("event:connected\ndata:{}\n\n", true))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewHTTPClient(srv.URL).Watch(ctx, "owner-1", func(StreamEvent) error {
			cancel()
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_BadRequest(t *testing.T) {
	srv := httptest.NewServer(streamHandler("", false))
	defer srv.Close()

	err := NewHTTPClient(srv.URL).Watch(context.Background(), "", func(StreamEvent) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("Watch() error = %v, want HTTP 400", err)
	}
	if apiErr.Message != "userId is required" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

package events

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNATSSubscriber_ImplementsSubscriber(t *testing.T) {
	var _ Subscriber = (*NATSSubscriber)(nil)
}

func TestNATSSubscriber_ReceivesWildcard(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("alerts.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	for _, subject := range []string{"alerts.geofence", "alerts.battery"} {
		if err := pub.conn.Publish(subject, []byte(`{"collar_id":"123456"}`)); err != nil {
			t.Fatalf("publishing to %s: %v", subject, err)
		}
	}
	pub.conn.Flush()

	for i := range 2 {
		select {
		case msg := <-ch:
			if string(msg) != `{"collar_id":"123456"}` {
				t.Errorf("got %q", msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("alerts.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()
	cancel() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestNATSSubscriber_CancelDuringMessages(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("alerts.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_ = pub.conn.Publish("alerts.geofence", []byte(`{}`))
		}
		pub.conn.Flush()
	}()

	cancel()
	<-done

	// Drain anything buffered before close; the channel must end closed.
	for range ch {
	}
}

func TestNATSSubscriber_FullBufferDrops(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.SubscribeBuffered("alerts.geofence", 1)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	for range 3 {
		if err := pub.conn.Publish("alerts.geofence", []byte(`{}`)); err != nil {
			t.Fatalf("publishing: %v", err)
		}
	}
	pub.conn.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for sub.Dropped() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("dropped = %d, want 2", sub.Dropped())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(ch) != 1 {
		t.Errorf("buffered = %d, want 1", len(ch))
	}
}

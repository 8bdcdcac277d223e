package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type fakeHandle struct{ id string }

func (h fakeHandle) ID() string { return h.id }
func (h fakeHandle) Send(context.Context, Frame) error { return nil }

func TestRegister_CreatesEntry(t *testing.T) {
	r := New()

	if !r.Register("u1", fakeHandle{"h1"}) {
		t.Fatal("expected first register to add the handle")
	}

	if !r.IsPresent("u1") {
		t.Error("expected u1 to be present")
	}
	if got := len(r.HandlesFor("u1")); got != 1 {
		t.Errorf("expected 1 handle, got %d", got)
	}
	if r.Count() != 1 {
		t.Errorf("expected count 1, got %d", r.Count())
	}
}

func TestRegister_Idempotent(t *testing.T) {
	r := New()

	r.Register("u1", fakeHandle{"h1"})
	if r.Register("u1", fakeHandle{"h1"}) {
		t.Error("second register of the same handle should be a no-op")
	}

	handles := r.HandlesFor("u1")
	if len(handles) != 1 || handles[0].ID() != "h1" {
		t.Errorf("expected [h1], got %v", handles)
	}
	if r.Connections() != 1 {
		t.Errorf("expected 1 connection, got %d", r.Connections())
	}
}

func TestRegister_MultipleDevices(t *testing.T) {
	r := New()

	r.Register("u1", fakeHandle{"h1"})
	r.Register("u1", fakeHandle{"h2"})
	r.Register("u2", fakeHandle{"h3"})

	if got := len(r.HandlesFor("u1")); got != 2 {
		t.Errorf("expected 2 handles for u1, got %d", got)
	}
	// Count is recipients, not connections.
	if r.Count() != 2 {
		t.Errorf("expected count 2, got %d", r.Count())
	}
	if r.Connections() != 3 {
		t.Errorf("expected 3 connections, got %d", r.Connections())
	}
}

func TestRegister_IgnoresEmptyRecipient(t *testing.T) {
	r := New()
	if r.Register("", fakeHandle{"h1"}) {
		t.Error("expected empty recipient to be ignored")
	}
	if r.Count() != 0 {
		t.Errorf("expected count 0, got %d", r.Count())
	}
}

func TestUnregister_RemovesEmptyEntry(t *testing.T) {
	r := New()

	r.Register("u1", fakeHandle{"h1"})
	r.Register("u1", fakeHandle{"h2"})

	r.Unregister("u1", fakeHandle{"h1"})
	if !r.IsPresent("u1") {
		t.Fatal("u1 should still be present with h2")
	}

	r.Unregister("u1", fakeHandle{"h2"})
	if r.IsPresent("u1") {
		t.Error("u1 should not be present after last handle removed")
	}
	if r.HandlesFor("u1") != nil {
		t.Error("expected nil handles for absent recipient")
	}
	r.mu.RLock()
	_, lingering := r.recipients["u1"]
	r.mu.RUnlock()
	if lingering {
		t.Error("empty entry for u1 lingered in the map")
	}
}

func TestUnregister_UnknownIsNoop(t *testing.T) {
	r := New()

	if r.Unregister("ghost", fakeHandle{"h1"}) {
		t.Error("unregistering unknown recipient should report false")
	}

	r.Register("u1", fakeHandle{"h1"})
	if r.Unregister("u1", fakeHandle{"nope"}) {
		t.Error("unregistering unknown handle should report false")
	}
	if !r.IsPresent("u1") {
		t.Error("u1 should remain present")
	}
	if r.Unregister("u1", nil) {
		t.Error("nil handle should be ignored")
	}
}

func TestHandlesFor_IsSnapshot(t *testing.T) {
	r := New()
	r.Register("u1", fakeHandle{"h1"})
	r.Register("u1", fakeHandle{"h2"})

	snap := r.HandlesFor("u1")
	r.Unregister("u1", fakeHandle{"h1"})
	r.Register("u1", fakeHandle{"h3"})

	if len(snap) != 2 || snap[0].ID() != "h1" || snap[1].ID() != "h2" {
		t.Errorf("snapshot changed after mutation: %v", snap)
	}
}

func TestSnapshot_Order(t *testing.T) {
	r := New()
	r.Register("b", fakeHandle{"h1"})
	r.Register("a", fakeHandle{"h2"})
	r.Register("c", fakeHandle{"h3"})
	r.Register("c", fakeHandle{"h4"})

	entries := r.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Recipient != "c" || entries[0].Connections != 2 {
		t.Errorf("expected c with 2 connections first, got %+v", entries[0])
	}
	if entries[1].Recipient != "a" || entries[2].Recipient != "b" {
		t.Errorf("expected ties ordered by recipient, got %v", entries)
	}
}

func TestPresenceMatchesHandles(t *testing.T) {
	r := New()
	check := func(step string) {
		t.Helper()
		for _, u := range []string{"u1", "u2"} {
			if r.IsPresent(u) != (len(r.HandlesFor(u)) > 0) {
				t.Fatalf("%s: IsPresent(%s) disagrees with HandlesFor", step, u)
			}
		}
	}

	check("empty")
	r.Register("u1", fakeHandle{"h1"})
	check("register")
	r.Register("u2", fakeHandle{"h2"})
	r.Unregister("u1", fakeHandle{"h1"})
	check("unregister")
	r.Unregister("u2", fakeHandle{"h2"})
	check("drained")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := fakeHandle{fmt.Sprintf("h%d", i)}
			recipient := fmt.Sprintf("u%d", i%5)
			for j := 0; j < 100; j++ {
				r.Register(recipient, h)
				_ = r.HandlesFor(recipient)
				_ = r.IsPresent(recipient)
				_ = r.Snapshot()
				r.Unregister(recipient, h)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("expected empty registry after all unregisters, got %d recipients", r.Count())
	}
	if r.Connections() != 0 {
		t.Errorf("expected 0 connections, got %d", r.Connections())
	}
}

func TestAll_SpansRecipients(t *testing.T) {
	r := New()
	if got := r.All(); len(got) != 0 {
		t.Fatalf("empty registry All() = %v", got)
	}
	r.Register("u2", fakeHandle{"c"})
	r.Register("u1", fakeHandle{"a"})
	r.Register("u1", fakeHandle{"b"})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d handles, want 3", len(all))
	}
	for i, id := range []string{"a", "b", "c"} {
		if all[i].ID() != id {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].ID(), id)
		}
	}

	r.Unregister("u2", fakeHandle{"c"})
	if len(all) != 3 || len(r.All()) != 2 {
		t.Error("All() must return a snapshot")
	}
}

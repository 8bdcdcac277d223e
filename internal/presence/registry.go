// Package presence tracks which recipients currently hold live connections.
//
// The Registry maps a recipient (the owner a notification is addressed to)
// to the set of connection handles open for it. A recipient may hold
// several handles at once, one per device or browser tab. Connect and
// disconnect are set operations: registering a handle twice is a no-op,
// and removing the last handle removes the recipient entirely so that no
// empty entry ever lingers.
//
// One Registry is created at service start and owned by the server; it is
// not persisted and starts empty after a restart.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Frame is one event pushed down a live connection.
type Frame struct {
	Event string // event name, e.g. "notification"
	Data  []byte // JSON-encoded payload
}

// Handle is one live connection able to receive frames.
// ID must be unique among the handles of a recipient.
type Handle interface {
	ID() string
	Send(ctx context.Context, f Frame) error
}

// Entry summarizes one present recipient.
type Entry struct {
	Recipient   string    `json:"recipient"`
	Connections int       `json:"connections"`
	Since       time.Time `json:"since"` // when the entry was created
}

// Registry maintains recipient -> handles. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	recipients map[string]*recipientState
}

type recipientState struct {
	handles map[string]Handle
	since   time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{recipients: make(map[string]*recipientState)}
}

// Register adds h to the recipient's handle set, creating the entry if it
// is absent. Registering a handle ID that is already present is a no-op.
// It reports whether the handle was newly added.
func (r *Registry) Register(recipient string, h Handle) bool {
	if recipient == "" || h == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.recipients[recipient]
	if !ok {
		state = &recipientState{handles: make(map[string]Handle), since: time.Now()}
		r.recipients[recipient] = state
	}
	if _, dup := state.handles[h.ID()]; dup {
		return false
	}
	state.handles[h.ID()] = h
	return true
}

// Unregister removes the handle from the recipient's set and drops the
// recipient once its set is empty. Unknown recipients or handles are
// ignored; disconnect races are expected. It reports whether a handle was
// actually removed.
func (r *Registry) Unregister(recipient string, h Handle) bool {
	if h == nil {
		return false
	}
	return r.UnregisterID(recipient, h.ID())
}

// UnregisterID is Unregister keyed by handle ID.
func (r *Registry) UnregisterID(recipient, handleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.recipients[recipient]
	if !ok {
		return false
	}
	if _, ok := state.handles[handleID]; !ok {
		return false
	}
	delete(state.handles, handleID)
	if len(state.handles) == 0 {
		delete(r.recipients, recipient)
	}
	return true
}

// HandlesFor returns a snapshot of the recipient's handles, or nil if the
// recipient is not present. The slice is owned by the caller; later
// register/unregister calls do not affect it.
func (r *Registry) HandlesFor(recipient string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.recipients[recipient]
	if !ok {
		return nil
	}
	out := make([]Handle, 0, len(state.handles))
	for _, h := range state.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// All returns a snapshot of every live handle across all recipients.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Handle
	for _, state := range r.recipients {
		for _, h := range state.handles {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IsPresent reports whether the recipient has at least one live handle.
func (r *Registry) IsPresent(recipient string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.recipients[recipient]
	return ok
}

// Count returns the number of distinct recipients present.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recipients)
}

// Connections returns the total number of live handles across recipients.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, state := range r.recipients {
		n += len(state.handles)
	}
	return n
}

// Snapshot returns one Entry per present recipient, most connections first.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.recipients))
	for recipient, state := range r.recipients {
		entries = append(entries, Entry{
			Recipient:   recipient,
			Connections: len(state.handles),
			Since:       state.since,
		})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Connections != entries[j].Connections {
			return entries[i].Connections > entries[j].Connections
		}
		return entries[i].Recipient < entries[j].Recipient
	})
	return entries
}

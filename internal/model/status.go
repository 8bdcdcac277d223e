package model

import (
	"errors"
	"fmt"
	"time"
)

// Status is the delivery lifecycle state of a notification.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
	StatusFailed    Status = "FAILED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// IsUnread reports whether a notification in this status has reached the
// owner but has not been read yet.
func (s Status) IsUnread() bool {
	return s == StatusSent || s == StatusDelivered
}

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports an illegal status change. The record it was
// attempted on is left untouched.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("notification %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) true for transition errors.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// transitions lists the legal target states for each state. READ has none.
// FAILED -> PENDING is only taken when a retry policy re-arms a record.
var transitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusFailed},
	StatusSent:      {StatusDelivered, StatusRead, StatusFailed},
	StatusDelivered: {StatusRead},
	StatusFailed:    {StatusPending},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition describes one status change and the fields it sets.
// Apply computes the changed record without touching the original.
type Transition struct {
	To     Status
	At     time.Time
	Reason string // failure reason, only used when To is FAILED
}

// Apply returns a copy of n with the transition applied, or a
// *TransitionError if the change is illegal. n is never modified.
func (t Transition) Apply(n *Notification) (*Notification, error) {
	if !CanTransition(n.Status, t.To) {
		return nil, &TransitionError{ID: n.ID, From: n.Status, To: t.To}
	}

	out := n.Clone()
	at := t.At.UTC()
	out.Status = t.To
	out.UpdatedAt = at

	switch t.To {
	case StatusSent:
		out.DeliveredAt = &at
	case StatusRead:
		out.ReadAt = &at
	case StatusFailed:
		out.FailedAt = &at
		out.FailureReason = t.Reason
		out.RetryCount++
	case StatusPending:
		out.FailureReason = ""
	}
	return out, nil
}

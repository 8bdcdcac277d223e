// Package memory implements store.Store in process memory. It backs the
// server when no database is configured and is used throughout the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/store"
)

// Store is an in-memory store.Store. Records are cloned on the way in and
// out so callers never share state with the map.
type Store struct {
	mu            sync.RWMutex
	notifications map[string]*model.Notification
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{notifications: make(map[string]*model.Notification)}
}

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notifications[n.ID]; exists {
		return fmt.Errorf("notification %s already exists", n.ID)
	}
	s.notifications[n.ID] = n.Clone()
	return nil
}

func (s *Store) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return n.Clone(), nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, from model.Status, u store.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	if n.Status != from {
		return store.ErrConflict
	}
	updated := n.Clone()
	updated.Status = u.Status
	updated.DeliveredAt = u.DeliveredAt
	updated.ReadAt = u.ReadAt
	updated.FailedAt = u.FailedAt
	updated.FailureReason = u.FailureReason
	updated.RetryCount = u.RetryCount
	updated.UpdatedAt = u.UpdatedAt
	s.notifications[id] = updated.Clone()
	return nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID string, limit int) ([]*model.Notification, error) {
	return s.collect(func(n *model.Notification) bool { return n.OwnerID == ownerID }, newestFirst, limit), nil
}

func (s *Store) CountByStatus(_ context.Context, ownerID string, statuses ...model.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.OwnerID != ownerID {
			continue
		}
		for _, st := range statuses {
			if n.Status == st {
				count++
				break
			}
		}
	}
	return count, nil
}

func (s *Store) ListRetryable(_ context.Context, limit int) ([]*model.Notification, error) {
	byFailure := func(a, b *model.Notification) bool {
		return timeOrZero(a.FailedAt).Before(timeOrZero(b.FailedAt))
	}
	return s.collect(func(n *model.Notification) bool { return n.CanRetry() }, byFailure, limit), nil
}

func (s *Store) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]*model.Notification, error) {
	return s.collect(func(n *model.Notification) bool {
		return n.Status == model.StatusPending && n.CreatedAt.Before(cutoff)
	}, oldestFirst, limit), nil
}

func (s *Store) ListOlderThan(_ context.Context, cutoff time.Time, status model.Status, limit int) ([]*model.Notification, error) {
	return s.collect(func(n *model.Notification) bool {
		return n.Status == status && n.CreatedAt.Before(cutoff)
	}, oldestFirst, limit), nil
}

func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time, status model.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, n := range s.notifications {
		if n.Status == status && n.CreatedAt.Before(cutoff) {
			delete(s.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) collect(keep func(*model.Notification) bool, less func(a, b *model.Notification) bool, limit int) []*model.Notification {
	s.mu.RLock()
	var out []*model.Notification
	for _, n := range s.notifications {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newestFirst(a, b *model.Notification) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func oldestFirst(a, b *model.Notification) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Package retry re-delivers notifications that did not reach a device:
// FAILED records with retries left, and PENDING records a crash or lost
// write left behind.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/store"
)

// Deliverer re-runs delivery for a stored record.
// *delivery.Orchestrator satisfies it.
type Deliverer interface {
	Retry(ctx context.Context, id string) (*model.Notification, error)
	Deliver(ctx context.Context, id string) (*model.Notification, error)
}

// Options configure a Sweeper. Zero values pick the defaults.
type Options struct {
	// Schedule is a cron spec. Default: "@every 1m".
	Schedule string
	// PendingTimeout is how long a record may sit in PENDING before it is
	// considered stranded. Default: 5m.
	PendingTimeout time.Duration
	// BatchSize caps the records handled per category per sweep. Default: 100.
	BatchSize int
	Logger    *slog.Logger
	Now       func() time.Time
}

// Stats summarizes one sweep.
type Stats struct {
	Retried     int
	Redelivered int
	Sent        int
	Failed      int
	Errors      int
}

// Sweeper periodically retries undelivered notifications.
type Sweeper struct {
	store  store.Store
	d      Deliverer
	opts   Options
	parser cron.Parser

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// New creates a sweeper reading candidates from s and delivering through d.
func New(s store.Store, d Deliverer, opts Options) *Sweeper {
	if opts.Schedule == "" {
		opts.Schedule = "@every 1m"
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = 5 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		store:  s,
		d:      d,
		opts:   opts,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start schedules periodic sweeps.
func (s *Sweeper) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithParser(s.parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.opts.Schedule, func() { s.Sweep(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("parse retry schedule %q: %w", s.opts.Schedule, err)
	}
	s.cron = c
	s.cancel = cancel
	c.Start()
	return nil
}

// Stop cancels a sweep in progress and waits for it to return.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
}

// Sweep runs one pass: retry FAILED records with retries left, then
// re-deliver stranded PENDING records.
func (s *Sweeper) Sweep(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats

	failed, err := s.store.ListRetryable(ctx, s.opts.BatchSize)
	if err != nil {
		s.opts.Logger.Error("retry: list retryable", "err", err)
		st.Errors++
	}
	for _, n := range failed {
		if ctx.Err() != nil {
			return st
		}
		out, err := s.d.Retry(ctx, n.ID)
		if s.tally(&st, n, out, err) {
			st.Retried++
		}
	}

	cutoff := s.opts.Now().Add(-s.opts.PendingTimeout)
	stale, err := s.store.ListStalePending(ctx, cutoff, s.opts.BatchSize)
	if err != nil {
		s.opts.Logger.Error("retry: list stale pending", "err", err)
		st.Errors++
	}
	for _, n := range stale {
		if ctx.Err() != nil {
			return st
		}
		out, err := s.d.Deliver(ctx, n.ID)
		if s.tally(&st, n, out, err) {
			st.Redelivered++
		}
	}

	if len(failed)+len(stale) > 0 {
		s.opts.Logger.Info("retry sweep completed",
			"retried", st.Retried,
			"redelivered", st.Redelivered,
			"sent", st.Sent,
			"failed", st.Failed,
			"errors", st.Errors)
	}
	return st
}

// tally folds one attempt into st and reports whether it ran.
func (s *Sweeper) tally(st *Stats, n, out *model.Notification, err error) bool {
	switch {
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, store.ErrNotFound):
		// Moved on or deleted since it was listed.
		s.opts.Logger.Debug("retry: skipped", "id", n.ID, "err", err)
		return false
	case err != nil:
		s.opts.Logger.Warn("retry: attempt failed", "id", n.ID, "err", err)
		st.Errors++
		return false
	}
	if out.Status == model.StatusSent {
		st.Sent++
	} else {
		st.Failed++
	}
	return true
}

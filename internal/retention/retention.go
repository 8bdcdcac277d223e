// Package retention purges read notifications past their retention window,
// optionally archiving them first.
package retention

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alfredjeanlab/notifyd/internal/events"
	"github.com/alfredjeanlab/notifyd/internal/metrics"
	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/store"
)

// DefaultDays is how long read notifications are kept.
const DefaultDays = 30

// Result summarizes one sweep.
type Result struct {
	Cutoff   time.Time `json:"cutoff"`
	Archived int       `json:"archived"`
	Deleted  int64     `json:"deleted"`
}

// Options configure a Job. Zero values pick the defaults.
type Options struct {
	// Schedule is a cron spec; descriptors like "@daily" are accepted.
	Schedule string
	// Days is the default retention window. Default: DefaultDays.
	Days int
	// Archive receives the records before deletion; nil skips archiving.
	Archive Archive
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Job deletes READ notifications older than the retention window, on a
// schedule or on demand.
type Job struct {
	store  store.Store
	opts   Options
	logger *slog.Logger
	parser cron.Parser

	// runMu serializes sweeps from the schedule and on-demand callers.
	runMu  sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// New creates a retention job over s.
func New(s store.Store, opts Options) *Job {
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if opts.Schedule == "" {
		opts.Schedule = "@daily"
	}
	if opts.Events == nil {
		opts.Events = &events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Job{
		store:  s,
		opts:   opts,
		logger: opts.Logger,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start schedules periodic sweeps. It fails if the schedule does not parse.
func (j *Job) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithParser(j.parser))
	if _, err := c.AddFunc(j.opts.Schedule, func() {
		if _, err := j.Run(ctx, 0); err != nil {
			j.logger.Error("retention sweep failed", "err", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("parse retention schedule %q: %w", j.opts.Schedule, err)
	}
	j.cron = c
	j.cancel = cancel
	c.Start()
	return nil
}

// Stop cancels a sweep in progress and waits for it to return.
func (j *Job) Stop() {
	if j.cron == nil {
		return
	}
	j.cancel()
	<-j.cron.Stop().Done()
}

// Run performs one sweep for records older than days, or the configured
// window when days is not positive. When an archive is configured and the
// upload fails, nothing is deleted.
func (j *Job) Run(ctx context.Context, days int) (Result, error) {
	j.runMu.Lock()
	defer j.runMu.Unlock()

	if days <= 0 {
		days = j.opts.Days
	}
	now := j.opts.Now()
	res := Result{Cutoff: now.AddDate(0, 0, -days).UTC()}

	if j.opts.Archive != nil {
		old, err := j.store.ListOlderThan(ctx, res.Cutoff, model.StatusRead, 0)
		if err != nil {
			return res, fmt.Errorf("list expired notifications: %w", err)
		}
		if len(old) > 0 {
			var buf bytes.Buffer
			if err := ExportJSONL(&buf, old, res.Cutoff, now); err != nil {
				return res, err
			}
			if err := j.opts.Archive.Write(ctx, now, buf.Bytes()); err != nil {
				return res, fmt.Errorf("archive expired notifications: %w", err)
			}
			res.Archived = len(old)
		}
	}

	deleted, err := j.store.DeleteOlderThan(ctx, res.Cutoff, model.StatusRead)
	if err != nil {
		return res, fmt.Errorf("delete expired notifications: %w", err)
	}
	res.Deleted = deleted

	j.opts.Metrics.AddCleanedUp(deleted)
	if err := j.opts.Events.Publish(ctx, events.TopicCleanupCompleted, events.CleanupCompleted{
		Cutoff:   res.Cutoff,
		Archived: res.Archived,
		Deleted:  res.Deleted,
	}); err != nil {
		j.logger.Warn("publish cleanup event", "err", err)
	}
	j.logger.Info("retention sweep completed",
		"cutoff", res.Cutoff,
		"archived", res.Archived,
		"deleted", res.Deleted)
	return res, nil
}

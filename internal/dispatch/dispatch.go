// Package dispatch fans one event out to every live connection of a
// recipient, or of every present recipient.
//
// Delivery is best effort: each handle is sent to independently, in its own
// goroutine and under its own timeout, so a slow or broken connection can
// neither stall nor abort delivery to the others. Nothing is queued or
// retried here; durability is the delivery record's job.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/presence"
	"golang.org/x/sync/errgroup"
)

// Outcome is the aggregate result of one fan-out.
type Outcome string

const (
	// OutcomeDelivered means at least one handle accepted the frame.
	OutcomeDelivered Outcome = "DELIVERED"
	// OutcomeNoRecipients means the recipient had no live handle. It is a
	// normal outcome, not an error.
	OutcomeNoRecipients Outcome = "NO_RECIPIENTS"
	// OutcomeAllFailed means every handle rejected the frame.
	OutcomeAllFailed Outcome = "ALL_FAILED"
)

// Result describes one fan-out.
type Result struct {
	Outcome   Outcome
	Attempted int
	Succeeded int
	// Err is the last per-handle error seen, kept for failure reasons.
	Err error
}

// Reason returns a short human-readable explanation for a non-delivered
// outcome, suitable for a record's failure reason.
func (r Result) Reason() string {
	switch r.Outcome {
	case OutcomeNoRecipients:
		return "recipient has no live connections"
	case OutcomeAllFailed:
		if r.Err != nil {
			return fmt.Sprintf("all %d connection(s) failed: %v", r.Attempted, r.Err)
		}
		return fmt.Sprintf("all %d connection(s) failed", r.Attempted)
	}
	return ""
}

// Directory resolves a recipient, or everyone, to a snapshot of live
// handles. *presence.Registry satisfies it.
type Directory interface {
	HandlesFor(recipient string) []presence.Handle
	All() []presence.Handle
}

// Options tune a Dispatcher. Zero values pick the defaults.
type Options struct {
	// SendTimeout bounds each individual send. Default: 2s.
	SendTimeout time.Duration
	// Concurrency caps the sends in flight for one dispatch. Default: 16.
	Concurrency int
	Logger      *slog.Logger
}

// Dispatcher pushes events to the handles a Directory returns.
type Dispatcher struct {
	dir         Directory
	sendTimeout time.Duration
	concurrency int
	log         *slog.Logger
}

// New creates a Dispatcher over dir.
func New(dir Directory, opts Options) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 2 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 16
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		dir:         dir,
		sendTimeout: opts.SendTimeout,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
}

// Dispatch encodes payload as JSON and pushes it as event to every live
// handle of recipient. Per-handle failures are logged and folded into the
// outcome; they are never returned individually.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient, event string, payload any) Result {
	return d.fanOut(ctx, recipient, d.dir.HandlesFor(recipient), event, payload)
}

// Broadcast pushes event to every live handle of every recipient, with the
// same per-handle isolation as Dispatch.
func (d *Dispatcher) Broadcast(ctx context.Context, event string, payload any) Result {
	return d.fanOut(ctx, "*", d.dir.All(), event, payload)
}

func (d *Dispatcher) fanOut(ctx context.Context, recipient string, handles []presence.Handle, event string, payload any) Result {
	if len(handles) == 0 {
		d.log.Debug("dispatch: no live connections", "recipient", recipient, "event", event)
		return Result{Outcome: OutcomeNoRecipients}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("dispatch: encoding payload", "recipient", recipient, "event", event, "error", err)
		return Result{Outcome: OutcomeAllFailed, Attempted: len(handles), Err: fmt.Errorf("encoding payload: %w", err)}
	}
	frame := presence.Frame{Event: event, Data: data}

	var (
		succeeded atomic.Int64
		errMu     sync.Mutex
		lastErr   error
	)
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, h := range handles {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			if err := h.Send(sendCtx, frame); err != nil {
				d.log.Warn("dispatch: send failed",
					"recipient", recipient,
					"handle", h.ID(),
					"event", event,
					"error", err)
				errMu.Lock()
				lastErr = err
				errMu.Unlock()
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Attempted: len(handles),
		Succeeded: int(succeeded.Load()),
		Err:       lastErr,
	}
	if res.Succeeded > 0 {
		res.Outcome = OutcomeDelivered
	} else {
		res.Outcome = OutcomeAllFailed
		if res.Err == nil {
			res.Err = errors.New("no connection accepted the event")
		}
	}
	d.log.Debug("dispatch: fan-out complete",
		"recipient", recipient,
		"event", event,
		"outcome", res.Outcome,
		"attempted", res.Attempted,
		"succeeded", res.Succeeded)
	return res
}

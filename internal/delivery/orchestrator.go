// Package delivery turns accepted notifications into durable records, pushes
// them to the recipient's live connections and drives each record through
// its status lifecycle.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/notifyd/internal/dispatch"
	"github.com/alfredjeanlab/notifyd/internal/events"
	"github.com/alfredjeanlab/notifyd/internal/idgen"
	"github.com/alfredjeanlab/notifyd/internal/metrics"
	"github.com/alfredjeanlab/notifyd/internal/model"
	"github.com/alfredjeanlab/notifyd/internal/store"
)

// EventNotification is the event name a record projection is pushed under.
const EventNotification = "notification"

const (
	// DefaultListLimit applies when a listing asks for no explicit limit.
	DefaultListLimit = 50
	// MaxListLimit caps a single listing.
	MaxListLimit = 500

	// maxConflictAttempts bounds how often a transition is retried after a
	// concurrent status change.
	maxConflictAttempts = 3
)

// ErrRetriesExhausted is returned when re-arming a record that has used up
// its retry budget.
var ErrRetriesExhausted = errors.New("notification has no retries left")

// Dispatcher fans an event out to a recipient's live connections, or to all
// of them. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient, event string, payload any) dispatch.Result
	Broadcast(ctx context.Context, event string, payload any) dispatch.Result
}

// Options wires the optional collaborators of an Orchestrator.
type Options struct {
	Events  events.Publisher
	Metrics *metrics.Metrics
	Collars CollarDirectory
	Logger  *slog.Logger
	// MaxRetries is the retry budget of submissions that set none.
	// Nil means model.DefaultMaxRetries.
	MaxRetries *int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Orchestrator owns the notification lifecycle.
type Orchestrator struct {
	store      store.Store
	dispatcher Dispatcher
	events     events.Publisher
	metrics    *metrics.Metrics
	collars    CollarDirectory
	log        *slog.Logger
	maxRetries int
	now        func() time.Time
}

// New creates an Orchestrator persisting to s and delivering through d.
func New(s store.Store, d Dispatcher, opts Options) *Orchestrator {
	if opts.Events == nil {
		opts.Events = &events.NoopPublisher{}
	}
	if opts.Collars == nil {
		opts.Collars = NewStaticDirectory(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	maxRetries := model.DefaultMaxRetries
	if opts.MaxRetries != nil {
		maxRetries = *opts.MaxRetries
	}
	return &Orchestrator{
		store:      s,
		dispatcher: d,
		events:     opts.Events,
		metrics:    opts.Metrics,
		collars:    opts.Collars,
		log:        opts.Logger,
		maxRetries: maxRetries,
		now:        opts.Now,
	}
}

// Submit validates in, persists it as PENDING and delivers it. A delivery
// failure is recorded on the returned record, not returned as an error; only
// validation and persistence failures are. The submitter going away does not
// cancel the write or the fan-out.
func (o *Orchestrator) Submit(ctx context.Context, in model.NewNotification) (*model.Notification, error) {
	ctx = context.WithoutCancel(ctx)
	if in.MaxRetries == nil {
		n := o.maxRetries
		in.MaxRetries = &n
	}
	in.Normalize()
	if err := model.ValidateNewNotification(&in); err != nil {
		return nil, err
	}

	id, err := idgen.NewNotificationID()
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	n := &model.Notification{
		ID:         id,
		Type:       in.Type,
		Priority:   in.Priority,
		Status:     model.StatusPending,
		OwnerID:    in.OwnerID,
		PetID:      in.PetID,
		PetName:    in.PetName,
		CollarID:   in.CollarID,
		Title:      in.Title,
		Message:    in.Message,
		Payload:    in.Payload,
		Metadata:   in.Metadata,
		MaxRetries: *in.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	o.metrics.IncSubmitted(string(n.Type), string(n.Priority))
	o.publish(ctx, events.TopicNotificationCreated, events.NotificationCreated{Notification: n})
	o.log.Info("notification accepted",
		"id", n.ID,
		"owner", n.OwnerID,
		"type", n.Type,
		"priority", n.Priority)

	return o.deliver(ctx, n)
}

// Deliver pushes a PENDING record to its recipient and records the outcome.
// Like Submit, it is not canceled by ctx.
func (o *Orchestrator) Deliver(ctx context.Context, id string) (*model.Notification, error) {
	ctx = context.WithoutCancel(ctx)
	n, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != model.StatusPending {
		return nil, &model.TransitionError{ID: n.ID, From: n.Status, To: model.StatusSent}
	}
	return o.deliver(ctx, n)
}

func (o *Orchestrator) deliver(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	start := time.Now()
	res := o.dispatcher.Dispatch(ctx, n.OwnerID, EventNotification, n.Project())
	o.metrics.ObserveDispatch(string(res.Outcome), time.Since(start))

	tr := model.Transition{To: model.StatusSent, At: o.now()}
	if res.Outcome != dispatch.OutcomeDelivered {
		tr = model.Transition{To: model.StatusFailed, At: o.now(), Reason: res.Reason()}
	}

	updated, err := o.transition(ctx, n, tr, res)
	if errors.Is(err, model.ErrInvalidTransition) {
		// Another writer moved the record on while the fan-out ran.
		o.log.Warn("delivery outcome superseded", "id", n.ID, "outcome", res.Outcome, "error", err)
		return o.Get(ctx, n.ID)
	}
	if err != nil {
		return nil, err
	}

	if updated.Status == model.StatusSent {
		o.log.Info("notification sent",
			"id", updated.ID,
			"owner", updated.OwnerID,
			"connections", res.Succeeded,
			"attempted", res.Attempted)
	} else {
		o.log.Warn("notification not delivered",
			"id", updated.ID,
			"owner", updated.OwnerID,
			"outcome", res.Outcome,
			"reason", updated.FailureReason,
			"retry_count", updated.RetryCount)
	}
	return updated, nil
}

// MarkRead records that the recipient read the notification. Only SENT and
// DELIVERED records can be read.
func (o *Orchestrator) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	return o.move(ctx, id, model.Transition{To: model.StatusRead})
}

// MarkDelivered records a client acknowledgement of receipt.
func (o *Orchestrator) MarkDelivered(ctx context.Context, id string) (*model.Notification, error) {
	return o.move(ctx, id, model.Transition{To: model.StatusDelivered})
}

// MarkFailed records a failure detected after the record was sent.
func (o *Orchestrator) MarkFailed(ctx context.Context, id, reason string) (*model.Notification, error) {
	return o.move(ctx, id, model.Transition{To: model.StatusFailed, Reason: reason})
}

// Rearm moves a FAILED record with retries left back to PENDING.
func (o *Orchestrator) Rearm(ctx context.Context, id string) (*model.Notification, error) {
	n, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status == model.StatusFailed && !n.CanRetry() {
		return nil, fmt.Errorf("notification %s: %w", id, ErrRetriesExhausted)
	}
	return o.transition(ctx, n, model.Transition{To: model.StatusPending, At: o.now()}, dispatch.Result{})
}

// Retry re-arms a FAILED record and delivers it again.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*model.Notification, error) {
	ctx = context.WithoutCancel(ctx)
	n, err := o.Rearm(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.deliver(ctx, n)
}

func (o *Orchestrator) move(ctx context.Context, id string, tr model.Transition) (*model.Notification, error) {
	n, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tr.At = o.now()
	return o.transition(ctx, n, tr, dispatch.Result{})
}

// transition applies tr to n and persists it conditionally on n's status.
// When the stored status changed underneath, the record is reloaded and the
// transition re-evaluated against the fresh state.
func (o *Orchestrator) transition(ctx context.Context, n *model.Notification, tr model.Transition, res dispatch.Result) (*model.Notification, error) {
	current := n
	for attempt := 1; ; attempt++ {
		updated, err := tr.Apply(current)
		if err != nil {
			return nil, err
		}

		err = o.store.UpdateStatus(ctx, current.ID, current.Status, store.UpdateOf(updated))
		if err == nil {
			o.metrics.IncTransition(string(updated.Status))
			o.publish(ctx, events.TopicForStatus(updated.Status), events.StatusChanged{
				ID:        updated.ID,
				OwnerID:   updated.OwnerID,
				From:      current.Status,
				To:        updated.Status,
				Reason:    updated.FailureReason,
				Attempted: res.Attempted,
				Succeeded: res.Succeeded,
				At:        updated.UpdatedAt,
			})
			return updated, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= maxConflictAttempts {
			return nil, fmt.Errorf("update notification %s: %w", current.ID, err)
		}

		if current, err = o.Get(ctx, current.ID); err != nil {
			return nil, err
		}
	}
}

// Broadcast pushes a transient event to every open stream. Nothing is
// persisted; the result only reports how many connections took it.
func (o *Orchestrator) Broadcast(ctx context.Context, event string, payload any) (dispatch.Result, error) {
	event = strings.TrimSpace(event)
	if event == "" {
		return dispatch.Result{}, &model.ValidationError{Errors: []model.FieldError{{Field: "event", Message: "is required"}}}
	}
	if event == EventNotification {
		return dispatch.Result{}, &model.ValidationError{Errors: []model.FieldError{{Field: "event", Message: "is reserved"}}}
	}

	start := time.Now()
	res := o.dispatcher.Broadcast(context.WithoutCancel(ctx), event, payload)
	o.metrics.ObserveDispatch(string(res.Outcome), time.Since(start))
	o.log.Info("broadcast",
		"event", event,
		"outcome", res.Outcome,
		"attempted", res.Attempted,
		"succeeded", res.Succeeded)
	return res, nil
}

// Get returns one record.
func (o *Orchestrator) Get(ctx context.Context, id string) (*model.Notification, error) {
	n, err := o.store.GetNotification(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get notification %s: %w", id, err)
	}
	return n, nil
}

// ListByOwner returns the owner's records, newest first. A non-positive
// limit means DefaultListLimit.
func (o *Orchestrator) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	list, err := o.store.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", ownerID, err)
	}
	return list, nil
}

// UnreadCount counts the owner's records that reached a device but were not
// read yet.
func (o *Orchestrator) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	n, err := o.store.CountByStatus(ctx, ownerID, model.StatusSent, model.StatusDelivered)
	if err != nil {
		return 0, fmt.Errorf("count unread for %s: %w", ownerID, err)
	}
	return n, nil
}

func (o *Orchestrator) publish(ctx context.Context, topic string, event any) {
	if err := o.events.Publish(ctx, topic, event); err != nil {
		o.log.Warn("publish event", "topic", topic, "error", err)
	}
}

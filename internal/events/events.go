// Package events emits structured audit events for notification
// processing decisions. Policy code returns value decisions; emitting
// is the separate I/O step performed here.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bouncewatch/internal/metrics"
	"bouncewatch/internal/recipient"
)

// Kind identifies the event type
type Kind string

const (
	KindNotificationReceived Kind = "notification_received"
	KindOverThreshold        Kind = "over_bounce_threshold"
	KindCountReset           Kind = "bounce_count_reset"
)

// ResetReason distinguishes how a counter reset was triggered
type ResetReason string

const (
	// ResetManual is an operator-initiated reset, attributable to an actor
	ResetManual ResetReason = "manual"
	// ResetDelivery is an automatic reset after a successful delivery
	ResetDelivery ResetReason = "delivery"
)

// Description returns the human readable reason tag
func (r ResetReason) Description() string {
	if r == ResetDelivery {
		return "because an email was delivered successfully"
	}
	return "manually"
}

// Event is one emitted domain event
type Event struct {
	ID          string      `json:"id"`
	Kind        Kind        `json:"kind"`
	RecipientID int64       `json:"recipient_id,omitempty"`
	ActorID     int64       `json:"actor_id,omitempty"`
	Email       string      `json:"email,omitempty"`
	Reason      ResetReason `json:"reason,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Handler consumes emitted events, e.g. the host system's audit layer
type Handler interface {
	HandleEvent(ctx context.Context, e Event)
}

// Emitter builds and fans out events to slog and registered handlers
type Emitter struct {
	logger   *slog.Logger
	handlers []Handler
}

// NewEmitter creates an emitter logging through logger
func NewEmitter(logger *slog.Logger, handlers ...Handler) *Emitter {
	return &Emitter{logger: logger, handlers: handlers}
}

// NotificationReceived records that one bounce or complaint
// notification arrived. Emitted once per notification regardless of how
// many recipients share the address.
func (e *Emitter) NotificationReceived(ctx context.Context, email, summary string) Event {
	ev := e.newEvent(KindNotificationReceived)
	ev.Email = email
	ev.Summary = summary

	e.logger.Info("notification received",
		"event_id", ev.ID,
		"email", email,
		"summary", summary,
	)
	if m := metrics.Global(); m != nil {
		m.EventsEmittedTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	e.dispatch(ctx, ev)
	return ev
}

// ThresholdCrossed records that a recipient moved over the bounce
// threshold
func (e *Emitter) ThresholdCrossed(ctx context.Context, r recipient.Recipient) Event {
	ev := e.newEvent(KindOverThreshold)
	ev.RecipientID = r.ID
	ev.Email = r.Email

	e.logger.Warn("recipient over bounce threshold",
		"event_id", ev.ID,
		"recipient_id", r.ID,
		"email", r.Email,
	)
	if m := metrics.Global(); m != nil {
		m.ThresholdCrossedTotal.Inc()
		m.EventsEmittedTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	e.dispatch(ctx, ev)
	return ev
}

// CountReset records a counter reset. actorID is zero for automatic,
// delivery-triggered resets.
func (e *Emitter) CountReset(ctx context.Context, r recipient.Recipient, actorID int64, reason ResetReason) Event {
	ev := e.newEvent(KindCountReset)
	ev.RecipientID = r.ID
	ev.ActorID = actorID
	ev.Email = r.Email
	ev.Reason = reason

	e.logger.Info("bounce count reset "+reason.Description(),
		"event_id", ev.ID,
		"recipient_id", r.ID,
		"actor_id", actorID,
		"reason", string(reason),
	)
	if m := metrics.Global(); m != nil {
		m.CountResetsTotal.WithLabelValues(string(reason)).Inc()
		m.EventsEmittedTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	e.dispatch(ctx, ev)
	return ev
}

func (e *Emitter) newEvent(kind Kind) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		OccurredAt: time.Now(),
	}
}

func (e *Emitter) dispatch(ctx context.Context, ev Event) {
	for _, h := range e.handlers {
		h.HandleEvent(ctx, ev)
	}
}

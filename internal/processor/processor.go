// Package processor drives notification handling end to end: parse,
// classify, resolve recipients, apply the accounting engine, persist
// and emit events.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"bouncewatch/internal/events"
	"bouncewatch/internal/metrics"
	"bouncewatch/internal/notification"
	"bouncewatch/internal/policy"
	"bouncewatch/internal/recipient"
	"bouncewatch/internal/store"
)

// Result summarizes what one notification caused
type Result struct {
	Notification *notification.Notification
	// Recipients that matched the destination address
	Recipients []recipient.Recipient
	// Recipients that moved over the threshold by this notification
	Crossed []recipient.Recipient
	// Resets performed (delivery notifications in consecutive mode)
	Resets []recipient.Recipient
	// Logged reports whether an audit log entry was written
	Logged bool
}

// Processor applies the bounce handling pipeline
type Processor struct {
	store    *store.Store
	resolver *recipient.Resolver
	emitter  *events.Emitter
	policy   policy.Config
	logger   *slog.Logger
}

// New creates a processor. cfg must already be resolved.
func New(st *store.Store, resolver *recipient.Resolver, emitter *events.Emitter, cfg policy.Config, logger *slog.Logger) *Processor {
	return &Processor{
		store:    st,
		resolver: resolver,
		emitter:  emitter,
		policy:   cfg,
		logger:   logger.With("component", "processor"),
	}
}

// Policy returns the resolved policy the processor runs with
func (p *Processor) Policy() policy.Config {
	return p.policy
}

// HandleNotification parses one SES notification payload and applies
// it. Parse failures return a *notification.ParseError and mutate
// nothing. When handling is disabled, bounces and complaints are still
// logged but no counters move.
func (p *Processor) HandleNotification(ctx context.Context, raw []byte) (*Result, error) {
	n, err := notification.Parse(raw)
	if err != nil {
		if m := metrics.Global(); m != nil {
			m.NotificationsRejectedTotal.Inc()
		}
		return nil, err
	}

	if m := metrics.Global(); m != nil {
		m.NotificationsReceivedTotal.WithLabelValues(string(n.Type)).Inc()
	}

	switch {
	case n.IsDelivery():
		return p.handleDelivery(ctx, n)
	case n.IsBounce():
		return p.handleBounce(ctx, n)
	default:
		return p.handleComplaint(ctx, n)
	}
}

// handleBounce logs the notification, emits a single received event
// and fans the accounting out over every recipient sharing the
// destination address.
func (p *Processor) handleBounce(ctx context.Context, n *notification.Notification) (*Result, error) {
	res := &Result{Notification: n}

	if err := p.appendLog(ctx, n); err != nil {
		return nil, err
	}
	res.Logged = true
	p.emitter.NotificationReceived(ctx, recipient.NormalizeEmail(n.Destination()), n.Summary())

	class := notification.Classify(n.SubtypeKey())
	if m := metrics.Global(); m != nil {
		domain := recipient.Domain(n.Destination(), "unknown")
		m.BouncesProcessedTotal.WithLabelValues(class.String(), domain).Inc()
	}

	recipients, err := p.resolver.Resolve(ctx, n.Destination())
	if err != nil {
		return nil, err
	}
	res.Recipients = recipients

	if !p.policy.Enabled {
		p.logger.Debug("bounce handling disabled, notification logged only",
			"email", n.Destination())
		return res, nil
	}

	for _, r := range recipients {
		var decision policy.Decision
		_, err := p.store.UpdateCounters(ctx, r.ID, func(c recipient.Counters) (recipient.Counters, bool) {
			decision = policy.ProcessBounce(n, c, p.policy)
			return decision.Counters, decision.Changed
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update counters for recipient %d: %w", r.ID, err)
		}

		p.logger.Info("bounce accounted",
			"recipient_id", r.ID,
			"email", r.Email,
			"subtypes", n.SubtypeKey(),
			"action", decision.Action.String(),
			"bounce_count", decision.Counters.BounceCount,
			"send_count", decision.Counters.SendCount,
			"over_threshold", decision.OverThreshold,
		)

		if decision.Crossed {
			p.emitter.ThresholdCrossed(ctx, r)
			res.Crossed = append(res.Crossed, r)
		}
	}

	return res, nil
}

// handleComplaint records the notification without touching counters.
// Complaints feed the audit trail only.
func (p *Processor) handleComplaint(ctx context.Context, n *notification.Notification) (*Result, error) {
	res := &Result{Notification: n}

	if err := p.appendLog(ctx, n); err != nil {
		return nil, err
	}
	res.Logged = true
	p.emitter.NotificationReceived(ctx, recipient.NormalizeEmail(n.Destination()), n.Summary())

	recipients, err := p.resolver.Resolve(ctx, n.Destination())
	if err != nil {
		return nil, err
	}
	res.Recipients = recipients

	p.logger.Info("complaint recorded",
		"email", n.Destination(),
		"subtypes", n.SubtypeKey(),
		"recipients", len(recipients),
	)
	return res, nil
}

// handleDelivery resets consecutive-mode counters. Deliveries are not
// logged and emit no received event.
func (p *Processor) handleDelivery(ctx context.Context, n *notification.Notification) (*Result, error) {
	res := &Result{Notification: n}

	if !p.policy.Enabled || !p.policy.UseConsecutive() {
		return res, nil
	}

	recipients, err := p.resolver.Resolve(ctx, n.Destination())
	if err != nil {
		return nil, err
	}
	res.Recipients = recipients

	for _, r := range recipients {
		var decision policy.Decision
		_, err := p.store.UpdateCounters(ctx, r.ID, func(c recipient.Counters) (recipient.Counters, bool) {
			decision = policy.ProcessDelivery(c, p.policy)
			return decision.Counters, decision.Changed
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reset counters for recipient %d: %w", r.ID, err)
		}

		if decision.Changed {
			p.emitter.CountReset(ctx, r, 0, events.ResetDelivery)
			res.Resets = append(res.Resets, r)
		}
	}

	return res, nil
}

// ResetRecipient performs an operator-initiated counter reset. actorID
// identifies who asked for it and ends up on the emitted event.
// Returns whether anything changed.
func (p *Processor) ResetRecipient(ctx context.Context, recipientID, actorID int64) (bool, error) {
	r, err := p.store.Recipient(ctx, recipientID)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, fmt.Errorf("recipient %d not found", recipientID)
	}

	var decision policy.Decision
	_, err = p.store.UpdateCounters(ctx, recipientID, func(c recipient.Counters) (recipient.Counters, bool) {
		decision = policy.ManualReset(c, p.policy)
		return decision.Counters, decision.Changed
	})
	if err != nil {
		return false, fmt.Errorf("failed to reset counters for recipient %d: %w", recipientID, err)
	}

	if decision.Changed {
		p.emitter.CountReset(ctx, *r, actorID, events.ResetManual)
	}
	return decision.Changed, nil
}

// ResetByEmail resets every recipient registered for an address and
// returns the ones that actually changed.
func (p *Processor) ResetByEmail(ctx context.Context, emailAddr string, actorID int64) ([]recipient.Recipient, error) {
	recipients, err := p.resolver.Resolve(ctx, emailAddr)
	if err != nil {
		return nil, err
	}

	var changed []recipient.Recipient
	for _, r := range recipients {
		ok, err := p.ResetRecipient(ctx, r.ID, actorID)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = append(changed, r)
		}
	}
	return changed, nil
}

func (p *Processor) appendLog(ctx context.Context, n *notification.Notification) error {
	entry := store.LogEntry{
		Email:    recipient.NormalizeEmail(n.Destination()),
		Type:     string(n.Type),
		Subtypes: n.SubtypeKey(),
	}
	if err := p.store.AppendLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}
	return nil
}

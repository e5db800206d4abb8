package policy

import (
	"bouncewatch/internal/notification"
	"bouncewatch/internal/recipient"
)

// Action describes the counter transition chosen for one recipient
type Action int

const (
	// ActionNone leaves the counters untouched
	ActionNone Action = iota
	// ActionReset clears the counters after a successful delivery or a
	// manual reset
	ActionReset
	// ActionIncrementSoft increments the bounce count by one
	ActionIncrementSoft
	// ActionForceOver floors the bounce count so the recipient is
	// immediately over the threshold
	ActionForceOver
)

func (a Action) String() string {
	switch a {
	case ActionReset:
		return "reset"
	case ActionIncrementSoft:
		return "increment_soft"
	case ActionForceOver:
		return "force_over_threshold"
	default:
		return "none"
	}
}

// Decision is the outcome of one accounting transition for one
// recipient. Changed reports whether the counters must be persisted;
// Crossed reports a not-over to over threshold transition.
type Decision struct {
	Counters      recipient.Counters
	Action        Action
	OverThreshold bool
	Changed       bool
	Crossed       bool
	// ClearSend distinguishes a reset of both counters from a reset of
	// the bounce count alone
	ClearSend bool
}

// OverThreshold reports whether the counters put a recipient over the
// bounce threshold. In ratio mode the ratio requirement is false when
// no sends are recorded; in consecutive mode the ratio check is
// bypassed entirely.
func OverThreshold(c recipient.Counters, p Config) bool {
	bounceReq := c.BounceCount >= p.MinBounces
	ratioReq := true
	if p.UseRatio() {
		ratioReq = c.SendCount > 0 && c.Ratio() >= p.BounceRatio
	}
	return bounceReq && ratioReq
}

// ProcessBounce computes the counter transition for one bounce
// notification. Recipients already over the threshold are left alone,
// which makes duplicate and overlapping notifications idempotent.
func ProcessBounce(n *notification.Notification, c recipient.Counters, p Config) Decision {
	if OverThreshold(c, p) {
		return Decision{Counters: c, Action: ActionNone, OverThreshold: true}
	}

	d := Decision{Counters: c}

	switch notification.Classify(n.SubtypeKey()) {
	case notification.ClassBlockImmediately:
		// Floor guarantees the recipient shows up as over threshold
		// even with low send volume
		d.Counters.BounceCount = max(c.SendCount, p.MinBounces)
		d.Action = ActionForceOver
	case notification.ClassBlockSoftly:
		d.Counters.BounceCount++
		d.Action = ActionIncrementSoft
	default:
		d.Action = ActionNone
	}

	// Legacy backfill: send tracking was added after bounce tracking,
	// so a bounce count without a send count inherits it. This also
	// keeps ratio computations away from bounce/0.
	if d.Counters.SendCount == 0 && d.Counters.BounceCount > 0 {
		d.Counters.SendCount = d.Counters.BounceCount
	}

	d.Changed = d.Counters != c
	d.OverThreshold = OverThreshold(d.Counters, p)
	d.Crossed = d.OverThreshold
	return d
}

// ProcessDelivery computes the counter transition for a successful
// delivery. Only consecutive mode acts on deliveries; ratio mode
// ignores them. A recipient with no recorded bounces yields no change
// and no event.
func ProcessDelivery(c recipient.Counters, p Config) Decision {
	if !p.UseConsecutive() || c.BounceCount == 0 {
		return Decision{Counters: c, Action: ActionNone, OverThreshold: OverThreshold(c, p)}
	}
	return Decision{
		Counters:  recipient.Counters{},
		Action:    ActionReset,
		Changed:   true,
		ClearSend: true,
	}
}

// ManualReset computes the counter transition for an operator-initiated
// reset. The bounce count is always cleared; the send count is cleared
// only in ratio mode, where a stale send count would leave an
// artificially deflated historical ratio. Returns a no-op decision when
// the targeted fields are already empty.
func ManualReset(c recipient.Counters, p Config) Decision {
	clearSend := p.UseRatio()

	changed := c.BounceCount != 0 || (clearSend && c.SendCount != 0)
	if !changed {
		return Decision{Counters: c, Action: ActionNone}
	}

	next := c
	next.BounceCount = 0
	if clearSend {
		next.SendCount = 0
	}

	return Decision{
		Counters:  next,
		Action:    ActionReset,
		Changed:   true,
		ClearSend: clearSend,
	}
}

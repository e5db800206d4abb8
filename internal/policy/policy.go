// Package policy implements the bounce threshold policy: effective
// configuration resolution and the pure accounting state transitions
// applied to recipient counters. Nothing in this package performs I/O;
// callers persist counters and emit events based on the returned
// decisions.
package policy

// Default thresholds applied when settings are absent
const (
	DefaultMinBounces  = 10
	DefaultBounceRatio = 0.2
)

// Settings are the raw, externally supplied policy values. BounceRatio
// is a pointer so that an explicit non-positive value (which selects
// consecutive mode) can be told apart from an unset one.
type Settings struct {
	Enabled     bool
	MinBounces  int
	BounceRatio *float64
}

// Config is the resolved policy passed by value into every accounting
// call. It is never read from ambient state inside the engine.
type Config struct {
	Enabled     bool
	MinBounces  int
	BounceRatio float64
}

// Resolve derives the effective policy from raw settings
func Resolve(s Settings) Config {
	cfg := Config{
		Enabled:     s.Enabled,
		MinBounces:  s.MinBounces,
		BounceRatio: DefaultBounceRatio,
	}
	if cfg.MinBounces <= 0 {
		cfg.MinBounces = DefaultMinBounces
	}
	if s.BounceRatio != nil {
		cfg.BounceRatio = *s.BounceRatio
	}
	return cfg
}

// UseRatio reports whether ratio mode is active. Exactly one mode is
// active at a time; a non-positive ratio disables ratio checking.
func (c Config) UseRatio() bool {
	return c.BounceRatio > 0
}

// UseConsecutive reports whether consecutive-count mode is active
func (c Config) UseConsecutive() bool {
	return !c.UseRatio()
}

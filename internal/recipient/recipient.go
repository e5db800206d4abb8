// Package recipient defines recipient identities and their bounce counters.
package recipient

import "strings"

// Recipient is a registered mail recipient. Multiple recipients may
// share one email address (shared-mailbox semantics).
type Recipient struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Counters is the mutable per-recipient bounce accounting state.
// A missing record is equivalent to the zero value.
type Counters struct {
	BounceCount int `json:"bounce_count"`
	SendCount   int `json:"send_count"`
}

// IsZero reports whether both counters are unset
func (c Counters) IsZero() bool {
	return c.BounceCount == 0 && c.SendCount == 0
}

// Ratio returns bounce/send, or 0 when no sends are recorded
func (c Counters) Ratio() float64 {
	if c.SendCount == 0 {
		return 0
	}
	return float64(c.BounceCount) / float64(c.SendCount)
}

// NormalizeEmail canonicalizes an address for matching and storage keys
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Domain returns the lowercased domain part of an address, or fallback
// when the address has none. Used for metric labels, so it tolerates
// malformed input.
func Domain(email, fallback string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fallback
	}
	return strings.ToLower(email[at+1:])
}

package recipient

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Directory looks up registered recipients by address
type Directory interface {
	RecipientsByEmail(ctx context.Context, email string) ([]Recipient, error)
}

// Resolver maps a destination address to all matching recipients
type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

// NewResolver creates a resolver over a recipient directory
func NewResolver(dir Directory, logger *slog.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

// Resolve returns every recipient registered for the address, ordered by
// ascending ID so that "first recipient" selection is deterministic when
// an address is shared across accounts. An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, email string) ([]Recipient, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, fmt.Errorf("empty email address")
	}

	recipients, err := r.dir.RecipientsByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients for %s: %w", normalized, err)
	}

	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].ID < recipients[j].ID
	})

	if len(recipients) == 0 {
		r.logger.Debug("no recipients match address", "email", normalized)
	}

	return recipients, nil
}

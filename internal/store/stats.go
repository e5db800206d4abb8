package store

import (
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"bouncewatch/internal/policy"
	"bouncewatch/internal/recipient"
)

// Stats is a snapshot of the store used by metrics and health reporting
type Stats struct {
	Recipients    int `json:"recipients"`
	WithBounces   int `json:"with_bounces"`
	OverThreshold int `json:"over_threshold"`
	Suppressions  int `json:"suppressions"`
	LogEntries    int `json:"log_entries"`
}

// Stats walks the counter records and classifies them against the
// supplied policy
func (s *Store) Stats(ctx context.Context, cfg policy.Config) (*Stats, error) {
	stats := &Stats{}

	err := s.db.View(func(tx *bolt.Tx) error {
		stats.Recipients = tx.Bucket(bucketRecipients).Stats().KeyN
		stats.Suppressions = tx.Bucket(bucketSuppressions).Stats().KeyN
		stats.LogEntries = tx.Bucket(bucketLog).Stats().KeyN

		c := tx.Bucket(bucketCounters).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var counters recipient.Counters
			if err := json.Unmarshal(v, &counters); err != nil {
				continue
			}
			if counters.BounceCount > 0 {
				stats.WithBounces++
			}
			if policy.OverThreshold(counters, cfg) {
				stats.OverThreshold++
			}
		}
		return nil
	})

	return stats, err
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"bouncewatch/internal/recipient"
)

// LogEntry is one append-only audit record. Written for every bounce
// and complaint notification, never for deliveries.
type LogEntry struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Type      string    `json:"type"`
	Subtypes  string    `json:"subtypes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LogFilter narrows ListLog results
type LogFilter struct {
	Email  string
	Limit  int
	Offset int
}

// AppendLog appends a notification log entry. The entry ID is assigned
// here when empty.
func (s *Store) AppendLog(ctx context.Context, e LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal log entry: %w", err)
		}
		return tx.Bucket(bucketLog).Put(makeLogKey(e.CreatedAt, e.ID), data)
	})
}

// ListLog returns log entries, newest first
func (s *Store) ListLog(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	var entries []LogEntry

	filter.Email = recipient.NormalizeEmail(filter.Email)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLog).Cursor()
		skipped := 0

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e LogEntry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}

			if filter.Email != "" && e.Email != filter.Email {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			entries = append(entries, e)
			if filter.Limit > 0 && len(entries) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return entries, err
}

// CleanupLog removes log entries older than maxAge and returns how many
// were deleted
func (s *Store) CleanupLog(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLog).Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ts := parseTimestampFromKey(k)
			if ts.Before(cutoff) {
				toDelete = append(toDelete, append([]byte{}, k...))
			}
		}

		bucket := tx.Bucket(bucketLog)
		for _, k := range toDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})

	return deleted, err
}

// makeLogKey creates a sortable key from timestamp and ID
func makeLogKey(t time.Time, id string) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano) + ":" + id)
}

// parseTimestampFromKey extracts the timestamp from a log key
func parseTimestampFromKey(key []byte) time.Time {
	s := string(key)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			ts, _ := time.Parse(time.RFC3339Nano, s[:i])
			return ts
		}
	}
	return time.Time{}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"bouncewatch/internal/recipient"
)

// Suppression is one row of the local mirror of the provider's
// account-level suppression list
type Suppression struct {
	Email      string    `json:"email"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`
}

// UpsertSuppression inserts or refreshes a single suppression row
func (s *Store) UpsertSuppression(ctx context.Context, sup Suppression) error {
	sup.Email = recipient.NormalizeEmail(sup.Email)
	if sup.Email == "" {
		return fmt.Errorf("empty suppression email")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(sup)
		if err != nil {
			return fmt.Errorf("failed to marshal suppression: %w", err)
		}
		return tx.Bucket(bucketSuppressions).Put([]byte(sup.Email), data)
	})
}

// ReplaceSuppressions swaps the whole mirror for a freshly synced list
// in one transaction
func (s *Store) ReplaceSuppressions(ctx context.Context, sups []Suppression) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketSuppressions); err != nil {
			return fmt.Errorf("failed to drop suppressions: %w", err)
		}
		bucket, err := tx.CreateBucket(bucketSuppressions)
		if err != nil {
			return fmt.Errorf("failed to recreate suppressions: %w", err)
		}

		for _, sup := range sups {
			email := recipient.NormalizeEmail(sup.Email)
			if email == "" {
				continue
			}
			sup.Email = email
			data, err := json.Marshal(sup)
			if err != nil {
				return fmt.Errorf("failed to marshal suppression: %w", err)
			}
			if err := bucket.Put([]byte(email), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Suppressed returns the suppression row for an address, nil when the
// address is not on the list
func (s *Store) Suppressed(ctx context.Context, email string) (*Suppression, error) {
	var sup *Suppression
	email = recipient.NormalizeEmail(email)

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSuppressions).Get([]byte(email))
		if data == nil {
			return nil
		}
		sup = &Suppression{}
		return json.Unmarshal(data, sup)
	})

	return sup, err
}

// IsSuppressed reports whether an address is on the suppression list
func (s *Store) IsSuppressed(ctx context.Context, email string) (bool, error) {
	sup, err := s.Suppressed(ctx, email)
	return sup != nil, err
}

// ListSuppressions returns suppression rows ordered by address
func (s *Store) ListSuppressions(ctx context.Context, limit, offset int) ([]Suppression, error) {
	var result []Suppression

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSuppressions).Cursor()
		skipped := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			var sup Suppression
			if err := json.Unmarshal(v, &sup); err != nil {
				continue
			}
			result = append(result, sup)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})

	return result, err
}

// SuppressionCount returns the size of the mirror
func (s *Store) SuppressionCount(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketSuppressions).Stats().KeyN
		return nil
	})
	return count, err
}

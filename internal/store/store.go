// Package store persists recipient records, bounce counters, the
// notification audit log and the suppression list mirror in BoltDB.
package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"bouncewatch/internal/recipient"
)

var (
	bucketRecipients   = []byte("recipients")
	bucketEmailIndex   = []byte("email_index")
	bucketCounters     = []byte("counters")
	bucketLog          = []byte("notification_log")
	bucketSuppressions = []byte("suppressions")
)

// Store wraps the BoltDB database
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path
func Open(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecipients, bucketEmailIndex, bucketCounters, bucketLog, bucketSuppressions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying bolt.DB instance so collaborators can share
// the handle
func (s *Store) DB() *bolt.DB {
	return s.db
}

// Recipient registry

// PutRecipient registers a recipient for an address and returns it with
// an allocated ID. The same address may be registered multiple times
// for distinct accounts.
func (s *Store) PutRecipient(ctx context.Context, email string) (recipient.Recipient, error) {
	var r recipient.Recipient
	email = recipient.NormalizeEmail(email)
	if email == "" {
		return r, fmt.Errorf("empty email address")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		recipients := tx.Bucket(bucketRecipients)

		id, err := recipients.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate recipient id: %w", err)
		}

		r = recipient.Recipient{ID: int64(id), Email: email}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal recipient: %w", err)
		}
		if err := recipients.Put(itob(r.ID), data); err != nil {
			return fmt.Errorf("failed to store recipient: %w", err)
		}

		index := tx.Bucket(bucketEmailIndex)
		if err := index.Put(emailIndexKey(email, r.ID), itob(r.ID)); err != nil {
			return fmt.Errorf("failed to index recipient: %w", err)
		}

		return nil
	})

	return r, err
}

// Recipient retrieves a recipient by ID, nil when absent
func (s *Store) Recipient(ctx context.Context, id int64) (*recipient.Recipient, error) {
	var r *recipient.Recipient

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecipients).Get(itob(id))
		if data == nil {
			return nil
		}
		r = &recipient.Recipient{}
		return json.Unmarshal(data, r)
	})

	return r, err
}

// RecipientsByEmail returns every recipient registered for an address,
// ordered by ascending ID
func (s *Store) RecipientsByEmail(ctx context.Context, email string) ([]recipient.Recipient, error) {
	var result []recipient.Recipient
	email = recipient.NormalizeEmail(email)

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(bucketEmailIndex)
		recipients := tx.Bucket(bucketRecipients)

		prefix := append([]byte(email), 0)
		c := index.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			data := recipients.Get(v)
			if data == nil {
				continue
			}
			var r recipient.Recipient
			if err := json.Unmarshal(data, &r); err != nil {
				continue
			}
			result = append(result, r)
		}
		return nil
	})

	return result, err
}

// ListRecipients returns registered recipients with paging
func (s *Store) ListRecipients(ctx context.Context, limit, offset int) ([]recipient.Recipient, error) {
	var result []recipient.Recipient

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecipients).Cursor()
		skipped := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			var r recipient.Recipient
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			result = append(result, r)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})

	return result, err
}

// Counters

// Counters returns the stored counters for a recipient. A missing
// record is the zero value, not an error.
func (s *Store) Counters(ctx context.Context, recipientID int64) (recipient.Counters, error) {
	var c recipient.Counters

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCounters).Get(itob(recipientID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &c)
	})

	return c, err
}

// SetCounters overwrites the counters for a recipient
func (s *Store) SetCounters(ctx context.Context, recipientID int64, c recipient.Counters) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putCounters(tx, recipientID, c)
	})
}

// ClearFields selects which counter fields a clear operation targets
type ClearFields struct {
	Bounce bool
	Send   bool
}

// ClearCounters zeroes the selected fields. A record with both fields
// zero is removed entirely, matching the "absent means zero" lifecycle.
func (s *Store) ClearCounters(ctx context.Context, recipientID int64, fields ClearFields) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCounters)
		data := bucket.Get(itob(recipientID))
		if data == nil {
			return nil
		}

		var c recipient.Counters
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to unmarshal counters: %w", err)
		}

		if fields.Bounce {
			c.BounceCount = 0
		}
		if fields.Send {
			c.SendCount = 0
		}

		return putCounters(tx, recipientID, c)
	})
}

// UpdateCounters applies fn to the stored counters inside a single
// write transaction, so one recipient's read-modify-write is never
// split across concurrent callers. fn returns the new counters and
// whether they should be persisted.
func (s *Store) UpdateCounters(ctx context.Context, recipientID int64, fn func(recipient.Counters) (recipient.Counters, bool)) (recipient.Counters, error) {
	var result recipient.Counters

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCounters)

		var c recipient.Counters
		if data := bucket.Get(itob(recipientID)); data != nil {
			if err := json.Unmarshal(data, &c); err != nil {
				return fmt.Errorf("failed to unmarshal counters: %w", err)
			}
		}

		next, write := fn(c)
		result = next
		if !write {
			return nil
		}
		return putCounters(tx, recipientID, next)
	})

	return result, err
}

func putCounters(tx *bolt.Tx, recipientID int64, c recipient.Counters) error {
	bucket := tx.Bucket(bucketCounters)
	if c.IsZero() {
		return bucket.Delete(itob(recipientID))
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}
	return bucket.Put(itob(recipientID), data)
}

// itob converts an ID to a sortable big-endian key
func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func emailIndexKey(email string, id int64) []byte {
	key := append([]byte(email), 0)
	return append(key, itob(id)...)
}

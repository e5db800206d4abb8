package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bouncewatch/internal/recipient"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecipientRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.PutRecipient(ctx, "User@Example.com")
	if err != nil {
		t.Fatalf("PutRecipient() error = %v", err)
	}
	if r1.ID == 0 {
		t.Error("PutRecipient() assigned zero ID")
	}
	if r1.Email != "user@example.com" {
		t.Errorf("Email = %q, want normalized user@example.com", r1.Email)
	}

	// Shared address: second account, same email
	r2, err := s.PutRecipient(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("PutRecipient() error = %v", err)
	}
	if r2.ID <= r1.ID {
		t.Errorf("second ID = %d, want > %d", r2.ID, r1.ID)
	}

	got, err := s.RecipientsByEmail(ctx, "USER@example.com")
	if err != nil {
		t.Fatalf("RecipientsByEmail() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecipientsByEmail() returned %d recipients, want 2", len(got))
	}
	if got[0].ID != r1.ID || got[1].ID != r2.ID {
		t.Errorf("order = [%d %d], want [%d %d]", got[0].ID, got[1].ID, r1.ID, r2.ID)
	}

	// Unknown address is an empty result, not an error
	none, err := s.RecipientsByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("RecipientsByEmail() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("RecipientsByEmail() returned %d recipients, want 0", len(none))
	}

	byID, err := s.Recipient(ctx, r1.ID)
	if err != nil {
		t.Fatalf("Recipient() error = %v", err)
	}
	if byID == nil || byID.Email != r1.Email {
		t.Errorf("Recipient() = %+v, want %+v", byID, r1)
	}
}

func TestCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r, err := s.PutRecipient(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("PutRecipient() error = %v", err)
	}

	// Absent counters are zero
	c, err := s.Counters(ctx, r.ID)
	if err != nil {
		t.Fatalf("Counters() error = %v", err)
	}
	if !c.IsZero() {
		t.Errorf("Counters() = %+v, want zero", c)
	}

	if err := s.SetCounters(ctx, r.ID, recipient.Counters{BounceCount: 3, SendCount: 7}); err != nil {
		t.Fatalf("SetCounters() error = %v", err)
	}

	c, err = s.Counters(ctx, r.ID)
	if err != nil {
		t.Fatalf("Counters() error = %v", err)
	}
	if c.BounceCount != 3 || c.SendCount != 7 {
		t.Errorf("Counters() = %+v, want {3 7}", c)
	}

	// Clear only the bounce count
	if err := s.ClearCounters(ctx, r.ID, ClearFields{Bounce: true}); err != nil {
		t.Fatalf("ClearCounters() error = %v", err)
	}
	c, _ = s.Counters(ctx, r.ID)
	if c.BounceCount != 0 || c.SendCount != 7 {
		t.Errorf("Counters() = %+v, want {0 7}", c)
	}

	// Clearing the rest removes the record
	if err := s.ClearCounters(ctx, r.ID, ClearFields{Bounce: true, Send: true}); err != nil {
		t.Fatalf("ClearCounters() error = %v", err)
	}
	c, _ = s.Counters(ctx, r.ID)
	if !c.IsZero() {
		t.Errorf("Counters() = %+v, want zero", c)
	}
}

func TestUpdateCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r, _ := s.PutRecipient(ctx, "user@example.com")

	got, err := s.UpdateCounters(ctx, r.ID, func(c recipient.Counters) (recipient.Counters, bool) {
		c.BounceCount++
		return c, true
	})
	if err != nil {
		t.Fatalf("UpdateCounters() error = %v", err)
	}
	if got.BounceCount != 1 {
		t.Errorf("BounceCount = %d, want 1", got.BounceCount)
	}

	// fn returning false must not persist
	_, err = s.UpdateCounters(ctx, r.ID, func(c recipient.Counters) (recipient.Counters, bool) {
		c.BounceCount = 100
		return c, false
	})
	if err != nil {
		t.Fatalf("UpdateCounters() error = %v", err)
	}
	c, _ := s.Counters(ctx, r.ID)
	if c.BounceCount != 1 {
		t.Errorf("BounceCount = %d, want 1 (unpersisted update leaked)", c.BounceCount)
	}
}

func TestNotificationLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []LogEntry{
		{Email: "a@example.com", Type: "Bounce", Subtypes: "Permanent:General", CreatedAt: time.Now().Add(-2 * time.Hour)},
		{Email: "b@example.com", Type: "Complaint", Subtypes: "abuse", CreatedAt: time.Now().Add(-time.Hour)},
		{Email: "a@example.com", Type: "Bounce", Subtypes: "Transient:General", CreatedAt: time.Now()},
	}
	for _, e := range entries {
		if err := s.AppendLog(ctx, e); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	got, err := s.ListLog(ctx, LogFilter{})
	if err != nil {
		t.Fatalf("ListLog() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListLog() returned %d entries, want 3", len(got))
	}
	// Newest first
	if got[0].Subtypes != "Transient:General" {
		t.Errorf("first entry = %q, want newest Transient:General", got[0].Subtypes)
	}
	if got[0].ID == "" {
		t.Error("AppendLog() did not assign an ID")
	}

	byEmail, err := s.ListLog(ctx, LogFilter{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("ListLog() error = %v", err)
	}
	if len(byEmail) != 2 {
		t.Errorf("ListLog(email) returned %d entries, want 2", len(byEmail))
	}

	limited, err := s.ListLog(ctx, LogFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListLog() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListLog(limit) returned %d entries, want 1", len(limited))
	}

	deleted, err := s.CleanupLog(ctx, 90*time.Minute)
	if err != nil {
		t.Fatalf("CleanupLog() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("CleanupLog() deleted %d entries, want 1", deleted)
	}
	got, _ = s.ListLog(ctx, LogFilter{})
	if len(got) != 2 {
		t.Errorf("ListLog() after cleanup returned %d entries, want 2", len(got))
	}
}

func TestSuppressions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	if err := s.UpsertSuppression(ctx, Suppression{Email: "Bad@Example.com", Reason: "BOUNCE", CreatedAt: now}); err != nil {
		t.Fatalf("UpsertSuppression() error = %v", err)
	}

	suppressed, err := s.IsSuppressed(ctx, "bad@example.com")
	if err != nil {
		t.Fatalf("IsSuppressed() error = %v", err)
	}
	if !suppressed {
		t.Error("IsSuppressed() = false, want true")
	}

	suppressed, _ = s.IsSuppressed(ctx, "good@example.com")
	if suppressed {
		t.Error("IsSuppressed() = true, want false")
	}

	// Full replace drops stale rows
	err = s.ReplaceSuppressions(ctx, []Suppression{
		{Email: "one@example.com", Reason: "BOUNCE", CreatedAt: now},
		{Email: "two@example.com", Reason: "COMPLAINT", CreatedAt: now},
	})
	if err != nil {
		t.Fatalf("ReplaceSuppressions() error = %v", err)
	}

	if suppressed, _ = s.IsSuppressed(ctx, "bad@example.com"); suppressed {
		t.Error("stale suppression survived ReplaceSuppressions()")
	}

	list, err := s.ListSuppressions(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListSuppressions() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListSuppressions() returned %d rows, want 2", len(list))
	}
	if list[0].Email != "one@example.com" {
		t.Errorf("first row = %q, want one@example.com", list[0].Email)
	}

	count, err := s.SuppressionCount(ctx)
	if err != nil {
		t.Fatalf("SuppressionCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("SuppressionCount() = %d, want 2", count)
	}
}

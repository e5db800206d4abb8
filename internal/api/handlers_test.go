package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"bouncewatch/internal/config"
	"bouncewatch/internal/events"
	"bouncewatch/internal/policy"
	"bouncewatch/internal/processor"
	"bouncewatch/internal/recipient"
	"bouncewatch/internal/store"
)

const (
	testUser   = "sns"
	testPass   = "secret"
	testAPIKey = "test-api-key"
	testEmail  = "user@example.com"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := events.NewEmitter(logger)
	resolver := recipient.NewResolver(st, logger)
	cfg := policy.Config{Enabled: true, MinBounces: 3, BounceRatio: -1}
	proc := processor.New(st, resolver, emitter, cfg, logger)

	apiCfg := &config.APIConfig{ListenAddr: ":0", APIKey: testAPIKey}
	webhookCfg := &config.WebhookConfig{
		Username:     testUser,
		Password:     testPass,
		MaxBodyBytes: 256 << 10,
	}

	return NewServer(proc, st, nil, apiCfg, webhookCfg, logger), st
}

func envelope(t *testing.T, envType, message string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"Type":      envType,
		"MessageId": "mid-1",
		"TopicArn":  "arn:aws:sns:us-east-1:111122223333:ses-notifications",
		"Message":   message,
	})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return body
}

func bounceMessage(email string) string {
	return fmt.Sprintf(`{
		"notificationType": "Bounce",
		"bounce": {"bounceType": "Permanent", "bounceSubType": "General"},
		"mail": {"source": "sender@example.com", "destination": [%q]}
	}`, email)
}

func postWebhook(s *Server, body []byte, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/ses", strings.NewReader(string(body)))
	if authorized {
		req.SetBasicAuth(testUser, testPass)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhookRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)

	w := postWebhook(s, envelope(t, "Notification", bounceMessage(testEmail)), false)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestWebhookBounce(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	r, _ := st.PutRecipient(ctx, testEmail)

	w := postWebhook(s, envelope(t, "Notification", bounceMessage(testEmail)), true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	c, _ := st.Counters(ctx, r.ID)
	if c.BounceCount != 3 {
		t.Errorf("BounceCount = %d, want 3", c.BounceCount)
	}

	entries, _ := st.ListLog(ctx, store.LogFilter{})
	if len(entries) != 1 {
		t.Errorf("log entries = %d, want 1", len(entries))
	}
}

func TestWebhookRejectsBadPayloads(t *testing.T) {
	s, st := newTestServer(t)

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("not json at all")},
		{"missing envelope type", []byte(`{"Message": "hi"}`)},
		{"unknown envelope type", envelope(t, "Mystery", "")},
		{"unparseable message", envelope(t, "Notification", `{"notificationType": "Unknown"}`)},
		{"missing source", envelope(t, "Notification", `{"notificationType": "Bounce", "mail": {"destination": ["a@b.com"]}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(s, tt.body, true)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}

	// Rejected payloads leave no trace
	entries, _ := st.ListLog(context.Background(), store.LogFilter{})
	if len(entries) != 0 {
		t.Errorf("log entries = %d, want 0", len(entries))
	}
}

func TestWebhookSubscriptionConfirmation(t *testing.T) {
	s, _ := newTestServer(t)

	// Auto-confirm disabled: acknowledged without fetching anything
	body := []byte(`{"Type": "SubscriptionConfirmation", "TopicArn": "arn:x", "SubscribeURL": "https://sns.us-east-1.amazonaws.com/confirm"}`)
	w := postWebhook(s, body, true)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestWebhookUnsubscribeConfirmation(t *testing.T) {
	s, _ := newTestServer(t)

	w := postWebhook(s, []byte(`{"Type": "UnsubscribeConfirmation", "TopicArn": "arn:x"}`), true)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

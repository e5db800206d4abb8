package notification

import (
	"errors"
	"fmt"
	"testing"
)

const testEmail = "user@example.com"

func mockBounce(bounceType, bounceSubType string) []byte {
	return fmt.Appendf(nil, `{
		"notificationType": "Bounce",
		"bounce": {
			"bounceType": %q,
			"bounceSubType": %q,
			"bouncedRecipients": [{"status": "5.0.0", "action": "failed", "emailAddress": %q}],
			"timestamp": "2012-05-25T14:59:38.605Z"
		},
		"mail": {
			"timestamp": "2012-05-25T14:59:35.605Z",
			"source": "sender@example.com",
			"sourceIp": "127.0.3.0",
			"sourceArn": "arn:aws:ses:us-west-2:888888888888:identity/example.com",
			"destination": [%q]
		}
	}`, bounceType, bounceSubType, testEmail, testEmail)
}

func mockDelivery() []byte {
	return fmt.Appendf(nil, `{
		"notificationType": "Delivery",
		"delivery": {
			"timestamp": "2012-05-25T14:59:35.605Z",
			"recipients": [%q],
			"smtpResponse": "250 ok:  Message 64111812 accepted"
		},
		"mail": {
			"source": "sender@example.com",
			"destination": [%q]
		}
	}`, testEmail, testEmail)
}

func TestParseBounce(t *testing.T) {
	n, err := Parse(mockBounce("Permanent", "General"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if n.Type != TypeBounce {
		t.Errorf("Type = %v, want %v", n.Type, TypeBounce)
	}
	if !n.IsBounce() {
		t.Error("IsBounce() = false, want true")
	}
	if n.SourceEmail != "sender@example.com" {
		t.Errorf("SourceEmail = %q, want sender@example.com", n.SourceEmail)
	}
	if n.SourceIP != "127.0.3.0" {
		t.Errorf("SourceIP = %q, want 127.0.3.0", n.SourceIP)
	}
	if n.Destination() != testEmail {
		t.Errorf("Destination() = %q, want %q", n.Destination(), testEmail)
	}
	if n.SubtypeKey() != "Permanent:General" {
		t.Errorf("SubtypeKey() = %q, want Permanent:General", n.SubtypeKey())
	}
}

func TestParseComplaint(t *testing.T) {
	tests := []struct {
		name       string
		complaint  string
		wantKey    string
	}{
		{
			name:      "with feedback report",
			complaint: `{"complaintFeedbackType": "abuse", "complaintSubType": ""}`,
			wantKey:   "abuse",
		},
		{
			name:      "suppression list subtype only",
			complaint: `{"complaintSubType": "OnAccountSuppressionList"}`,
			wantKey:   "OnAccountSuppressionList",
		},
		{
			name:      "both parts",
			complaint: `{"complaintFeedbackType": "abuse", "complaintSubType": "OnAccountSuppressionList"}`,
			wantKey:   "abuse:OnAccountSuppressionList",
		},
		{
			name:      "no feedback report",
			complaint: `{}`,
			wantKey:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := fmt.Appendf(nil, `{
				"notificationType": "Complaint",
				"complaint": %s,
				"mail": {"source": "sender@example.com", "destination": [%q]}
			}`, tt.complaint, testEmail)

			n, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !n.IsComplaint() {
				t.Error("IsComplaint() = false, want true")
			}
			if got := n.SubtypeKey(); got != tt.wantKey {
				t.Errorf("SubtypeKey() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestParseDelivery(t *testing.T) {
	n, err := Parse(mockDelivery())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !n.IsDelivery() {
		t.Error("IsDelivery() = false, want true")
	}
	if n.SubtypeKey() != "" {
		t.Errorf("SubtypeKey() = %q, want empty", n.SubtypeKey())
	}
	// Bounce fields must stay empty for non-bounce types
	if n.BounceType != "" || n.BounceSubType != "" {
		t.Errorf("bounce fields = %q:%q, want empty", n.BounceType, n.BounceSubType)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not JSON", `{{{`},
		{"missing type", `{"mail": {"source": "a@b.com", "destination": ["c@d.com"]}}`},
		{"unknown type", `{"notificationType": "Received", "mail": {"source": "a@b.com", "destination": ["c@d.com"]}}`},
		{"missing source", `{"notificationType": "Bounce", "mail": {"destination": ["c@d.com"]}}`},
		{"no destinations", `{"notificationType": "Bounce", "mail": {"source": "a@b.com", "destination": []}}`},
		{"empty destination", `{"notificationType": "Bounce", "mail": {"source": "a@b.com", "destination": [""]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if err == nil {
				t.Fatal("Parse() error = nil, want *ParseError")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("Parse() error type = %T, want *ParseError", err)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	n, err := Parse(mockBounce("Transient", "MailboxFull"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := "Bounce (Transient:MailboxFull) about sender@example.com from user@example.com"
	if got := n.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		key  string
		want Class
	}{
		{"Permanent:General", ClassBlockImmediately},
		{"Permanent:NoEmail", ClassBlockImmediately},
		{"Permanent:Suppressed", ClassBlockImmediately},
		{"Permanent:OnAccountSuppressionList", ClassBlockImmediately},
		{"Undetermined:Undetermined", ClassBlockSoftly},
		{"Transient:General", ClassBlockSoftly},
		{"Transient:MailboxFull", ClassBlockSoftly},
		{"Transient:AttachmentRejected", ClassIgnore},
		{"Transient:ContentRejected", ClassIgnore},
		{"", ClassIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := Classify(tt.key); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	raw := `{
		"Type": "Notification",
		"MessageId": "165545c9-2a5c-472c-8df2-7ff2be2b3b1b",
		"TopicArn": "arn:aws:sns:us-west-2:123456789012:MyTopic",
		"Message": "{\"notificationType\":\"Delivery\"}",
		"Timestamp": "2012-04-26T20:45:04.751Z"
	}`

	env, err := DecodeEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Type != EnvelopeNotification {
		t.Errorf("Type = %q, want %q", env.Type, EnvelopeNotification)
	}
	if env.Message == "" {
		t.Error("Message should not be empty")
	}

	if _, err := DecodeEnvelope([]byte(`{"Message": "x"}`)); err == nil {
		t.Error("DecodeEnvelope() expected error for missing Type")
	}
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Error("DecodeEnvelope() expected error for malformed body")
	}
}

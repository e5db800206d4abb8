package notification

import (
	"encoding/json"
	"fmt"
)

// ParseError indicates a malformed or incomplete notification payload.
// The boundary rejects these without mutating any state.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid notification: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid notification: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// sesMessage mirrors the fields consumed from the SES notification JSON
type sesMessage struct {
	NotificationType string `json:"notificationType"`
	Mail             struct {
		Source      string   `json:"source"`
		SourceIP    string   `json:"sourceIp"`
		SourceArn   string   `json:"sourceArn"`
		Destination []string `json:"destination"`
	} `json:"mail"`
	Bounce *struct {
		BounceType    string `json:"bounceType"`
		BounceSubType string `json:"bounceSubType"`
	} `json:"bounce"`
	Complaint *struct {
		ComplaintFeedbackType string `json:"complaintFeedbackType"`
		ComplaintSubType      string `json:"complaintSubType"`
	} `json:"complaint"`
	Delivery *struct {
		Recipients []string `json:"recipients"`
	} `json:"delivery"`
}

// Parse decodes a raw SES notification into a Notification.
// Returns *ParseError when the payload is not well-formed, the type is
// missing or unknown, or required nested fields are absent.
func Parse(raw []byte) (*Notification, error) {
	var msg sesMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &ParseError{Reason: "malformed JSON", Err: err}
	}

	if msg.NotificationType == "" {
		return nil, &ParseError{Reason: "missing notificationType"}
	}

	typ := Type(msg.NotificationType)
	switch typ {
	case TypeBounce, TypeComplaint, TypeDelivery:
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unknown notificationType %q", msg.NotificationType)}
	}

	if msg.Mail.Source == "" {
		return nil, &ParseError{Reason: "missing mail.source"}
	}

	destinations := make([]string, 0, len(msg.Mail.Destination))
	for _, d := range msg.Mail.Destination {
		if d != "" {
			destinations = append(destinations, d)
		}
	}
	if len(destinations) == 0 {
		return nil, &ParseError{Reason: "missing mail.destination"}
	}

	n := &Notification{
		Type:         typ,
		SourceEmail:  msg.Mail.Source,
		SourceIP:     msg.Mail.SourceIP,
		SourceARN:    msg.Mail.SourceArn,
		Destinations: destinations,
	}

	switch typ {
	case TypeBounce:
		if msg.Bounce != nil {
			n.BounceType = msg.Bounce.BounceType
			n.BounceSubType = msg.Bounce.BounceSubType
		}
	case TypeComplaint:
		if msg.Complaint != nil {
			// Feedback type is only present when a feedback report is
			// attached to the complaint
			n.ComplaintType = msg.Complaint.ComplaintFeedbackType
			n.ComplaintSubType = msg.Complaint.ComplaintSubType
		}
	}

	return n, nil
}

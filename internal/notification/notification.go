// Package notification decodes AWS SES delivery status notifications
// (bounces, complaints, deliveries) pushed over SNS HTTP subscriptions.
package notification

import (
	"fmt"
	"strings"
)

// Type is the SES notification type
type Type string

const (
	TypeBounce    Type = "Bounce"
	TypeComplaint Type = "Complaint"
	TypeDelivery  Type = "Delivery"
)

// Notification is a decoded SES notification. Type-specific fields are
// empty unless the corresponding type applies.
type Notification struct {
	Type Type

	// Provenance of the originally sent message
	SourceEmail string
	SourceIP    string
	SourceARN   string

	// Recipient addresses of the original message, at least one
	Destinations []string

	// Bounce fields (Type == TypeBounce)
	BounceType    string
	BounceSubType string

	// Complaint fields (Type == TypeComplaint), either may be absent
	ComplaintType    string
	ComplaintSubType string
}

// IsBounce reports whether the notification is about a bounce
func (n *Notification) IsBounce() bool {
	return n.Type == TypeBounce
}

// IsComplaint reports whether the notification is about a complaint
func (n *Notification) IsComplaint() bool {
	return n.Type == TypeComplaint
}

// IsDelivery reports whether the notification is a delivery confirmation
func (n *Notification) IsDelivery() bool {
	return n.Type == TypeDelivery
}

// Destination returns the address used for recipient matching
func (n *Notification) Destination() string {
	return n.Destinations[0]
}

// SubtypeKey returns the type-specific subtypes joined with ":".
// Empty halves are dropped; an entirely absent subtype yields "".
func (n *Notification) SubtypeKey() string {
	var parts []string
	switch n.Type {
	case TypeBounce:
		parts = []string{n.BounceType, n.BounceSubType}
	case TypeComplaint:
		parts = []string{n.ComplaintType, n.ComplaintSubType}
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ":")
}

// Summary returns a one-line human readable description of the
// notification, e.g. "Bounce (Permanent:General) about sender@a.com from user@b.com"
func (n *Notification) Summary() string {
	kind := string(n.Type)
	if key := n.SubtypeKey(); key != "" {
		kind = fmt.Sprintf("%s (%s)", kind, key)
	}
	return fmt.Sprintf("%s about %s from %s", kind, n.SourceEmail, n.Destination())
}

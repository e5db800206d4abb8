package notification

import "encoding/json"

// SNS envelope message types
const (
	EnvelopeNotification             = "Notification"
	EnvelopeSubscriptionConfirmation = "SubscriptionConfirmation"
	EnvelopeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// Envelope is the SNS wrapper around an SES notification. Only the
// fields consumed by the webhook are decoded; signature validation is
// the transport collaborator's concern.
type Envelope struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Message      string `json:"Message"`
	Timestamp    string `json:"Timestamp"`
	SubscribeURL string `json:"SubscribeURL"`
}

// DecodeEnvelope unwraps an SNS envelope from a webhook request body.
// Returns *ParseError when the body is not a well-formed envelope.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ParseError{Reason: "malformed SNS envelope", Err: err}
	}
	if env.Type == "" {
		return nil, &ParseError{Reason: "missing SNS envelope Type"}
	}
	return &env, nil
}

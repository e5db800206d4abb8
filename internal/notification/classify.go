package notification

// Class describes how a bounce subtype affects recipient counters
type Class int

const (
	// ClassIgnore leaves counters untouched, e.g. Transient:AttachmentRejected
	ClassIgnore Class = iota
	// ClassBlockImmediately forces the recipient straight over the threshold
	ClassBlockImmediately
	// ClassBlockSoftly increments the bounce count by one
	ClassBlockSoftly
)

// Subtype keys per the SES notification contents documentation.
// https://docs.aws.amazon.com/ses/latest/dg/notification-contents.html#bounce-types
var blockImmediately = map[string]struct{}{
	"Permanent:General":                  {},
	"Permanent:NoEmail":                  {},
	"Permanent:Suppressed":               {},
	"Permanent:OnAccountSuppressionList": {},
}

var blockSoftly = map[string]struct{}{
	"Undetermined:Undetermined": {},
	"Transient:General":         {},
	"Transient:MailboxFull":     {},
}

// Classify maps a bounce subtype key to its counter effect. Keys outside
// both sets are ignorable transients.
func Classify(subtypeKey string) Class {
	if _, ok := blockImmediately[subtypeKey]; ok {
		return ClassBlockImmediately
	}
	if _, ok := blockSoftly[subtypeKey]; ok {
		return ClassBlockSoftly
	}
	return ClassIgnore
}

// String returns the class name for logging
func (c Class) String() string {
	switch c {
	case ClassBlockImmediately:
		return "block_immediately"
	case ClassBlockSoftly:
		return "block_softly"
	default:
		return "ignore"
	}
}

// Package dispatch contains the public interfaces and domain models for the
// call-signaling service.
package dispatch

import "time"

// Registration is an opaque per-device push handle (an FCM or APNs token).
type Registration = string

// CallType is "audio", "video" or any client-defined string.
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// CallInvitation describes one incoming call. It is a value type; build a new
// one per request.
type CallInvitation struct {
	CallID     string
	Channel    string
	CallerID   string
	CallerName string
	CalleeID   string
	CallType   CallType
}

// Message is a platform-neutral push message addressed to one registration.
// Gateways translate it into their own wire format.
type Message struct {
	Token Registration
	Data  map[string]string
	Title string
	Body  string

	// Delivery hints.
	HighPriority     bool
	TTL              time.Duration // zero means gateway default
	Tag              string        // collapses notifications for the same call
	ContentAvailable bool          // wake the app from background
	AndroidChannelID string
	MaxVisibility    bool // max notification priority on Android
	DefaultSound     bool
	Category         string // APNs category
}

// SendResult is the gateway's verdict for a single message.
type SendResult struct {
	Success   bool
	MessageID string
	// ErrorCode is the canonical error code, e.g. CodeRegistrationTokenNotRegistered.
	ErrorCode string
	Err       error
}

// Canonical gateway error codes. Gateways map their native errors onto these.
const (
	CodeRegistrationTokenNotRegistered = "messaging/registration-token-not-registered"
	CodeInvalidRegistrationToken       = "messaging/invalid-registration-token"
	CodeUnavailable                    = "messaging/unavailable"
	CodeInternal                       = "messaging/internal-error"
	CodeUnknown                        = "messaging/unknown-error"
)

// ErrorKind classifies a failed delivery.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	// ErrorKindNotRegistered means the app instance is gone.
	ErrorKindNotRegistered
	// ErrorKindInvalidRegistration means the token is malformed or belongs elsewhere.
	ErrorKindInvalidRegistration
	// ErrorKindOther is any transient or configuration error.
	ErrorKindOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindNotRegistered:
		return "not_registered"
	case ErrorKindInvalidRegistration:
		return "invalid_registration"
	default:
		return "other"
	}
}

// Terminal reports whether the registration is permanently dead.
func (k ErrorKind) Terminal() bool {
	return k == ErrorKindNotRegistered || k == ErrorKindInvalidRegistration
}

// Outcome is the per-registration delivery result.
type Outcome struct {
	Registration Registration
	Delivered    bool
	ErrorKind    ErrorKind
	ErrorCode    string
	MessageID    string
}

// Result aggregates one dispatch. Outcomes are in input order.
type Result struct {
	SuccessCount int
	FailureCount int
	Outcomes     []Outcome

	// Pruned lists the terminal-failed registrations submitted for removal.
	Pruned []Registration
	// ReconcileErr is set when removing Pruned from the store failed.
	// It never fails the dispatch itself.
	ReconcileErr error
}

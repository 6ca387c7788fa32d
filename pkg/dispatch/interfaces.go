// --- File: pkg/dispatch/interfaces.go ---
package dispatch

import (
	"context"
)

// Gateway defines the contract for a push delivery service (e.g., Google's FCM,
// Apple's APNS) that accepts a batch of per-device messages.
type Gateway interface {
	// SendBatch delivers the messages and returns one SendResult per message,
	// in request order. A non-nil error means the batch as a whole failed and
	// no per-message results are available.
	SendBatch(ctx context.Context, msgs []Message) ([]SendResult, error)
}

// RegistrationStore defines the contract for managing user device registrations.
// It allows the service to remember "where" to send notifications for a user.
type RegistrationStore interface {
	// Registrations returns the user's current registration set.
	// An unknown user has no registrations.
	Registrations(ctx context.Context, userID string) ([]Registration, error)

	// AddRegistration adds a registration to the user's set.
	// It is an upsert: adding a present registration is a no-op.
	AddRegistration(ctx context.Context, userID string, reg Registration) error

	// RemoveRegistrations removes exactly the given registrations from the
	// user's set, re-reading the set inside a transaction before writing.
	// Missing registrations and unknown users are ignored.
	RemoveRegistrations(ctx context.Context, userID string, regs []Registration) error
}

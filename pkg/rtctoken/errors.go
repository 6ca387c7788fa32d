package rtctoken

import "errors"

var (
	ErrMissingChannel   = errors.New("channelName is required")
	ErrInvalidPrincipal = errors.New("either uid or account is required")
	// ErrSigning wraps failures of the signing library.
	ErrSigning = errors.New("token signing failed")
)

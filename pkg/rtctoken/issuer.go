package rtctoken

import (
	"fmt"
	"strings"
	"time"
)

// Role is the privilege level granted in the channel.
type Role int

const (
	RolePublisher Role = iota + 1
	RoleSubscriber
)

// DefaultValidity is how long issued tokens stay valid.
const DefaultValidity = time.Hour

// Signer formats and signs a token. Implementations are pure functions of
// their inputs and the credentials they were built with. validFor is the
// number of seconds, counted from signing, before the token expires.
type Signer interface {
	Sign(channel string, p Principal, role Role, validFor uint32) (string, error)
}

// Issuer mints publisher tokens that expire a fixed time after issuance.
type Issuer struct {
	signer   Signer
	validity time.Duration
	now      func() time.Time
}

func NewIssuer(signer Signer, validity time.Duration) *Issuer {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Issuer{signer: signer, validity: validity, now: time.Now}
}

// Token is an issued token. ExpiresAt is informational; the token itself
// carries a relative validity.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (i *Issuer) Issue(channel string, p Principal) (Token, error) {
	if strings.TrimSpace(channel) == "" {
		return Token{}, ErrMissingChannel
	}
	if p == nil {
		return Token{}, ErrInvalidPrincipal
	}

	expiresAt := i.now().Add(i.validity).Truncate(time.Second)
	value, err := i.signer.Sign(channel, p, RolePublisher, uint32(i.validity/time.Second))
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	if value == "" {
		return Token{}, fmt.Errorf("%w: signer returned an empty token", ErrSigning)
	}
	return Token{Value: value, ExpiresAt: expiresAt}, nil
}

package rtctoken

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) Sign(channel string, p Principal, role Role, validFor uint32) (string, error) {
	args := m.Called(channel, p, role, validFor)
	return args.String(0), args.Error(1)
}

func fixedIssuer(s Signer) *Issuer {
	i := NewIssuer(s, 0)
	i.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return i
}

func TestIssuer_Issue(t *testing.T) {
	t.Run("Publisher token valid for an hour", func(t *testing.T) {
		signer := new(mockSigner)
		signer.On("Sign", "room1", ByNumericID{UID: 42}, RolePublisher, uint32(3600)).Return("006abc", nil)

		tok, err := fixedIssuer(signer).Issue("room1", ByNumericID{UID: 42})

		require.NoError(t, err)
		assert.Equal(t, "006abc", tok.Value)
		assert.Equal(t, time.Unix(1_700_003_600, 0), tok.ExpiresAt)
		signer.AssertExpectations(t)
	})

	t.Run("Missing channel", func(t *testing.T) {
		_, err := fixedIssuer(new(mockSigner)).Issue("  ", ByAccountName{Account: "bob"})
		assert.ErrorIs(t, err, ErrMissingChannel)
	})

	t.Run("Signer failure", func(t *testing.T) {
		signer := new(mockSigner)
		signer.On("Sign", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bad certificate"))

		_, err := fixedIssuer(signer).Issue("room1", ByAccountName{Account: "bob"})

		assert.ErrorIs(t, err, ErrSigning)
		assert.Contains(t, err.Error(), "bad certificate")
	})

	t.Run("Empty token is a signing failure", func(t *testing.T) {
		signer := new(mockSigner)
		signer.On("Sign", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil)

		_, err := fixedIssuer(signer).Issue("room1", ByAccountName{Account: "bob"})
		assert.ErrorIs(t, err, ErrSigning)
	})
}

func TestNewPrincipal(t *testing.T) {
	uid := uint32(7)

	t.Run("Uid wins over account", func(t *testing.T) {
		p, err := NewPrincipal(&uid, "bob")
		require.NoError(t, err)
		assert.Equal(t, ByNumericID{UID: 7}, p)
	})

	t.Run("Zero uid is valid", func(t *testing.T) {
		zero := uint32(0)
		p, err := NewPrincipal(&zero, "")
		require.NoError(t, err)
		assert.Equal(t, ByNumericID{UID: 0}, p)
	})

	t.Run("Account", func(t *testing.T) {
		p, err := NewPrincipal(nil, " bob ")
		require.NoError(t, err)
		assert.Equal(t, ByAccountName{Account: "bob"}, p)
	})

	t.Run("Neither", func(t *testing.T) {
		_, err := NewPrincipal(nil, "")
		assert.ErrorIs(t, err, ErrInvalidPrincipal)
	})
}

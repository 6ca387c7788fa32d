package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespaced(t *testing.T) {
	assert.Equal(t, "callsignal:registrations:bob", namespaced(registrationsKey("bob")))
}

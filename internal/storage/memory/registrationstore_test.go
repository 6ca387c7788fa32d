package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-call-signaling-service/internal/storage/memory"
)

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	t.Run("Unknown user has no registrations", func(t *testing.T) {
		regs, err := store.Registrations(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, regs)
	})

	t.Run("Add deduplicates", func(t *testing.T) {
		require.NoError(t, store.AddRegistration(ctx, "bob", "t1"))
		require.NoError(t, store.AddRegistration(ctx, "bob", "t2"))
		require.NoError(t, store.AddRegistration(ctx, "bob", "t1"))

		regs, err := store.Registrations(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2"}, regs)
	})

	t.Run("Remove is an idempotent set difference", func(t *testing.T) {
		store.PutUser("carol", []string{"a", "b", "c", "d"})

		require.NoError(t, store.RemoveRegistrations(ctx, "carol", []string{"b", "x"}))
		require.NoError(t, store.RemoveRegistrations(ctx, "carol", []string{"b"}))

		regs, err := store.Registrations(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "d"}, regs)
	})

	t.Run("Remove for unknown user does not create it", func(t *testing.T) {
		require.NoError(t, store.RemoveRegistrations(ctx, "ghost", []string{"t1"}))
		assert.False(t, store.HasUser("ghost"))
	})

	t.Run("Returned slices are copies", func(t *testing.T) {
		store.PutUser("dave", []string{"t1"})
		regs, _ := store.Registrations(ctx, "dave")
		regs[0] = "mutated"

		again, _ := store.Registrations(ctx, "dave")
		assert.Equal(t, []string{"t1"}, again)
	})
}

package cache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-call-signaling-service/internal/storage/cache"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) Registrations(ctx context.Context, userID string) ([]dispatch.Registration, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dispatch.Registration), args.Error(1)
}
func (m *MockRealStore) AddRegistration(ctx context.Context, userID string, reg dispatch.Registration) error {
	return m.Called(ctx, userID, reg).Error(0)
}
func (m *MockRealStore) RemoveRegistrations(ctx context.Context, userID string, regs []dispatch.Registration) error {
	return m.Called(ctx, userID, regs).Error(0)
}

const cacheKey = "registrations:bob"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCachedStore_ReadAside(t *testing.T) {
	ctx := context.Background()

	t.Run("Cache hit skips the DB", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRegistrationStore(mockDB, mockCache, time.Hour, discard)

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Run(func(args mock.Arguments) {
			dest := args.Get(2).(*[]dispatch.Registration)
			*dest = []string{"cached-token"}
		}).Return(nil)

		regs, err := store.Registrations(ctx, "bob")

		require.NoError(t, err)
		assert.Equal(t, []string{"cached-token"}, regs)
		mockDB.AssertNotCalled(t, "Registrations", mock.Anything, mock.Anything)
	})

	t.Run("Cache miss hits DB and refills", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRegistrationStore(mockDB, mockCache, time.Hour, discard)

		fresh := []string{"t1", "t2"}
		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrCacheMiss)
		mockDB.On("Registrations", ctx, "bob").Return(fresh, nil)
		mockCache.On("Set", ctx, cacheKey, fresh, time.Hour).Return(nil)

		regs, err := store.Registrations(ctx, "bob")

		require.NoError(t, err)
		assert.Equal(t, fresh, regs)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Redis outage still serves from DB", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRegistrationStore(mockDB, mockCache, time.Hour, discard)

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(errors.New("redis down"))
		mockDB.On("Registrations", ctx, "bob").Return([]string{"t1"}, nil)
		mockCache.On("Set", ctx, cacheKey, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		regs, err := store.Registrations(ctx, "bob")

		require.NoError(t, err)
		assert.Equal(t, []string{"t1"}, regs)
	})
}

func TestCachedStore_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Remove invalidates cache immediately", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRegistrationStore(mockDB, mockCache, time.Hour, discard)

		mockDB.On("RemoveRegistrations", ctx, "bob", []string{"dead"}).Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		require.NoError(t, store.RemoveRegistrations(ctx, "bob", []string{"dead"}))
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Add invalidates cache", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRegistrationStore(mockDB, mockCache, time.Hour, discard)

		mockDB.On("AddRegistration", ctx, "bob", "new").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		require.NoError(t, store.AddRegistration(ctx, "bob", "new"))
		mockCache.AssertExpectations(t)
	})

	t.Run("DB failure leaves cache alone", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRegistrationStore(mockDB, mockCache, time.Hour, discard)

		mockDB.On("RemoveRegistrations", ctx, "bob", mock.Anything).Return(errors.New("tx aborted"))

		err := store.RemoveRegistrations(ctx, "bob", []string{"dead"})

		require.Error(t, err)
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})

	t.Run("Invalidation failure after a successful write is not an error", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRegistrationStore(mockDB, mockCache, time.Hour, discard)

		mockDB.On("RemoveRegistrations", ctx, "bob", []string{"dead"}).Return(nil)
		mockDB.On("AddRegistration", ctx, "bob", "new").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(errors.New("redis down"))

		assert.NoError(t, store.RemoveRegistrations(ctx, "bob", []string{"dead"}))
		assert.NoError(t, store.AddRegistration(ctx, "bob", "new"))
		mockDB.AssertExpectations(t)
		mockCache.AssertNumberOfCalls(t, "Del", 2)
	})
}

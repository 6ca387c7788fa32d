package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedRegistrationStore is a Decorator that adds Read-Aside caching to any
// RegistrationStore. Writes always go to the real store; the cache is only
// invalidated, never written with a computed set.
type CachedRegistrationStore struct {
	realStore dispatch.RegistrationStore
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedRegistrationStore(realStore dispatch.RegistrationStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedRegistrationStore {
	return &CachedRegistrationStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedRegistrationStore"),
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedRegistrationStore) Registrations(ctx context.Context, userID string) ([]dispatch.Registration, error) {
	key := registrationsKey(userID)

	var cached []dispatch.Registration
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.Registrations(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; if Redis is down we just serve from the DB.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---
//
// Once the real store has accepted a write the write has happened; a failed
// invalidation is logged here and the stale entry ages out with the TTL.

func (s *CachedRegistrationStore) AddRegistration(ctx context.Context, userID string, reg dispatch.Registration) error {
	if err := s.realStore.AddRegistration(ctx, userID, reg); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedRegistrationStore) RemoveRegistrations(ctx context.Context, userID string, regs []dispatch.Registration) error {
	if err := s.realStore.RemoveRegistrations(ctx, userID, regs); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// --- Helpers ---

func (s *CachedRegistrationStore) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Del(ctx, registrationsKey(userID)); err != nil {
		s.logger.Warn("Cache invalidation failed; entry will expire with its TTL", "user_id", userID, "ttl", s.ttl, "err", err)
	}
}

// registrationsKey is relative; RedisClient adds KeyPrefix.
func registrationsKey(userID string) string {
	return "registrations:" + userID
}

// Package memory provides an in-process RegistrationStore for local runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// Store keeps one registration slice per user. Every mutation is a
// read-modify-write under the lock, which plays the role of a per-user
// transaction.
type Store struct {
	mu    sync.Mutex
	users map[string][]dispatch.Registration
}

func NewStore() *Store {
	return &Store{users: make(map[string][]dispatch.Registration)}
}

// PutUser replaces the user's record. A nil slice still creates the record.
func (s *Store) PutUser(userID string, regs []dispatch.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = append([]dispatch.Registration{}, regs...)
}

// HasUser reports whether a record exists for userID.
func (s *Store) HasUser(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok
}

func (s *Store) Registrations(_ context.Context, userID string) ([]dispatch.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users[userID]), nil
}

func (s *Store) AddRegistration(_ context.Context, userID string, reg dispatch.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.users[userID]
	if slices.Contains(current, reg) {
		return nil
	}
	s.users[userID] = append(current, reg)
	return nil
}

func (s *Store) RemoveRegistrations(_ context.Context, userID string, regs []dispatch.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[userID]
	if !ok {
		return nil
	}
	s.users[userID] = slices.DeleteFunc(slices.Clone(current), func(r dispatch.Registration) bool {
		return slices.Contains(regs, r)
	})
	return nil
}

package firestore

import (
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

const (
	DefaultUsersCollection    = "users"
	DefaultRegistrationsField = "fcmTokens"
)

// FirestoreStore implements dispatch.RegistrationStore on Google Cloud Firestore.
// Each user is one document, users/{userID}, whose registrations live in a
// single array field shared with the mobile apps.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	field      string
}

func NewFirestoreStore(client *firestore.Client, collection, field string) *FirestoreStore {
	if collection == "" {
		collection = DefaultUsersCollection
	}
	if field == "" {
		field = DefaultRegistrationsField
	}
	return &FirestoreStore{client: client, collection: collection, field: field}
}

func (s *FirestoreStore) Registrations(ctx context.Context, userID string) ([]dispatch.Registration, error) {
	snap, err := s.userRef(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return []dispatch.Registration{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("firestore get user %s failed: %w", userID, err)
	}
	return s.registrationsOf(snap)
}

// AddRegistration upserts reg inside a transaction, creating the user
// document when it does not exist yet.
func (s *FirestoreStore) AddRegistration(ctx context.Context, userID string, reg dispatch.Registration) error {
	ref := s.userRef(userID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Set(ref, map[string]interface{}{s.field: []string{reg}}, firestore.MergeAll)
		}
		if err != nil {
			return err
		}

		values, err := s.rawValues(snap)
		if err != nil {
			return err
		}
		if slices.Contains(values, interface{}(reg)) {
			return nil
		}
		return tx.Update(ref, []firestore.Update{{Path: s.field, Value: append(values, reg)}})
	})
	if err != nil {
		return fmt.Errorf("firestore add registration for %s failed: %w", userID, err)
	}
	return nil
}

// RemoveRegistrations re-reads the user's set inside the transaction and
// writes back the set difference, so registrations added concurrently by
// other flows are preserved. Only string entries listed in regs are dropped;
// anything else in the array is written back untouched. A missing user
// document is not an error.
func (s *FirestoreStore) RemoveRegistrations(ctx context.Context, userID string, regs []dispatch.Registration) error {
	if len(regs) == 0 {
		return nil
	}
	ref := s.userRef(userID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}

		values, err := s.rawValues(snap)
		if err != nil {
			return err
		}
		updated := slices.DeleteFunc(slices.Clone(values), func(v interface{}) bool {
			t, ok := v.(string)
			return ok && slices.Contains(regs, t)
		})
		if len(updated) == len(values) {
			return nil
		}
		return tx.Update(ref, []firestore.Update{{Path: s.field, Value: updated}})
	})
	if err != nil {
		return fmt.Errorf("firestore remove registrations for %s failed: %w", userID, err)
	}
	return nil
}

// rawValues returns the registrations array as stored, including non-string
// and empty entries the mobile apps have written in the past. Writes go back
// through this so those entries survive.
func (s *FirestoreStore) rawValues(snap *firestore.DocumentSnapshot) ([]interface{}, error) {
	raw, err := snap.DataAt(s.field)
	if err != nil {
		// DataAt fails only when the field is absent.
		return []interface{}{}, nil
	}
	if raw == nil {
		return []interface{}{}, nil
	}
	values, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q of %s is %T, want array", s.field, snap.Ref.Path, raw)
	}
	return values, nil
}

// registrationsOf is the readable view of the array: non-empty strings only.
func (s *FirestoreStore) registrationsOf(snap *firestore.DocumentSnapshot) ([]dispatch.Registration, error) {
	values, err := s.rawValues(snap)
	if err != nil {
		return nil, err
	}
	regs := make([]dispatch.Registration, 0, len(values))
	for _, v := range values {
		if t, ok := v.(string); ok && t != "" {
			regs = append(regs, t)
		}
	}
	return regs, nil
}

// userRef: users/{userID}
func (s *FirestoreStore) userRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(userID)
}

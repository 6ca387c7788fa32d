package api_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-call-signaling-service/internal/api"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// --- Mocks ---

type mockRegistrationStore struct {
	mock.Mock
}

func (m *mockRegistrationStore) Registrations(ctx context.Context, userID string) ([]dispatch.Registration, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]dispatch.Registration), args.Error(1)
}

func (m *mockRegistrationStore) AddRegistration(ctx context.Context, userID string, reg dispatch.Registration) error {
	return m.Called(ctx, userID, reg).Error(0)
}

func (m *mockRegistrationStore) RemoveRegistrations(ctx context.Context, userID string, regs []dispatch.Registration) error {
	return m.Called(ctx, userID, regs).Error(0)
}

func setupRegistrationAPI(t *testing.T) (*api.RegistrationAPI, *mockRegistrationStore) {
	t.Helper()
	store := new(mockRegistrationStore)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return api.NewRegistrationAPI(store, logger), store
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// --- Tests ---

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, store := setupRegistrationAPI(t)
		store.On("AddRegistration", mock.Anything, "user-123", "fcm-token-abc").Return(nil)

		w := httptest.NewRecorder()
		handler.Register(w, withUser(post("/api/v1/registrations", `{"token":"fcm-token-abc"}`), "user-123"))

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Rejects Empty Token", func(t *testing.T) {
		handler, store := setupRegistrationAPI(t)

		w := httptest.NewRecorder()
		handler.Register(w, withUser(post("/api/v1/registrations", `{"token":"  "}`), "user-123"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertNotCalled(t, "AddRegistration", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Requires Authentication", func(t *testing.T) {
		handler, _ := setupRegistrationAPI(t)

		w := httptest.NewRecorder()
		handler.Register(w, post("/api/v1/registrations", `{"token":"fcm-token-abc"}`))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Storage Failure", func(t *testing.T) {
		handler, store := setupRegistrationAPI(t)
		store.On("AddRegistration", mock.Anything, "user-123", "fcm-token-abc").Return(errors.New("firestore down"))

		w := httptest.NewRecorder()
		handler.Register(w, withUser(post("/api/v1/registrations", `{"token":"fcm-token-abc"}`), "user-123"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestUnregister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, store := setupRegistrationAPI(t)
		store.On("RemoveRegistrations", mock.Anything, "user-123", []dispatch.Registration{"fcm-token-abc"}).Return(nil)

		w := httptest.NewRecorder()
		handler.Unregister(w, withUser(post("/api/v1/registrations/remove", `{"token":"fcm-token-abc"}`), "user-123"))

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Storage Failure Is Still Idempotent", func(t *testing.T) {
		handler, store := setupRegistrationAPI(t)
		store.On("RemoveRegistrations", mock.Anything, "user-123", mock.Anything).Return(errors.New("boom"))

		w := httptest.NewRecorder()
		handler.Unregister(w, withUser(post("/api/v1/registrations/remove", `{"token":"fcm-token-abc"}`), "user-123"))

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

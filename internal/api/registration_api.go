package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// RegistrationAPI lets an authenticated user manage their own device
// registrations. The user id comes from the auth middleware, never the body.
type RegistrationAPI struct {
	Store  dispatch.RegistrationStore
	Logger *slog.Logger
}

func NewRegistrationAPI(store dispatch.RegistrationStore, logger *slog.Logger) *RegistrationAPI {
	return &RegistrationAPI{
		Store:  store,
		Logger: logger.With("component", "RegistrationAPI"),
	}
}

type RegistrationRequest struct {
	Token string `json:"token"`
}

func (api *RegistrationAPI) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.AddRegistration(ctx, userID, token); err != nil {
		api.Logger.Error("Failed to add registration", "user_id", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unregister is idempotent: removing an unknown token still answers 204.
func (api *RegistrationAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.RemoveRegistrations(ctx, userID, []dispatch.Registration{token}); err != nil {
		api.Logger.Warn("Failed to remove registration", "user_id", userID, "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

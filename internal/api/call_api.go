package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-call-signaling-service/internal/compose"
	"github.com/tinywideclouds/go-call-signaling-service/internal/events"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/rtctoken"
)

// CallDispatcher is implemented by calldispatch.Coordinator.
type CallDispatcher interface {
	DispatchCallInvitation(ctx context.Context, calleeID string, regs []dispatch.Registration, inv dispatch.CallInvitation, callerName string) (dispatch.Result, error)
	SendCallUpdate(ctx context.Context, regs []dispatch.Registration, kind compose.UpdateKind, callID string) (dispatch.Result, error)
}

// TokenIssuer is implemented by rtctoken.Issuer.
type TokenIssuer interface {
	Issue(channel string, p rtctoken.Principal) (rtctoken.Token, error)
}

type CallAPI struct {
	Issuer     TokenIssuer
	Dispatcher CallDispatcher
	Store      dispatch.RegistrationStore
	Events     events.Publisher
	Logger     *slog.Logger

	// pending tracks call updates still being sent after their 202.
	pending sync.WaitGroup
}

func NewCallAPI(
	issuer TokenIssuer,
	dispatcher CallDispatcher,
	store dispatch.RegistrationStore,
	publisher events.Publisher,
	logger *slog.Logger,
) *CallAPI {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &CallAPI{
		Issuer:     issuer,
		Dispatcher: dispatcher,
		Store:      store,
		Events:     publisher,
		Logger:     logger.With("component", "CallAPI"),
	}
}

// errorDetails is the 500 body: a stable error code plus the cause.
type errorDetails struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// --- Token ---

type CreateTokenRequest struct {
	ChannelName string          `json:"channelName"`
	UID         json.RawMessage `json:"uid,omitempty"`
	Account     string          `json:"account,omitempty"`
}

type CreateTokenResponse struct {
	Token string `json:"token"`
}

func (api *CallAPI) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	uid, err := parseUID(req.UID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	principal, err := rtctoken.NewPrincipal(uid, req.Account)
	if err != nil || req.ChannelName == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "channelName and either uid or account are required")
		return
	}

	token, err := api.Issuer.Issue(req.ChannelName, principal)
	if err != nil {
		if errors.Is(err, rtctoken.ErrMissingChannel) || errors.Is(err, rtctoken.ErrInvalidPrincipal) {
			response.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.Logger.Error("Token generation failed", "channel", req.ChannelName, "principal", principal.String(), "err", err)
		response.WriteJSON(w, http.StatusInternalServerError, errorDetails{Error: "Internal server error", Details: err.Error()})
		return
	}

	api.Logger.Debug("Token issued", "channel", req.ChannelName, "principal", principal.String(), "expires_at", token.ExpiresAt)
	response.WriteJSON(w, http.StatusOK, CreateTokenResponse{Token: token.Value})
}

// --- Incoming call ---

type IncomingCallRequest struct {
	CallerID     string          `json:"callerId"`
	CallerName   string          `json:"callerName,omitempty"`
	CalleeID     string          `json:"calleeId"`
	CalleeTokens json.RawMessage `json:"calleeTokens"`
	MeetingDocID string          `json:"meetingDocId"`
	Type         string          `json:"type"`
}

type FCMResponse struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}

type IncomingCallResponse struct {
	OK          bool        `json:"ok"`
	CallID      string      `json:"callId"`
	Channel     string      `json:"channel"`
	FCMResponse FCMResponse `json:"fcmResponse"`
}

func (api *CallAPI) IncomingCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IncomingCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	tokens, err := parseTokens(req.CalleeTokens)
	if err != nil || req.CallerID == "" || req.CalleeID == "" || len(tokens) == 0 {
		response.WriteJSONError(w, http.StatusBadRequest, "callerId, calleeId and calleeTokens are required")
		return
	}

	if msg := oversizedField(req); msg != "" {
		response.WriteJSONError(w, http.StatusBadRequest, msg)
		return
	}

	callID := req.MeetingDocID
	if callID == "" {
		callID = uuid.NewString()
	}
	inv := dispatch.CallInvitation{
		CallID:     callID,
		Channel:    callID,
		CallerID:   req.CallerID,
		CallerName: compose.CallerName(req.CallerName),
		CalleeID:   req.CalleeID,
		CallType:   dispatch.CallType(req.Type),
	}
	logger := api.Logger.With("call_id", callID, "callee_id", req.CalleeID)

	res, err := api.Dispatcher.DispatchCallInvitation(ctx, req.CalleeID, tokens, inv, inv.CallerName)
	if err != nil {
		logger.Error("Incoming call dispatch failed", "tokens", len(tokens), "err", err)
		response.WriteJSON(w, http.StatusInternalServerError, errorDetails{Error: "internal_server_error", Details: err.Error()})
		return
	}

	logger.Info("Incoming call dispatched", "success", res.SuccessCount, "failure", res.FailureCount, "pruned", len(res.Pruned))
	if res.ReconcileErr != nil {
		logger.Warn("Failed to remove invalid registrations", "count", len(res.Pruned), "err", res.ReconcileErr)
	}
	if err := api.Events.Publish(ctx, events.NewCallDispatched(inv, res, time.Now())); err != nil {
		logger.Warn("Failed to publish call event", "err", err)
	}

	response.WriteJSON(w, http.StatusOK, IncomingCallResponse{
		OK:      true,
		CallID:  inv.CallID,
		Channel: inv.Channel,
		FCMResponse: FCMResponse{
			SuccessCount: res.SuccessCount,
			FailureCount: res.FailureCount,
		},
	})
}

// oversizedField names the first field too large to push. An oversized
// payload is rejected by FCM per message, which would otherwise read as a
// dead registration and get every device pruned.
func oversizedField(req IncomingCallRequest) string {
	fields := []struct {
		name  string
		value string
		limit int
	}{
		{"callerId", req.CallerID, compose.MaxIDBytes},
		{"calleeId", req.CalleeID, compose.MaxIDBytes},
		{"meetingDocId", req.MeetingDocID, compose.MaxIDBytes},
		{"callerName", req.CallerName, compose.MaxCallerNameBytes},
		{"type", req.Type, compose.MaxCallTypeBytes},
	}
	for _, f := range fields {
		if len(f.value) > f.limit {
			return fmt.Sprintf("%s must be at most %d bytes", f.name, f.limit)
		}
	}
	return ""
}

// --- Call update (rejected / missed) ---

type CallUpdateRequest struct {
	Type   string          `json:"type"`
	CallID string          `json:"callId"`
	Tokens json.RawMessage `json:"tokens,omitempty"`
	UserID string          `json:"userId,omitempty"`
}

// CallUpdate validates the request, answers 202 and sends in the background.
// Delivery errors are only logged.
func (api *CallAPI) CallUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CallUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	kind, err := compose.ParseUpdateKind(req.Type)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "type must be call_rejected or missed_call")
		return
	}
	if req.CallID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "callId is required")
		return
	}
	if len(req.CallID) > compose.MaxIDBytes {
		response.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("callId must be at most %d bytes", compose.MaxIDBytes))
		return
	}
	tokens, err := parseTokens(req.Tokens)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "tokens must be a string or an array of strings")
		return
	}
	if len(tokens) == 0 && req.UserID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "tokens or userId is required")
		return
	}

	if len(tokens) == 0 {
		tokens, err = api.Store.Registrations(ctx, req.UserID)
		if err != nil {
			api.Logger.Error("Registration lookup failed", "user_id", req.UserID, "err", err)
			response.WriteJSON(w, http.StatusInternalServerError, errorDetails{Error: "internal_server_error", Details: err.Error()})
			return
		}
	}

	api.pending.Add(1)
	go func() {
		defer api.pending.Done()
		api.sendCallUpdate(context.WithoutCancel(ctx), tokens, kind, req.CallID)
	}()

	response.WriteJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (api *CallAPI) sendCallUpdate(ctx context.Context, tokens []string, kind compose.UpdateKind, callID string) {
	logger := api.Logger.With("call_id", callID, "update", kind.String())
	if len(tokens) == 0 {
		logger.Info("No devices registered; dropping call update")
		return
	}
	res, err := api.Dispatcher.SendCallUpdate(ctx, tokens, kind, callID)
	if err != nil {
		logger.Error("Call update send failed", "err", err)
		return
	}
	logger.Info("Call update sent", "success", res.SuccessCount, "failure", res.FailureCount)
}

// Drain blocks until every in-flight call update has finished or ctx ends.
func (api *CallAPI) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		api.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Health ---

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (api *CallAPI) Health(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

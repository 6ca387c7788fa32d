// --- File: internal/platform/fcm/gateway.go ---
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// MaxBatchSize is the FCM limit for a single SendEach call.
const MaxBatchSize = 500

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
// Note: *messaging.Client automatically satisfies this interface.
type MessagingClient interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

type Gateway struct {
	client MessagingClient
	logger *slog.Logger
	now    func() time.Time
}

func NewGateway(client MessagingClient, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger.With("component", "FCMGateway"),
		now:    time.Now,
	}
}

// SendBatch sends one FCM message per input message, in chunks of
// MaxBatchSize, and returns the per-message results in request order.
// A failed chunk fails the whole batch: earlier chunks may already have been
// delivered, but the caller gets no partial result.
func (g *Gateway) SendBatch(ctx context.Context, msgs []dispatch.Message) ([]dispatch.SendResult, error) {
	results := make([]dispatch.SendResult, 0, len(msgs))

	for start := 0; start < len(msgs); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(msgs))
		chunk := msgs[start:end]

		fcmMsgs := make([]*messaging.Message, len(chunk))
		for i, m := range chunk {
			fcmMsgs[i] = g.toFCM(m)
		}

		br, err := g.client.SendEach(ctx, fcmMsgs)
		if err != nil {
			return nil, fmt.Errorf("fcm transport failed: %w", err)
		}
		if len(br.Responses) != len(chunk) {
			return nil, fmt.Errorf("fcm returned %d responses for %d messages", len(br.Responses), len(chunk))
		}

		for _, resp := range br.Responses {
			results = append(results, toResult(resp))
		}
		g.logger.Debug("FCM chunk sent", "success", br.SuccessCount, "failure", br.FailureCount)
	}

	return results, nil
}

func toResult(resp *messaging.SendResponse) dispatch.SendResult {
	if resp.Success {
		return dispatch.SendResult{Success: true, MessageID: resp.MessageID}
	}
	return dispatch.SendResult{
		ErrorCode: ErrorCode(resp.Error),
		Err:       resp.Error,
	}
}

// ErrorCode maps a Firebase SDK error onto the canonical dispatch codes.
// INVALID_ARGUMENT on a single message means the token itself is malformed.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsUnregistered(err):
		return dispatch.CodeRegistrationTokenNotRegistered
	case messaging.IsInvalidArgument(err), messaging.IsSenderIDMismatch(err):
		return dispatch.CodeInvalidRegistrationToken
	case messaging.IsUnavailable(err), messaging.IsQuotaExceeded(err):
		return dispatch.CodeUnavailable
	case messaging.IsInternal(err):
		return dispatch.CodeInternal
	default:
		return dispatch.CodeUnknown
	}
}

func (g *Gateway) toFCM(m dispatch.Message) *messaging.Message {
	msg := &messaging.Message{
		Token: m.Token,
		Data:  m.Data,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
	}

	android := &messaging.AndroidConfig{
		Notification: &messaging.AndroidNotification{
			ChannelID:             m.AndroidChannelID,
			Tag:                   m.Tag,
			DefaultSound:          m.DefaultSound,
			DefaultVibrateTimings: m.DefaultSound,
		},
	}
	if m.HighPriority {
		android.Priority = "high"
	}
	if m.MaxVisibility {
		android.Notification.Priority = messaging.PriorityMax
	}
	if m.TTL > 0 {
		ttl := m.TTL
		android.TTL = &ttl
	}
	msg.Android = android

	// Call updates carry no APNs block, matching what the apps expect.
	if m.Category == "" && !m.ContentAvailable {
		return msg
	}

	headers := map[string]string{}
	if m.HighPriority {
		headers["apns-priority"] = "10"
	}
	if m.TTL > 0 {
		headers["apns-expiration"] = strconv.FormatInt(g.now().Add(m.TTL).Unix(), 10)
	}
	if m.Tag != "" {
		headers["apns-collapse-id"] = m.Tag
	}
	aps := &messaging.Aps{
		ContentAvailable: m.ContentAvailable,
		Alert: &messaging.ApsAlert{
			Title: m.Title,
			Body:  m.Body,
		},
		Category: m.Category,
	}
	if m.DefaultSound {
		aps.Sound = "default"
	}
	msg.APNS = &messaging.APNSConfig{
		Headers: headers,
		Payload: &messaging.APNSPayload{Aps: aps},
	}
	return msg
}

// --- File: internal/platform/apns/gateway.go ---
// Package apns provides a push gateway that talks to the Apple Push
// Notification Service directly.
package apns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

type Gateway struct {
	client APNSClient
	topic  string // The App Bundle ID (e.g. com.example.calls)
	logger *slog.Logger
	now    func() time.Time
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
	Production   bool
}

// NewGateway creates a configured APNS gateway.
// It parses the P8 key immediately to fail fast on startup if credentials are bad.
func NewGateway(cfg Config, logger *slog.Logger) (*Gateway, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tokenSource)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return newGateway(client, cfg.BundleID, logger), nil
}

func newGateway(client APNSClient, topic string, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		topic:  topic,
		logger: logger.With("component", "APNSGateway"),
		now:    time.Now,
	}
}

// SendBatch pushes each message in order.
// Note: APNs HTTP/2 API is unary (one request per token). There is no "Multicast" endpoint,
// so a transport error only fails the message it happened on.
func (g *Gateway) SendBatch(ctx context.Context, msgs []dispatch.Message) ([]dispatch.SendResult, error) {
	results := make([]dispatch.SendResult, len(msgs))

	for i, m := range msgs {
		res, err := g.client.PushWithContext(ctx, g.toNotification(m))
		if err != nil {
			g.logger.Error("APNs transport failed", "token", m.Token, "err", err)
			results[i] = dispatch.SendResult{ErrorCode: dispatch.CodeUnavailable, Err: err}
			continue
		}

		if res.Sent() {
			results[i] = dispatch.SendResult{Success: true, MessageID: res.ApnsID}
			continue
		}

		code := ReasonCode(res.Reason)
		if code != dispatch.CodeRegistrationTokenNotRegistered && code != dispatch.CodeInvalidRegistrationToken {
			// The token might be fine but our configuration is wrong.
			g.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
		}
		results[i] = dispatch.SendResult{
			ErrorCode: code,
			Err:       fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason),
		}
	}

	return results, nil
}

// ReasonCode maps APNs error reasons to canonical dispatch codes.
// DeviceTokenNotForTopic is left non-terminal: it is usually a wrong bundle
// id on our side and would hit every token at once.
// See: https://developer.apple.com/documentation/usernotifications/handling-notification-responses-from-apns
func ReasonCode(reason string) string {
	switch reason {
	case apns2.ReasonUnregistered:
		return dispatch.CodeRegistrationTokenNotRegistered
	case apns2.ReasonBadDeviceToken, apns2.ReasonMissingDeviceToken:
		return dispatch.CodeInvalidRegistrationToken
	case apns2.ReasonServiceUnavailable, apns2.ReasonTooManyRequests, apns2.ReasonShutdown:
		return dispatch.CodeUnavailable
	case apns2.ReasonInternalServerError:
		return dispatch.CodeInternal
	default:
		return "apns/" + reason
	}
}

func (g *Gateway) toNotification(m dispatch.Message) *apns2.Notification {
	p := payload.NewPayload().
		AlertTitle(m.Title).
		AlertBody(m.Body)
	if m.DefaultSound {
		p.Sound("default")
	}
	if m.ContentAvailable {
		p.ContentAvailable()
	}
	if m.Category != "" {
		p.Category(m.Category)
	}
	for k, v := range m.Data {
		p.Custom(k, v)
	}

	n := &apns2.Notification{
		DeviceToken: m.Token,
		Topic:       g.topic,
		Payload:     p,
		PushType:    apns2.PushTypeAlert,
		Priority:    apns2.PriorityLow,
		CollapseID:  m.Tag,
	}
	if m.HighPriority {
		n.Priority = apns2.PriorityHigh
	}
	if m.TTL > 0 {
		n.Expiration = g.now().Add(m.TTL)
	}
	return n
}

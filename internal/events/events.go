// Package events publishes call-signaling audit events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

const TypeCallDispatched = "call.dispatched"

// Event is the JSON body of a published message.
type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	CallID       string    `json:"callId"`
	CallerID     string    `json:"callerId"`
	CalleeID     string    `json:"calleeId"`
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	Pruned       []string  `json:"pruned,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// NewCallDispatched summarizes one invitation dispatch.
func NewCallDispatched(inv dispatch.CallInvitation, res dispatch.Result, at time.Time) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         TypeCallDispatched,
		CallID:       inv.CallID,
		CallerID:     inv.CallerID,
		CalleeID:     inv.CalleeID,
		SuccessCount: res.SuccessCount,
		FailureCount: res.FailureCount,
		Pruned:       res.Pruned,
		OccurredAt:   at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards events. It is used when no topic is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// PubsubPublisher publishes events to a Google Pub/Sub topic.
type PubsubPublisher struct {
	publisher *pubsub.Publisher
}

func NewPubsubPublisher(client *pubsub.Client, topicID string) *PubsubPublisher {
	return &PubsubPublisher{publisher: client.Publisher(topicID)}
}

// Publish blocks until the server acknowledged the message.
func (p *PubsubPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
	}
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   e.Type,
			"callId": e.CallID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", e.ID, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubsubPublisher) Stop() {
	p.publisher.Stop()
}

package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Envelope is the message written to the broker for every outbox event.
type Envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID int64           `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Channel names the channel an event type is published on, e.g.
// "clinic.events.appointment.created".
func Channel(prefix, eventType string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

package models

import (
	"context"
	"encoding/json"
	"time"
)

// Event is a storage change notification carried by the EventBus. Payload
// holds the serialized change description (see the events package for the
// concrete payload types per event type).
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
}

// Message is the transport-level envelope an Event travels in.
type Message struct {
	UUID     string
	Payload  []byte // serialized Event
	Metadata map[string]string
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// EventHandler processes events
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID identifies a specific event handler subscription for removal
type SubscriptionID uint64

// EventSubscriber defines the interface for subscribing to events
type EventSubscriber interface {
	Subscribe(eventType string, handler EventHandler) (SubscriptionID, error)
	Unsubscribe(eventType string, id SubscriptionID)
	Close() error
}

// PubSub abstracts the messaging transport (gochannel, SQL, Redis, Kafka,
// NATS, RabbitMQ) beneath the event bus.
type PubSub interface {
	// Publish sends a message to the specified topic
	Publish(ctx context.Context, topic string, msg *Message) error

	// Subscribe returns a channel that receives messages from the specified topic.
	// The channel should be closed when the subscription is cancelled or closed.
	Subscribe(ctx context.Context, topic string) (<-chan *Message, error)

	// Close closes the pub/sub and cleans up resources
	Close() error
}

// EventBus combines publisher and subscriber functionality
type EventBus interface {
	EventPublisher
	EventSubscriber
}

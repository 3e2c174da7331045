// Package bus carries real-time messages from the webhook receiver to
// viewers. Delivery is at-least-once with no ordering guarantee across
// subscriptions; consumers must tolerate duplicates and reordering.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is one event on a named channel. Data holds the event's JSON
// payload.
type Message struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Published time.Time       `json:"published"`
}

// NewMessage encodes data as the payload of a new message.
func NewMessage(channel, event string, data any) (Message, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return Message{
		ID:      uuid.NewString(),
		Channel: channel,
		Event:   event,
		Data:    encoded,
	}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Event, err)
	}
	return nil
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is a live handle on a channel. Close releases it and must
// be called exactly once by whoever acquired it.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus is both ends of a transport.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventPurged  EventType = "purged"
)

// PaymentEventMessage announces a change to the payment collection. It only
// carries identifiers; consumers reload the snapshot from the store.
type PaymentEventMessage struct {
	Type      EventType `json:"type"`
	Name      string    `json:"name,omitempty"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPaymentEventMessage(t EventType, name, id string) *PaymentEventMessage {
	return &PaymentEventMessage{
		Type:      t,
		Name:      name,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *PaymentEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentEventMessageFromJSON decodes and checks a message body.
func PaymentEventMessageFromJSON(data []byte) (*PaymentEventMessage, error) {
	var msg PaymentEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventCreated, EventUpdated, EventDeleted:
		if msg.Name == "" {
			return nil, fmt.Errorf("%s event without payment name", msg.Type)
		}
	case EventPurged:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}

package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	SchemaVersion = "1.0"

	HeaderService   = "service"
	HeaderEventType = "event_type"
	HeaderTimestamp = "timestamp"
)

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the wire representation of a published event.
type Envelope struct {
	EventType string         `json:"event_type"`
	Service   string         `json:"service"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Version   string         `json:"version"`
}

func NewEnvelope(eventType, service string, data map[string]any, now time.Time) Envelope {
	if data == nil {
		data = map[string]any{}
	}

	return Envelope{
		EventType: eventType,
		Service:   service,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Data:      data,
		Version:   SchemaVersion,
	}
}

func (e Envelope) Marshal() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", e.EventType, err)
	}
	return body, nil
}

// Headers duplicates the routing metadata so brokers and tools can filter
// without decoding the body.
func (e Envelope) Headers() amqp.Table {
	return amqp.Table{
		HeaderService:   e.Service,
		HeaderEventType: e.EventType,
		HeaderTimestamp: e.Timestamp,
	}
}

// Time parses the envelope timestamp.
func (e Envelope) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// DecodeEnvelope unmarshals a message body. Bodies without an event type are
// rejected.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("%w: missing event_type", ErrInvalidEnvelope)
	}

	if env.Data == nil {
		env.Data = map[string]any{}
	}

	return env, nil
}

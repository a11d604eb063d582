package messaging

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("broker client is not connected")
	ErrNoEventTypes = errors.New("no event types to subscribe")
	ErrNilHandler   = errors.New("handler is nil")
)

// ConnectionError reports that the broker could not be reached. Services
// treat it as non-fatal and keep running without eventing.
type ConnectionError struct {
	Service string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: failed to connect to RabbitMQ: %v", e.Service, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PublishError is returned to the producing code path when an event could
// not be handed to the broker.
type PublishError struct {
	EventType string
	Exchange  string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish %s to %s: %v", e.EventType, e.Exchange, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// CallbackError wraps a handler failure. The delivery is still acknowledged.
type CallbackError struct {
	EventType string
	Queue     string
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("handler for %s on %s failed: %v", e.EventType, e.Queue, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventAuditLog is one broker event as observed by the audit consumer.
type EventAuditLog struct {
	ID          string         `bson:"_id" json:"id"`
	EventType   string         `bson:"event_type" json:"eventType"`
	Service     string         `bson:"service" json:"service"`
	Version     string         `bson:"version" json:"version"`
	Data        map[string]any `bson:"data,omitempty" json:"data,omitempty"`
	PublishedAt time.Time      `bson:"published_at" json:"publishedAt"`
	ReceivedAt  time.Time      `bson:"received_at" json:"receivedAt"`
}

type EventAuditRepository interface {
	Log(ctx context.Context, log *EventAuditLog) error
	GetByEventType(ctx context.Context, eventType string, from, to time.Time) ([]EventAuditLog, error)
	GetByService(ctx context.Context, service string, limit int) ([]EventAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

// NewEventAuditLog falls back to receivedAt when the publish time cannot be
// parsed.
func NewEventAuditLog(eventType, service, version, timestamp string, data map[string]any, receivedAt time.Time) *EventAuditLog {
	publishedAt, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		publishedAt = receivedAt
	}

	return &EventAuditLog{
		ID:          uuid.NewString(),
		EventType:   eventType,
		Service:     service,
		Version:     version,
		Data:        data,
		PublishedAt: publishedAt.UTC(),
		ReceivedAt:  receivedAt.UTC(),
	}
}

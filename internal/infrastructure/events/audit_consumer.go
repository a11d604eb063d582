package events

import (
	"context"
	"fmt"
	"time"

	"github.com/hilthontt/eventrelay/internal/domain"
	"github.com/hilthontt/eventrelay/internal/infrastructure/contracts"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/messaging"
)

const AuditQueueGroup = "auditor"

// AuditConsumer stores every event of the catalogue.
type AuditConsumer struct {
	subscriber Subscriber
	repo       domain.EventAuditRepository
	logger     logging.Logger
	timeout    time.Duration
}

func NewAuditConsumer(subscriber Subscriber, repo domain.EventAuditRepository, logger logging.Logger) *AuditConsumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuditConsumer{
		subscriber: subscriber,
		repo:       repo,
		logger:     logger,
		timeout:    5 * time.Second,
	}
}

func (c *AuditConsumer) Listen(ctx context.Context) error {
	return c.subscriber.Subscribe(ctx, contracts.AllEvents, c.Handle, messaging.WithQueueGroup(AuditQueueGroup))
}

func (c *AuditConsumer) Handle(ctx context.Context, eventType string, env messaging.Envelope) error {
	entry := domain.NewEventAuditLog(eventType, env.Service, env.Version, env.Timestamp, env.Data, time.Now())

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to store audit log for %s: %w", eventType, err)
	}

	c.logger.Debug(logging.MongoDB, logging.Insert, "event audited", map[logging.ExtraKey]any{
		logging.EventType: eventType,
		logging.Service:   env.Service,
	})

	return nil
}

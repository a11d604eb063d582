package events

import (
	"context"

	"github.com/hilthontt/eventrelay/internal/infrastructure/contracts"
	"github.com/hilthontt/eventrelay/internal/infrastructure/messaging"
)

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data map[string]any, opts ...messaging.PublishOption) error
}

// Publisher gives producers named operations for the common events.
type Publisher struct {
	client EventPublisher
}

func NewPublisher(client EventPublisher) *Publisher {
	return &Publisher{
		client: client,
	}
}

// PublishEvent publishes any event type. An empty routingKey routes by the
// event type.
func (p *Publisher) PublishEvent(ctx context.Context, eventType string, data map[string]any, routingKey string) error {
	var opts []messaging.PublishOption
	if routingKey != "" {
		opts = append(opts, messaging.WithRoutingKey(routingKey))
	}
	return p.client.Publish(ctx, eventType, data, opts...)
}

func (p *Publisher) PublishUserRegistered(ctx context.Context, user map[string]any) error {
	return p.client.Publish(ctx, contracts.EventUserRegistered, user)
}

func (p *Publisher) PublishUserLogin(ctx context.Context, user map[string]any) error {
	return p.client.Publish(ctx, contracts.EventUserLogin, user)
}

func (p *Publisher) PublishContentCreated(ctx context.Context, content map[string]any) error {
	return p.client.Publish(ctx, contracts.EventContentCreated, content)
}

func (p *Publisher) PublishMessageSent(ctx context.Context, message map[string]any) error {
	return p.client.Publish(ctx, contracts.EventMessageSent, message)
}

func (p *Publisher) PublishModerationReview(ctx context.Context, review map[string]any) error {
	return p.client.Publish(ctx, contracts.EventModerationReview, review)
}

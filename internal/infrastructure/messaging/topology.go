package messaging

import "strings"

const (
	UserExchange          = "user.events"
	ContentExchange       = "content.events"
	CollaborationExchange = "collaboration.events"
	CommunicationExchange = "communication.events"
	ModerationExchange    = "moderation.events"

	DefaultExchange = UserExchange

	queueSuffix = ".queue"
)

// ExchangeConfig describes a topic exchange owned by the platform.
type ExchangeConfig struct {
	Name    string
	Kind    string
	Durable bool
}

// QueueConfig describes the queue a consumer binds for one event type.
type QueueConfig struct {
	Name       string
	Exchange   string
	RoutingKey string
	Durable    bool
}

var exchanges = []ExchangeConfig{
	{Name: UserExchange, Kind: "topic", Durable: true},
	{Name: ContentExchange, Kind: "topic", Durable: true},
	{Name: CollaborationExchange, Kind: "topic", Durable: true},
	{Name: CommunicationExchange, Kind: "topic", Durable: true},
	{Name: ModerationExchange, Kind: "topic", Durable: true},
}

// exchangeByDomain maps the first dot-segment of an event type to its exchange.
var exchangeByDomain = map[string]string{
	"user":          UserExchange,
	"content":       ContentExchange,
	"collaboration": CollaborationExchange,
	"forum":         CollaborationExchange,
	"comment":       CollaborationExchange,
	"message":       CommunicationExchange,
	"chat":          CommunicationExchange,
	"moderation":    ModerationExchange,
}

// queues is keyed by the event type with dots replaced by underscores.
var queues = map[string]QueueConfig{
	"user_registered":       {Name: "user.registered.queue", Exchange: UserExchange, RoutingKey: "user.registered", Durable: true},
	"user_updated":          {Name: "user.updated.queue", Exchange: UserExchange, RoutingKey: "user.updated", Durable: true},
	"user_deleted":          {Name: "user.deleted.queue", Exchange: UserExchange, RoutingKey: "user.deleted", Durable: true},
	"content_created":       {Name: "content.created.queue", Exchange: ContentExchange, RoutingKey: "content.created", Durable: true},
	"content_updated":       {Name: "content.updated.queue", Exchange: ContentExchange, RoutingKey: "content.updated", Durable: true},
	"content_deleted":       {Name: "content.deleted.queue", Exchange: ContentExchange, RoutingKey: "content.deleted", Durable: true},
	"collaboration_started": {Name: "collaboration.started.queue", Exchange: CollaborationExchange, RoutingKey: "collaboration.started", Durable: true},
	"collaboration_ended":   {Name: "collaboration.ended.queue", Exchange: CollaborationExchange, RoutingKey: "collaboration.ended", Durable: true},
	"message_sent":          {Name: "message.sent.queue", Exchange: CommunicationExchange, RoutingKey: "message.sent", Durable: true},
	"message_edited":        {Name: "message.edited.queue", Exchange: CommunicationExchange, RoutingKey: "message.edited", Durable: true},
	"moderation_review":     {Name: "moderation.review.queue", Exchange: ModerationExchange, RoutingKey: "moderation.review", Durable: true},
	"moderation_approved":   {Name: "moderation.approved.queue", Exchange: ModerationExchange, RoutingKey: "moderation.approved", Durable: true},
	"moderation_rejected":   {Name: "moderation.rejected.queue", Exchange: ModerationExchange, RoutingKey: "moderation.rejected", Durable: true},
}

// Exchanges returns every exchange declared at connect time.
func Exchanges() []ExchangeConfig {
	out := make([]ExchangeConfig, len(exchanges))
	copy(out, exchanges)
	return out
}

// ExchangeFor resolves the exchange an event type is published to. Unknown
// domains fall back to DefaultExchange.
func ExchangeFor(eventType string) string {
	domain, _, _ := strings.Cut(eventType, ".")
	if exchange, ok := exchangeByDomain[domain]; ok {
		return exchange
	}
	return DefaultExchange
}

// QueueConfigFor returns the static queue configuration for an event type or
// synthesizes a durable default named "<event_type_with_underscores>.queue".
func QueueConfigFor(eventType string) QueueConfig {
	key := strings.ReplaceAll(eventType, ".", "_")
	if cfg, ok := queues[key]; ok {
		return cfg
	}

	return QueueConfig{
		Name:       key + queueSuffix,
		Exchange:   ExchangeFor(eventType),
		RoutingKey: eventType,
		Durable:    true,
	}
}

// WithGroup returns a copy whose queue name is suffixed with group, giving
// the group its own copy of every message routed to the event type.
func (q QueueConfig) WithGroup(group string) QueueConfig {
	if group == "" {
		return q
	}
	q.Name = q.Name + "." + group
	return q
}

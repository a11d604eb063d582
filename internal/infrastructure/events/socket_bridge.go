package events

import (
	"context"

	"github.com/hilthontt/eventrelay/internal/infrastructure/contracts"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/messaging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ws"
)

// BroadcastQueueGroup gives the bridge its own queue per event type so it
// never competes with the services consuming the same events.
const BroadcastQueueGroup = "broadcast"

type Subscriber interface {
	Subscribe(ctx context.Context, eventTypes []string, handler messaging.Handler, opts ...messaging.SubscribeOption) error
}

type Sockets interface {
	UserIDs() []string
	SendToUser(userID string, message []byte)
}

// SocketBridge relays broker events to every live socket.
type SocketBridge struct {
	subscriber Subscriber
	sockets    Sockets
	logger     logging.Logger
}

func NewSocketBridge(subscriber Subscriber, sockets Sockets, logger logging.Logger) *SocketBridge {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SocketBridge{
		subscriber: subscriber,
		sockets:    sockets,
		logger:     logger,
	}
}

func (b *SocketBridge) Listen(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, contracts.BroadcastEvents, b.Handle, messaging.WithQueueGroup(BroadcastQueueGroup))
}

func (b *SocketBridge) Handle(_ context.Context, eventType string, env messaging.Envelope) error {
	msg, err := ws.NewEvent(eventType, env.Data, env.Timestamp)
	if err != nil {
		return err
	}

	users := b.sockets.UserIDs()
	for _, userID := range users {
		b.sockets.SendToUser(userID, msg)
	}

	b.logger.Debug(logging.WebSocket, logging.Relay, "event relayed to sockets", map[logging.ExtraKey]any{
		logging.EventType:  eventType,
		logging.Recipients: len(users),
	})

	return nil
}

package health

import (
	"net/http"
	"time"

	"github.com/hilthontt/eventrelay/internal/infrastructure/json"
	"github.com/hilthontt/eventrelay/internal/infrastructure/messaging"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

type Broker interface {
	Connected() bool
	Subscriptions() []messaging.Subscription
}

type Sockets interface {
	ConnectionCount() int
	RoomCount() int
}

type Handler struct {
	service string
	broker  Broker
	sockets Sockets
	started time.Time
	now     func() time.Time
}

// NewHandler builds the root and health handlers. broker may be nil.
func NewHandler(service string, broker Broker, sockets Sockets) *Handler {
	return &Handler{
		service: service,
		broker:  broker,
		sockets: sockets,
		started: time.Now(),
		now:     time.Now,
	}
}

func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, rootResponse{
		Service:           h.service,
		Status:            "running",
		ActiveConnections: h.sockets.ConnectionCount(),
		ActiveRooms:       h.sockets.RoomCount(),
	})
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	data := healthResponse{
		Status:    StatusHealthy,
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.started).Round(time.Second).String(),
	}

	if h.broker != nil {
		broker := &brokerResponse{
			Connected:     h.broker.Connected(),
			Subscriptions: []subscriptionResponse{},
		}
		for _, s := range h.broker.Subscriptions() {
			broker.Subscriptions = append(broker.Subscriptions, subscriptionResponse{
				EventType:   s.EventType,
				Queue:       s.Queue,
				Exchange:    s.Exchange,
				ConsumerTag: s.ConsumerTag,
			})
		}
		if !broker.Connected {
			data.Status = StatusDegraded
		}
		data.Broker = broker
	}

	json.Write(w, http.StatusOK, data)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventrelay"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups every collector of a process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsPublished   *prometheus.CounterVec
	eventsConsumed    *prometheus.CounterVec
	callbackDuration  *prometheus.HistogramVec
	brokerReconnects  prometheus.Counter
	brokerConnected   prometheus.Gauge
	activeConnections prometheus.Gauge
	activeRooms       prometheus.Gauge
	socketMessages    *prometheus.CounterVec
	socketFrames      *prometheus.CounterVec
	httpRequests      *prometheus.HistogramVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "broker",
			Name:        "events_published_total",
			Help:        "Events published to the broker.",
			ConstLabels: labels,
		}, []string{"event_type", "status"}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "broker",
			Name:        "events_consumed_total",
			Help:        "Deliveries handled by consumer callbacks.",
			ConstLabels: labels,
		}, []string{"event_type", "status"}),
		callbackDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "broker",
			Name:        "callback_duration_seconds",
			Help:        "Time spent inside consumer callbacks.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"event_type"}),
		brokerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "broker",
			Name:        "reconnects_total",
			Help:        "Successful reconnections after a connection loss.",
			ConstLabels: labels,
		}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "broker",
			Name:        "connected",
			Help:        "1 while a broker connection is open.",
			ConstLabels: labels,
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ws",
			Name:        "active_connections",
			Help:        "Live socket connections.",
			ConstLabels: labels,
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ws",
			Name:        "active_rooms",
			Help:        "Rooms with at least one member.",
			ConstLabels: labels,
		}),
		socketMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ws",
			Name:        "messages_sent_total",
			Help:        "Messages written to sockets.",
			ConstLabels: labels,
		}, []string{"status"}),
		socketFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ws",
			Name:        "frames_received_total",
			Help:        "Client frames received, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.eventsPublished,
		m.eventsConsumed,
		m.callbackDuration,
		m.brokerReconnects,
		m.brokerConnected,
		m.activeConnections,
		m.activeRooms,
		m.socketMessages,
		m.socketFrames,
		m.httpRequests,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, status(err)).Inc()
}

func (m *Metrics) EventConsumed(eventType string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(eventType, status(err)).Inc()
	m.callbackDuration.WithLabelValues(eventType).Observe(took.Seconds())
}

func (m *Metrics) BrokerConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.brokerConnected.Set(1)
		return
	}
	m.brokerConnected.Set(0)
}

func (m *Metrics) BrokerReconnected() {
	if m == nil {
		return
	}
	m.brokerReconnects.Inc()
}

func (m *Metrics) SocketState(connections, rooms int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(connections))
	m.activeRooms.Set(float64(rooms))
}

func (m *Metrics) SocketMessageSent(err error) {
	if m == nil {
		return
	}
	m.socketMessages.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.socketFrames.WithLabelValues(frameType).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, statusCode int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Observe(took.Seconds())
}

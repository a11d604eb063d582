package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New("test-service")

	m.EventPublished("content.created", nil)
	m.EventPublished("content.created", errors.New("boom"))
	m.EventConsumed("content.created", 10*time.Millisecond, nil)
	m.SocketState(3, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("content.created", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("content.created", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsConsumed.WithLabelValues("content.created", StatusOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRooms))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.EventPublished("user.login", nil)
		m.EventConsumed("user.login", time.Second, nil)
		m.BrokerConnected(true)
		m.BrokerReconnected()
		m.SocketState(1, 1)
		m.SocketMessageSent(nil)
		m.FrameReceived("chat_message")
		m.HTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New("test-service")
	m.BrokerConnected(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eventrelay_broker_connected")
}

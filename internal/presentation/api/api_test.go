package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/eventrelay/internal/infrastructure/configs"
	"github.com/hilthontt/eventrelay/internal/infrastructure/metrics"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ws"
	healthHandler "github.com/hilthontt/eventrelay/internal/presentation/handler/health"
	realtimeHandler "github.com/hilthontt/eventrelay/internal/presentation/handler/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() configs.Config {
	return configs.Config{
		Service: configs.ServiceConfig{Name: "broadcast-test"},
		HTTP: configs.HTTPConfig{
			Host:           "127.0.0.1",
			AllowedOrigins: []string{"*"},
			AllowedHeaders: []string{"Content-Type"},
		},
	}
}

func newTestApp(t *testing.T, limiter ratelimiter.Limiter) (*httptest.Server, *ws.Manager) {
	t.Helper()

	cfg := testConfig()
	m := metrics.New("broadcast-test")
	manager := ws.NewManager(nil, m)
	app := NewApplication(
		cfg,
		healthHandler.NewHandler(cfg.Service.Name, nil, manager),
		realtimeHandler.NewHandler(manager, cfg.WebSocket, nil),
		nil,
		m,
		limiter,
	)
	app.ReleaseSocketLimits(manager)

	srv := httptest.NewServer(app.Mount())
	t.Cleanup(func() {
		manager.Close()
		srv.Close()
	})
	return srv, manager
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func dialUser(t *testing.T, srv *httptest.Server, manager *ws.Manager, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return manager.IsConnected(userID) }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func TestRootAndConnections(t *testing.T) {
	srv, manager := newTestApp(t, nil)

	body := getJSON(t, srv.URL+"/")
	assert.Equal(t, "broadcast-test", body["service"])
	assert.EqualValues(t, 0, body["active_connections"])

	dialUser(t, srv, manager, "u2")
	dialUser(t, srv, manager, "u1")

	body = getJSON(t, srv.URL+"/connections")
	assert.EqualValues(t, 2, body["active_connections"])
	assert.Equal(t, []any{"u1", "u2"}, body["connected_users"])
}

func TestRooms(t *testing.T) {
	srv, manager := newTestApp(t, nil)

	u1 := dialUser(t, srv, manager, "u1")
	dialUser(t, srv, manager, "u2")

	require.NoError(t, u1.WriteJSON(map[string]any{"type": "join_room", "room_id": "lobby"}))
	require.Eventually(t, func() bool { return manager.RoomCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, manager.JoinRoom("u2", "lobby"))

	body := getJSON(t, srv.URL+"/rooms")
	assert.EqualValues(t, 1, body["total_rooms"])
	lobby := body["rooms"].(map[string]any)["lobby"].(map[string]any)
	assert.EqualValues(t, 2, lobby["user_count"])
	assert.Equal(t, []any{"u1", "u2"}, lobby["users"])

	room := getJSON(t, srv.URL+"/rooms/lobby")
	assert.EqualValues(t, 2, room["user_count"])

	resp, err := http.Get(srv.URL + "/rooms/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestApp(t, nil)

	body := getJSON(t, srv.URL+"/health")
	assert.Equal(t, healthHandler.StatusHealthy, body["status"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ws_active_connections")
}

func TestCorsPreflight(t *testing.T) {
	srv, _ := newTestApp(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestRateLimiting(t *testing.T) {
	limiter, err := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })

	srv, _ := newTestApp(t, limiter)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/connections")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health checks are not rate limited")
}

func TestSocketUpgradesLimitedPerUser(t *testing.T) {
	clock := &stepClock{now: time.UnixMilli(1_700_000_000_000)}
	store := ratelimiter.NewInMemory(ratelimiter.WithStoreClock(clock.Now), ratelimiter.WithSweepInterval(0))
	limiter, err := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: 1,
		MaxBurst:         2,
		Cache:            store,
		CacheTTL:         time.Hour,
		Clock:            clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })

	srv, manager := newTestApp(t, limiter)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"

	for i := 0; i < 2; i++ {
		conn := dialUser(t, srv, manager, "u1")
		require.NoError(t, conn.Close())
		require.Eventually(t, func() bool { return !manager.IsConnected("u1") }, 2*time.Second, 5*time.Millisecond)
	}

	// the bucket survives the disconnect until it would have refilled
	require.Eventually(t, func() bool { return store.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	_, resp, err := websocket.DefaultDialer.Dial(url+"u1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// another user has its own bucket, whatever the source address
	dialUser(t, srv, manager, "u2")

	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, store.Len(), "u2 is still connected")
	dialUser(t, srv, manager, "u1")
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	manager := ws.NewManager(nil, nil)
	app := NewApplication(cfg,
		healthHandler.NewHandler(cfg.Service.Name, nil, manager),
		realtimeHandler.NewHandler(manager, cfg.WebSocket, nil),
		nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, app.Mount()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

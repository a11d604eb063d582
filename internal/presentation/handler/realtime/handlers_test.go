package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/eventrelay/internal/infrastructure/configs"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSocket struct{}

func (nopSocket) WriteMessage([]byte) error { return nil }
func (nopSocket) Close() error              { return nil }

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/u1", nil)
	req.Header.Set("Origin", "https://evil.example")

	open := checkOrigin(configs.WebSocketConfig{CheckOrigin: false})
	assert.True(t, open(req))

	wildcard := checkOrigin(configs.WebSocketConfig{CheckOrigin: true, AllowedOrigins: []string{"*"}})
	assert.True(t, wildcard(req))

	strict := checkOrigin(configs.WebSocketConfig{CheckOrigin: true, AllowedOrigins: []string{"https://app.example"}})
	assert.False(t, strict(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, strict(req))
}

func TestGetRoomsAndConnections(t *testing.T) {
	manager := ws.NewManager(nil, nil)
	manager.Connect(nopSocket{}, "u1")
	manager.Connect(nopSocket{}, "u2")
	require.True(t, manager.JoinRoom("u1", "doc"))

	h := NewHandler(manager, configs.WebSocketConfig{}, nil)

	rec := httptest.NewRecorder()
	h.GetRooms(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	var rooms roomsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	assert.Equal(t, 1, rooms.TotalRooms)
	assert.Equal(t, roomResponse{UserCount: 1, Users: []string{"u1"}}, rooms.Rooms["doc"])

	rec = httptest.NewRecorder()
	h.GetConnections(rec, httptest.NewRequest(http.MethodGet, "/connections", nil))
	var conns connectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conns))
	assert.Equal(t, 2, conns.ActiveConnections)
	assert.Equal(t, []string{"u1", "u2"}, conns.ConnectedUsers)
}

func TestServeWSRequiresUserID(t *testing.T) {
	h := NewHandler(ws.NewManager(nil, nil), configs.WebSocketConfig{}, nil)

	r := chi.NewRouter()
	r.Get("/ws/{userId}", h.ServeWS)
	r.Get("/ws/", h.ServeWS)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

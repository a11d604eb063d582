package realtime

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/eventrelay/internal/infrastructure/configs"
	"github.com/hilthontt/eventrelay/internal/infrastructure/json"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ws"
)

type Handler struct {
	manager   *ws.Manager
	upgrader  websocket.Upgrader
	clientCfg ws.ClientConfig
	logger    logging.Logger
}

func NewHandler(manager *ws.Manager, cfg configs.WebSocketConfig, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      checkOrigin(cfg),
		},
		clientCfg: ws.ClientConfig{
			WriteTimeout:    cfg.WriteTimeout,
			PongTimeout:     cfg.PongTimeout,
			PingInterval:    cfg.PingInterval,
			MaxMessageSize:  cfg.MaxMessageSize,
			FramesPerSecond: cfg.FramesPerSecond,
			FrameBurst:      cfg.FrameBurst,
		},
		logger: logger,
	}
}

func checkOrigin(cfg configs.WebSocketConfig) func(*http.Request) bool {
	if !cfg.CheckOrigin || slices.Contains(cfg.AllowedOrigins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
	}
}

// ServeWS upgrades GET /ws/{userId}. The user id is taken as given.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		json.WriteBadRequestError(w, "user id is missing")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.WebSocket, logging.Accept, "upgrade failed", map[logging.ExtraKey]any{
			logging.UserID:       userID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	started := time.Now()
	ws.NewClient(conn, userID, h.manager, h.clientCfg, h.logger).Serve(r.Context())

	h.logger.Debug(logging.WebSocket, logging.Accept, "socket session ended", map[logging.ExtraKey]any{
		logging.UserID:  userID,
		logging.Latency: time.Since(started).String(),
	})
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.manager.Rooms()

	resp := roomsResponse{
		Rooms:      make(map[string]roomResponse, len(rooms)),
		TotalRooms: len(rooms),
	}
	for roomID, users := range rooms {
		resp.Rooms[roomID] = roomResponse{UserCount: len(users), Users: users}
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	users := h.manager.RoomMembers(roomID)
	if len(users) == 0 {
		json.WriteNotFoundError(w, "Room not found")
		return
	}

	json.Write(w, http.StatusOK, roomResponse{UserCount: len(users), Users: users})
}

func (h *Handler) GetConnections(w http.ResponseWriter, r *http.Request) {
	users := h.manager.UserIDs()

	json.Write(w, http.StatusOK, connectionsResponse{
		ActiveConnections: len(users),
		ConnectedUsers:    users,
	})
}

package ws

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"golang.org/x/time/rate"
)

type ClientConfig struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	FramesPerSecond float64
	FrameBurst      int
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.FrameBurst <= 0 {
		c.FrameBurst = 1
	}
	return c
}

// Client is one upgraded socket owned by a user id.
type Client struct {
	conn    *connWrapper
	raw     *websocket.Conn
	manager *Manager
	limiter *rate.Limiter
	logger  logging.Logger
	cfg     ClientConfig

	UserID string
}

func NewClient(conn *websocket.Conn, userID string, manager *Manager, cfg ClientConfig, logger logging.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	limit := rate.Inf
	if cfg.FramesPerSecond > 0 {
		limit = rate.Limit(cfg.FramesPerSecond)
	}

	return &Client{
		conn:    newConnWrapper(conn, cfg.WriteTimeout),
		raw:     conn,
		manager: manager,
		limiter: rate.NewLimiter(limit, cfg.FrameBurst),
		logger:  logger,
		cfg:     cfg,
		UserID:  userID,
	}
}

// Serve registers the client and reads frames until the socket fails, the
// peer closes or ctx is cancelled.
func (c *Client) Serve(ctx context.Context) {
	c.manager.Connect(c.conn, c.UserID)
	defer c.manager.disconnectSocket(c.UserID, c.conn)
	defer c.conn.Close()

	done := make(chan struct{})
	defer close(done)

	go c.keepalive(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.CloseWith(websocket.CloseGoingAway, "server shutting down")
		case <-done:
		}
	}()

	c.ReadMessage()
}

func (c *Client) ReadMessage() {
	c.raw.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.raw.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.raw.SetPongHandler(func(string) error {
		return c.raw.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, raw, err := c.raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.WebSocket, logging.Receive, "ws read error", map[logging.ExtraKey]any{
					logging.UserID:       c.UserID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		_ = c.raw.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

		if !c.limiter.Allow() {
			c.reply(&FrameError{Code: CodeRateLimited, Message: "too many frames"})
			continue
		}

		if err := c.manager.Dispatch(c.UserID, raw); err != nil {
			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				frameErr = &FrameError{Code: CodeInvalidFrame, Message: err.Error()}
			}
			c.reply(frameErr)
		}
	}
}

func (c *Client) reply(frameErr *FrameError) {
	c.logger.Debug(logging.WebSocket, logging.Receive, "rejected frame", map[logging.ExtraKey]any{
		logging.UserID:       c.UserID,
		logging.ErrorMessage: frameErr.Error(),
	})

	msg, err := NewError(frameErr.Code, frameErr.Message)
	if err != nil {
		return
	}
	if err := c.conn.WriteMessage(msg); err != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) keepalive(done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				c.logger.Debug(logging.WebSocket, logging.Keepalive, "ping failed", map[logging.ExtraKey]any{
					logging.UserID:       c.UserID,
					logging.ErrorMessage: err.Error(),
				})
				_ = c.conn.Close()
				return
			}
		}
	}
}

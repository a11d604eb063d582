// Package notify lets a backend service push frames to connected users
// through the broadcast server's socket endpoint.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/ws"
)

const (
	DefaultURL = "ws://websocket-service:8000"

	MessageNotification        = "notification"
	MessageContentUpdate       = "content_update"
	MessageModerationResult    = "moderation_result"
	MessageCollaborationUpdate = "collaboration_update"
)

var ErrNotConnected = errors.New("notify: not connected to broadcast server")

type Option func(*Client)

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialer.HandshakeTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.writeTimeout = d
	}
}

// Client holds one socket to the broadcast server, connected as serviceID.
type Client struct {
	baseURL      string
	serviceID    string
	dialer       websocket.Dialer
	writeTimeout time.Duration
	logger       logging.Logger
	now          func() time.Time

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func New(baseURL, serviceID string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceID:    serviceID,
		dialer:       websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		writeTimeout: 5 * time.Second,
		logger:       logging.NewNopLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint() string {
	base := c.baseURL
	if after, ok := strings.CutPrefix(base, "https://"); ok {
		base = "wss://" + after
	} else if after, ok := strings.CutPrefix(base, "http://"); ok {
		base = "ws://" + after
	}
	return base + "/ws/" + url.PathEscape(c.serviceID)
}

// Connect dials the broadcast server. Calling it while connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint(), nil)
	if err != nil {
		c.logger.Error(logging.WebSocket, logging.ExternalService, "failed to connect to broadcast server", map[logging.ExtraKey]any{
			logging.Service:      c.serviceID,
			logging.ErrorMessage: err.Error(),
		})
		return fmt.Errorf("notify: connect %s: %w", c.endpoint(), err)
	}

	c.conn = conn
	c.done = make(chan struct{})
	go c.read(conn, c.done)

	c.logger.Info(logging.WebSocket, logging.ExternalService, "connected to broadcast server", map[logging.ExtraKey]any{
		logging.Service: c.serviceID,
	})
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close sends a close frame and waits for the reader to stop.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	<-done

	c.logger.Info(logging.WebSocket, logging.ExternalService, "disconnected from broadcast server", map[logging.ExtraKey]any{
		logging.Service: c.serviceID,
	})
	return err
}

// read keeps control frames flowing and surfaces error frames in the log.
func (c *Client) read(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				_ = conn.Close()
			}
			c.mu.Unlock()
			return
		}

		var frame ws.ErrorPayload
		if json.Unmarshal(raw, &frame) == nil && frame.Type == ws.ErrorEvent {
			c.logger.Warn(logging.WebSocket, logging.Receive, "broadcast server rejected frame", map[logging.ExtraKey]any{
				logging.Service:      c.serviceID,
				logging.ErrorMessage: frame.Code + ": " + frame.Message,
			})
		}
	}
}

func (c *Client) send(ctx context.Context, f ws.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("notify: send %s: %w", f.Type, err)
	}
	return nil
}

func (c *Client) frame(frameType, messageType string, data any) (ws.Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return ws.Frame{}, fmt.Errorf("notify: encode %s: %w", messageType, err)
	}
	return ws.Frame{
		Type:        frameType,
		MessageType: messageType,
		Data:        raw,
		ServiceID:   c.serviceID,
	}, nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}

func (c *Client) SendToUser(ctx context.Context, userID, messageType string, data any) error {
	f, err := c.frame(ws.ServiceMessage, messageType, data)
	if err != nil {
		return err
	}
	f.TargetUser = userID

	if err := c.send(ctx, f); err != nil {
		c.logger.Error(logging.WebSocket, logging.Send, "failed to send to user", map[logging.ExtraKey]any{
			logging.Service:      c.serviceID,
			logging.UserID:       userID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}
	return nil
}

func (c *Client) SendToRoom(ctx context.Context, roomID, messageType string, data any) error {
	f, err := c.frame(ws.ServiceRoomMessage, messageType, data)
	if err != nil {
		return err
	}
	f.RoomID = roomID

	if err := c.send(ctx, f); err != nil {
		c.logger.Error(logging.WebSocket, logging.Send, "failed to send to room", map[logging.ExtraKey]any{
			logging.Service:      c.serviceID,
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}
	return nil
}

type Notification struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Notify sends a notification; kind defaults to "info".
func (c *Client) Notify(ctx context.Context, userID, title, message, kind string) error {
	if kind == "" {
		kind = "info"
	}
	return c.SendToUser(ctx, userID, MessageNotification, Notification{
		Title:     title,
		Message:   message,
		Type:      kind,
		Timestamp: c.timestamp(),
	})
}

type CollaborationUpdate struct {
	UpdateType string `json:"update_type"`
	Data       any    `json:"data"`
	Timestamp  string `json:"timestamp"`
}

func (c *Client) CollaborationUpdate(ctx context.Context, roomID, updateType string, data any) error {
	return c.SendToRoom(ctx, roomID, MessageCollaborationUpdate, CollaborationUpdate{
		UpdateType: updateType,
		Data:       data,
		Timestamp:  c.timestamp(),
	})
}

type ContentUpdate struct {
	ContentID  string `json:"content_id"`
	UpdateType string `json:"update_type"`
	Data       any    `json:"data"`
	Timestamp  string `json:"timestamp"`
}

func (c *Client) ContentUpdate(ctx context.Context, userID, contentID, updateType string, data any) error {
	return c.SendToUser(ctx, userID, MessageContentUpdate, ContentUpdate{
		ContentID:  contentID,
		UpdateType: updateType,
		Data:       data,
		Timestamp:  c.timestamp(),
	})
}

// ModerationResult is "approved", "rejected" or "pending".
type ModerationResult struct {
	ContentID string  `json:"content_id"`
	Result    string  `json:"result"`
	Reason    *string `json:"reason"`
	Timestamp string  `json:"timestamp"`
}

func (c *Client) ModerationResult(ctx context.Context, userID, contentID, result, reason string) error {
	payload := ModerationResult{
		ContentID: contentID,
		Result:    result,
		Timestamp: c.timestamp(),
	}
	if reason != "" {
		payload.Reason = &reason
	}
	return c.SendToUser(ctx, userID, MessageModerationResult, payload)
}

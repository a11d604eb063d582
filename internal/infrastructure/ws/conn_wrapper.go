package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is a live client connection as seen by the Manager.
// Implementations must serialize their own writes.
type Socket interface {
	WriteMessage(data []byte) error
	Close() error
}

type connWrapper struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mutex  sync.Mutex
	closed bool
}

func newConnWrapper(c *websocket.Conn, writeTimeout time.Duration) *connWrapper {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &connWrapper{conn: c, writeTimeout: writeTimeout}
}

func (w *connWrapper) WriteMessage(data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrSocketClosed
	}

	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *connWrapper) Ping() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrSocketClosed
	}
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

func (w *connWrapper) Close() error {
	return w.CloseWith(websocket.CloseNormalClosure, "")
}

// CloseWith sends a close frame and closes the connection. Only the first
// call has any effect.
func (w *connWrapper) CloseWith(code int, reason string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	return w.conn.Close()
}

package ws

import (
	"sync"

	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	"github.com/hilthontt/eventrelay/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentSends bounds the writers of one fan-out.
const maxConcurrentSends = 32

// Manager tracks one live socket per user and the rooms users have joined.
// Every map is guarded by mu; socket writes happen outside it.
type Manager struct {
	logger  logging.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	conns        map[string]Socket
	rooms        index // room → users
	joins        index // user → rooms
	onDisconnect []func(userID string)
}

func NewManager(logger logging.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{
		logger:  logger,
		metrics: m,
		conns:   make(map[string]Socket),
		rooms:   make(index),
		joins:   make(index),
	}
}

type target struct {
	userID string
	socket Socket
}

// Connect registers socket for userID. A socket already registered for the
// user is closed; room memberships carry over to the new socket.
func (m *Manager) Connect(socket Socket, userID string) {
	m.mu.Lock()
	previous, replaced := m.conns[userID]
	m.conns[userID] = socket
	conns, rooms := len(m.conns), len(m.rooms)
	m.mu.Unlock()

	m.metrics.SocketState(conns, rooms)

	if replaced && previous != socket {
		_ = previous.Close()
		m.logger.Info(logging.WebSocket, logging.Connection, "superseded socket closed", map[logging.ExtraKey]any{
			logging.UserID: userID,
		})
	}

	m.logger.Info(logging.WebSocket, logging.Connection, "user connected", map[logging.ExtraKey]any{
		logging.UserID:      userID,
		logging.Connections: conns,
	})
}

// OnDisconnect registers fn to run after a user's socket is removed by
// Disconnect or a failed write. It is not called for superseded sockets or
// by Close.
func (m *Manager) OnDisconnect(fn func(userID string)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onDisconnect = append(m.onDisconnect, fn)
	m.mu.Unlock()
}

// Disconnect drops the user's socket and memberships. Unknown users are
// ignored.
func (m *Manager) Disconnect(userID string) {
	m.remove(userID, nil)
}

// disconnectSocket is Disconnect guarded by socket identity, so a stale
// read loop or a failed write cannot evict a newer connection.
func (m *Manager) disconnectSocket(userID string, socket Socket) {
	m.remove(userID, socket)
}

func (m *Manager) remove(userID string, socket Socket) {
	m.mu.Lock()
	current, ok := m.conns[userID]
	if !ok || (socket != nil && current != socket) {
		m.mu.Unlock()
		return
	}

	delete(m.conns, userID)
	for _, roomID := range m.joins.members(userID) {
		m.rooms.remove(roomID, userID)
	}
	delete(m.joins, userID)
	conns, rooms := len(m.conns), len(m.rooms)
	hooks := m.onDisconnect
	m.mu.Unlock()

	_ = current.Close()
	m.metrics.SocketState(conns, rooms)
	for _, fn := range hooks {
		fn(userID)
	}

	m.logger.Info(logging.WebSocket, logging.Connection, "user disconnected", map[logging.ExtraKey]any{
		logging.UserID:      userID,
		logging.Connections: conns,
	})
}

// SendToUser writes message to the user's socket. A failed write
// disconnects the user.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mu.Lock()
	socket, ok := m.conns[userID]
	m.mu.Unlock()

	if !ok {
		return
	}

	m.send([]target{{userID: userID, socket: socket}}, message)
}

// SendToRoom writes message to every member of the room as of the call.
func (m *Manager) SendToRoom(roomID string, message []byte) {
	m.mu.Lock()
	members := m.rooms[roomID]
	targets := make([]target, 0, len(members))
	for userID := range members {
		if socket, ok := m.conns[userID]; ok {
			targets = append(targets, target{userID: userID, socket: socket})
		}
	}
	m.mu.Unlock()

	m.send(targets, message)
}

// Broadcast writes message to every live connection.
func (m *Manager) Broadcast(message []byte) {
	m.mu.Lock()
	targets := make([]target, 0, len(m.conns))
	for userID, socket := range m.conns {
		targets = append(targets, target{userID: userID, socket: socket})
	}
	m.mu.Unlock()

	m.send(targets, message)
}

// send writes to every target concurrently, at most maxConcurrentSends at a
// time, and returns once every write finished. A stalled socket delays only
// its own write, bounded by the socket's write timeout.
func (m *Manager) send(targets []target, message []byte) {
	if len(targets) == 1 {
		m.sendOne(targets[0], message)
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)
	for _, t := range targets {
		g.Go(func() error {
			m.sendOne(t, message)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) sendOne(t target, message []byte) {
	err := t.socket.WriteMessage(message)
	m.metrics.SocketMessageSent(err)
	if err == nil {
		return
	}

	sendErr := &SendError{UserID: t.userID, Err: err}
	m.logger.Warn(logging.WebSocket, logging.Send, "dropping connection after failed send", map[logging.ExtraKey]any{
		logging.UserID:       t.userID,
		logging.ErrorMessage: sendErr.Error(),
	})
	m.disconnectSocket(t.userID, t.socket)
}

// JoinRoom adds a connected user to the room, creating it if needed. It
// reports false when the user has no live connection.
func (m *Manager) JoinRoom(userID, roomID string) bool {
	m.mu.Lock()
	if _, ok := m.conns[userID]; !ok {
		m.mu.Unlock()
		return false
	}
	added := m.rooms.add(roomID, userID)
	m.joins.add(userID, roomID)
	conns, rooms := len(m.conns), len(m.rooms)
	m.mu.Unlock()

	m.metrics.SocketState(conns, rooms)
	if added {
		m.logger.Info(logging.WebSocket, logging.Room, "user joined room", map[logging.ExtraKey]any{
			logging.UserID: userID,
			logging.RoomID: roomID,
		})
	}
	return true
}

// LeaveRoom removes the user from the room and deletes the room when it
// becomes empty.
func (m *Manager) LeaveRoom(userID, roomID string) {
	m.mu.Lock()
	removed := m.rooms.remove(roomID, userID)
	m.joins.remove(userID, roomID)
	conns, rooms := len(m.conns), len(m.rooms)
	m.mu.Unlock()

	if !removed {
		return
	}

	m.metrics.SocketState(conns, rooms)
	m.logger.Info(logging.WebSocket, logging.Room, "user left room", map[logging.ExtraKey]any{
		logging.UserID: userID,
		logging.RoomID: roomID,
	})
}

// Rooms returns each room with its sorted member ids.
func (m *Manager) Rooms() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]string, len(m.rooms))
	for roomID := range m.rooms {
		out[roomID] = m.rooms.members(roomID)
	}
	return out
}

func (m *Manager) RoomMembers(roomID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms.members(roomID)
}

func (m *Manager) UserIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.conns)
}

func (m *Manager) IsConnected(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[userID]
	return ok
}

func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Close closes every socket and clears all state.
func (m *Manager) Close() {
	m.mu.Lock()
	sockets := make([]Socket, 0, len(m.conns))
	for _, socket := range m.conns {
		sockets = append(sockets, socket)
	}
	m.conns = make(map[string]Socket)
	m.rooms = make(index)
	m.joins = make(index)
	m.mu.Unlock()

	for _, socket := range sockets {
		_ = socket.Close()
	}

	m.metrics.SocketState(0, 0)
	m.logger.Info(logging.WebSocket, logging.Shutdown, "closed all sockets", map[logging.ExtraKey]any{
		logging.Connections: len(sockets),
	})
}

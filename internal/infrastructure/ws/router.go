package ws

import (
	"encoding/json"
	"time"

	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
)

// Dispatch routes one raw client frame sent by userID. Frame problems are
// returned as *FrameError for the caller to answer; delivery failures are
// handled by the manager.
func (m *Manager) Dispatch(userID string, raw []byte) error {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return &FrameError{Code: CodeInvalidFrame, Message: "frame is not a JSON object"}
	}

	m.metrics.FrameReceived(f.Type)
	m.logger.Debug(logging.WebSocket, logging.Receive, "frame received", map[logging.ExtraKey]any{
		logging.UserID:    userID,
		logging.FrameType: f.Type,
		logging.RoomID:    f.RoomID,
	})

	switch f.Type {
	case JoinRoom:
		if f.RoomID == "" {
			return missingField(f.Type, "room_id")
		}
		if !m.JoinRoom(userID, f.RoomID) {
			return &FrameError{Code: CodeNotConnected, Message: "user is not connected"}
		}
		return m.relayToRoom(f.RoomID, func() ([]byte, error) { return NewUserJoined(userID, f.RoomID) })

	case LeaveRoom:
		if f.RoomID == "" {
			return missingField(f.Type, "room_id")
		}
		m.LeaveRoom(userID, f.RoomID)
		return m.relayToRoom(f.RoomID, func() ([]byte, error) { return NewUserLeft(userID, f.RoomID) })

	case ChatMessage:
		if f.RoomID == "" {
			return missingField(f.Type, "room_id")
		}
		if f.Message == "" {
			return missingField(f.Type, "message")
		}
		return m.relayToRoom(f.RoomID, func() ([]byte, error) { return NewChatMessage(userID, f) })

	case PrivateMessage:
		if f.TargetUser == "" {
			return missingField(f.Type, "target_user")
		}
		if f.Message == "" {
			return missingField(f.Type, "message")
		}
		return m.relayToUser(f.TargetUser, func() ([]byte, error) { return NewPrivateMessage(userID, f) })

	case CollaborationUpdate:
		if f.RoomID == "" {
			return missingField(f.Type, "room_id")
		}
		return m.relayToRoom(f.RoomID, func() ([]byte, error) { return NewCollaborationUpdate(userID, f) })

	case ServiceMessage:
		if f.TargetUser == "" {
			return missingField(f.Type, "target_user")
		}
		return m.relayToUser(f.TargetUser, func() ([]byte, error) { return NewServiceMessage(userID, f, time.Now()) })

	case ServiceRoomMessage:
		if f.RoomID == "" {
			return missingField(f.Type, "room_id")
		}
		return m.relayToRoom(f.RoomID, func() ([]byte, error) { return NewServiceMessage(userID, f, time.Now()) })

	default:
		// unknown frames are passed through untouched to the room, if any
		if f.RoomID != "" {
			m.SendToRoom(f.RoomID, raw)
		}
		return nil
	}
}

func (m *Manager) relayToRoom(roomID string, build func() ([]byte, error)) error {
	msg, err := build()
	if err != nil {
		return &FrameError{Code: CodeInvalidFrame, Message: err.Error()}
	}
	m.SendToRoom(roomID, msg)
	return nil
}

func (m *Manager) relayToUser(userID string, build func() ([]byte, error)) error {
	msg, err := build()
	if err != nil {
		return &FrameError{Code: CodeInvalidFrame, Message: err.Error()}
	}
	m.SendToUser(userID, msg)
	return nil
}

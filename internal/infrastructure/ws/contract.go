package ws

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame is a client-to-server message. Timestamp and Data are relayed
// verbatim.
type Frame struct {
	Type        string          `json:"type"`
	RoomID      string          `json:"room_id,omitempty"`
	TargetUser  string          `json:"target_user,omitempty"`
	Message     string          `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
	MessageType string          `json:"message_type,omitempty"`
	ServiceID   string          `json:"service_id,omitempty"`
}

type PresencePayload struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type ChatPayload struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	RoomID    string          `json:"room_id"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type PrivatePayload struct {
	Type      string          `json:"type"`
	FromUser  string          `json:"from_user"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type CollaborationPayload struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	RoomID    string          `json:"room_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type ServicePayload struct {
	Type      string          `json:"type"`
	ServiceID string          `json:"service_id"`
	RoomID    string          `json:"room_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

type ErrorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventPayload is a broker event relayed to sockets.
type EventPayload struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

func NewUserJoined(userID, roomID string) ([]byte, error) {
	return encode(PresencePayload{
		Type:    UserJoined,
		UserID:  userID,
		RoomID:  roomID,
		Message: fmt.Sprintf("User %s joined the room", userID),
	})
}

func NewUserLeft(userID, roomID string) ([]byte, error) {
	return encode(PresencePayload{
		Type:    UserLeft,
		UserID:  userID,
		RoomID:  roomID,
		Message: fmt.Sprintf("User %s left the room", userID),
	})
}

func NewChatMessage(userID string, f Frame) ([]byte, error) {
	return encode(ChatPayload{
		Type:      ChatMessage,
		UserID:    userID,
		RoomID:    f.RoomID,
		Message:   f.Message,
		Timestamp: f.Timestamp,
	})
}

func NewPrivateMessage(fromUser string, f Frame) ([]byte, error) {
	return encode(PrivatePayload{
		Type:      PrivateMessage,
		FromUser:  fromUser,
		Message:   f.Message,
		Timestamp: f.Timestamp,
	})
}

func NewCollaborationUpdate(userID string, f Frame) ([]byte, error) {
	return encode(CollaborationPayload{
		Type:      CollaborationUpdate,
		UserID:    userID,
		RoomID:    f.RoomID,
		Data:      f.Data,
		Timestamp: f.Timestamp,
	})
}

// NewServiceMessage builds the frame delivered for service_message and
// service_room_message. The frame type is the sender's message_type.
func NewServiceMessage(senderID string, f Frame, now time.Time) ([]byte, error) {
	msgType := f.MessageType
	if msgType == "" {
		msgType = ServiceMessage
	}

	serviceID := f.ServiceID
	if serviceID == "" {
		serviceID = senderID
	}

	return encode(ServicePayload{
		Type:      msgType,
		ServiceID: serviceID,
		RoomID:    f.RoomID,
		Data:      f.Data,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})
}

func NewError(code, message string) ([]byte, error) {
	return encode(ErrorPayload{
		Type:    ErrorEvent,
		Code:    code,
		Message: message,
	})
}

func NewEvent(eventType string, data map[string]any, timestamp string) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	return encode(EventPayload{
		Type:      eventType,
		Data:      data,
		Timestamp: timestamp,
	})
}

package ws

// Client-to-server frame types.
const (
	JoinRoom            = "join_room"
	LeaveRoom           = "leave_room"
	ChatMessage         = "chat_message"
	PrivateMessage      = "private_message"
	CollaborationUpdate = "collaboration_update"
	ServiceMessage      = "service_message"
	ServiceRoomMessage  = "service_room_message"
)

// Server-to-client only.
const (
	UserJoined = "user_joined"
	UserLeft   = "user_left"
	ErrorEvent = "error"
)

// Error frame codes.
const (
	CodeInvalidFrame = "invalid_frame"
	CodeMissingField = "missing_field"
	CodeRateLimited  = "rate_limited"
	CodeNotConnected = "not_connected"
)

package contracts

// Routing keys - dot-namespaced <domain>.<action>
const (
	// Auth service
	EventUserRegistered = "user.registered"
	EventUserUpdated    = "user.updated"
	EventUserDeleted    = "user.deleted"
	EventUserLogin      = "user.login"
	EventUserLogout     = "user.logout"

	// Content management
	EventContentCreated  = "content.created"
	EventContentUpdated  = "content.updated"
	EventContentDeleted  = "content.deleted"
	EventContentUploaded = "content.uploaded"
	EventContentFlagged  = "content.flagged"

	// Collaboration
	EventCollaborationStarted = "collaboration.started"
	EventCollaborationEnded   = "collaboration.ended"
	EventForumCreated         = "forum.created"
	EventCommentAdded         = "comment.added"

	// Communication
	EventMessageSent    = "message.sent"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventChatCreated    = "chat.created"

	// Moderation
	EventModerationReview   = "moderation.review"
	EventModerationApproved = "moderation.approved"
	EventModerationRejected = "moderation.rejected"
)

// AllEvents lists every event type known to the platform.
var AllEvents = []string{
	EventUserRegistered,
	EventUserUpdated,
	EventUserDeleted,
	EventUserLogin,
	EventUserLogout,
	EventContentCreated,
	EventContentUpdated,
	EventContentDeleted,
	EventContentUploaded,
	EventContentFlagged,
	EventCollaborationStarted,
	EventCollaborationEnded,
	EventForumCreated,
	EventCommentAdded,
	EventMessageSent,
	EventMessageEdited,
	EventMessageDeleted,
	EventChatCreated,
	EventModerationReview,
	EventModerationApproved,
	EventModerationRejected,
}

// BroadcastEvents is the fixed list relayed to every live socket by the
// broadcast server.
var BroadcastEvents = []string{
	EventUserRegistered,
	EventUserLogin,
	EventContentCreated,
	EventContentUpdated,
	EventContentDeleted,
	EventContentUploaded,
	EventCollaborationStarted,
	EventCollaborationEnded,
	EventForumCreated,
	EventCommentAdded,
	EventMessageSent,
	EventChatCreated,
	EventModerationApproved,
	EventModerationRejected,
}

package contracts

// ServiceEvents declares which events a service produces and which it listens to.
type ServiceEvents struct {
	Publishes []string
	Consumes  []string
}

const (
	AuthService          = "auth-service"
	ContentService       = "content-service"
	CollaborationService = "collaboration-service"
	CommunicationService = "communication-service"
	ModerationService    = "moderation-service"
	BroadcastService     = "broadcast-service"
	AuditService         = "audit-service"
)

var services = map[string]ServiceEvents{
	AuthService: {
		Publishes: []string{EventUserRegistered, EventUserUpdated, EventUserLogin, EventUserLogout},
		Consumes:  []string{EventModerationApproved, EventModerationRejected},
	},
	ContentService: {
		Publishes: []string{EventContentCreated, EventContentUpdated, EventContentUploaded},
		Consumes:  []string{EventModerationApproved, EventModerationRejected},
	},
	CollaborationService: {
		Publishes: []string{EventCollaborationStarted, EventForumCreated, EventCommentAdded},
		Consumes:  []string{EventUserRegistered, EventModerationRejected},
	},
	CommunicationService: {
		Publishes: []string{EventMessageSent, EventChatCreated},
		Consumes:  []string{EventUserRegistered, EventModerationRejected},
	},
	ModerationService: {
		Publishes: []string{EventModerationReview, EventModerationApproved, EventModerationRejected},
		Consumes:  []string{EventContentCreated, EventMessageSent, EventCollaborationStarted},
	},
	BroadcastService: {
		Consumes: BroadcastEvents,
	},
	AuditService: {
		Consumes: AllEvents,
	},
}

// ServiceConfig returns the event contract of a service and whether it is known.
func ServiceConfig(service string) (ServiceEvents, bool) {
	cfg, ok := services[service]
	return cfg, ok
}

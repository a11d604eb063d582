package health

// rootResponse summarises the broadcast server.
type rootResponse struct {
	Service           string `json:"service"`
	Status            string `json:"status"`
	ActiveConnections int    `json:"active_connections"`
	ActiveRooms       int    `json:"active_rooms"`
}

// healthResponse represents the health status of the server. Status is
// "healthy", or "degraded" while the broker is unreachable.
type healthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Uptime    string          `json:"uptime"`
	Broker    *brokerResponse `json:"broker,omitempty"`
}

type brokerResponse struct {
	Connected     bool                   `json:"connected"`
	Subscriptions []subscriptionResponse `json:"subscriptions"`
}

type subscriptionResponse struct {
	EventType   string `json:"event_type"`
	Queue       string `json:"queue"`
	Exchange    string `json:"exchange"`
	ConsumerTag string `json:"consumer_tag"`
}

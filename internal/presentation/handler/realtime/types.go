package realtime

type roomResponse struct {
	UserCount int      `json:"user_count"`
	Users     []string `json:"users"`
}

type roomsResponse struct {
	Rooms      map[string]roomResponse `json:"rooms"`
	TotalRooms int                     `json:"total_rooms"`
}

type connectionsResponse struct {
	ActiveConnections int      `json:"active_connections"`
	ConnectedUsers    []string `json:"connected_users"`
}

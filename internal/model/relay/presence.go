package relay

// Presence statuses carried on the USER_CONNECTIONS channel.
const (
	PresenceConnected    = "connected"
	PresenceDisconnected = "disconnected"
)

// PresenceEvent is the broadcast fact that a user became reachable or
// unreachable somewhere in the cluster. SocketID is absent on disconnect
// events that release every binding of the user at once.
type PresenceEvent struct {
	UserID   string `json:"userId"`
	SocketID string `json:"socketId,omitempty"`
	Status   string `json:"status"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// User returns the display metadata embedded in the event.
func (e PresenceEvent) User() User {
	return User{ID: e.UserID, Name: e.Name, Avatar: e.Avatar}
}

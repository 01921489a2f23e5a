package relay

// User carries the display metadata a client announces on user:connect.
// Identities are opaque strings; nothing here is validated or authenticated.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

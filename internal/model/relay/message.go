package relay

// Delivery statuses a message can carry on the wire. The relay only ever
// produces StatusSent; the remaining states are part of the client contract
// and transition outside this core.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Message is a single immutable chat message as published on the broker.
type Message struct {
	ID             string `json:"id"`
	SenderID       string `json:"senderId"`
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"` // unix milliseconds at send time
	Status         string `json:"status"`
	Type           string `json:"type,omitempty"` // sender-side rendering hint only
}

package relay

// Conversation groups messages by conversation id. Participants is the set of
// every sender observed so far, in first-seen order; it only ever grows.
type Conversation struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
}

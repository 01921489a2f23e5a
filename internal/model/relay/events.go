package relay

// Gateway event names, the wire contract with connected clients.
const (
	// inbound
	EventUserConnect      = "user:connect"
	EventMessageSend      = "message:send"
	EventConversationsGet = "conversations:get"

	// outbound
	EventConnectionAck     = "connection:ack"
	EventConversationsList = "conversations:list"
	EventMessageReceive    = "message:receive"
	EventPresenceUpdate    = "presence:update"
)

// Broker channels. Every process publishes to and subscribes from both.
const (
	ChannelMessages        = "MESSAGES"
	ChannelUserConnections = "USER_CONNECTIONS"
)

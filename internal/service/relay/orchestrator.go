// Package relay wires gateway events to the presence registry, conversation
// store, and broker bridge, and fans broker deliveries back out to the
// connections this process owns.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mbaig/relay/internal/broker"
	model "github.com/mbaig/relay/internal/model/relay"
	"github.com/mbaig/relay/internal/service/conversation"
	"github.com/mbaig/relay/internal/service/presence"
)

var (
	ErrUserRequired  = errors.New("user id is required")
	ErrNotIdentified = errors.New("connection is not identified")
)

// Gateway abstracts the transport that owns the physical client connections.
// Send targets a single local connection; it must never be called with a
// connection id this process does not own.
type Gateway interface {
	Send(connID, event string, payload any) error
}

// SendMessageInput is the client payload of a message:send event.
type SendMessageInput struct {
	SenderID       string `json:"senderId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
	Text           string `json:"text" validate:"required"`
}

// PresenceUpdate is the roster refresh pushed to local clients whenever a
// user becomes reachable or unreachable anywhere in the cluster.
type PresenceUpdate struct {
	UserID string       `json:"userId"`
	Status string       `json:"status"`
	Online []model.User `json:"online"`
}

// Connection lifecycle. Anonymous connections can only identify or
// disconnect; identified ones may also send messages and list conversations.
type connState int

const (
	stateAnonymous connState = iota
	stateIdentified
)

// Orchestrator owns the relay control flow for one process. State mutations
// always complete before the corresponding broker publish, so a concurrently
// running handler never observes a published record the local maps do not yet
// reflect.
type Orchestrator struct {
	log      *slog.Logger
	gateway  Gateway
	registry *presence.Registry
	store    *conversation.Store
	broker   broker.Broker
	validate *validator.Validate

	mu    sync.Mutex
	conns map[string]connState
}

// New assembles an orchestrator around process-local state. Each instance is
// fully isolated; tests instantiate one per simulated process.
func New(log *slog.Logger, gw Gateway, registry *presence.Registry, store *conversation.Store, b broker.Broker) *Orchestrator {
	return &Orchestrator{
		log:      log,
		gateway:  gw,
		registry: registry,
		store:    store,
		broker:   b,
		validate: validator.New(),
		conns:    make(map[string]connState),
	}
}

// Start subscribes the orchestrator to both broker channels. It must be
// called once before the gateway accepts connections.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.broker.Subscribe(ctx, o.handleDelivery, model.ChannelMessages, model.ChannelUserConnections)
}

// Connect registers a freshly opened, still anonymous connection.
func (o *Orchestrator) Connect(connID string) {
	o.mu.Lock()
	o.conns[connID] = stateAnonymous
	o.mu.Unlock()
	o.log.Debug("connection opened", "conn", connID)
}

// Identify binds a connection to a user: registry first, presence publish
// second. Registering is idempotent, so the broker echo of our own publish
// folds back in harmlessly.
func (o *Orchestrator) Identify(ctx context.Context, connID string, user model.User) error {
	if user.ID == "" {
		return ErrUserRequired
	}

	o.mu.Lock()
	o.conns[connID] = stateIdentified
	o.mu.Unlock()

	// A second user:connect on the same connection rebinds it. Releasing
	// the old user's last binding is a disconnect like any other and must
	// be announced cluster-wide.
	var rebound string
	if prev, ok := o.registry.UserFor(connID); ok && prev.ID != user.ID {
		if _, last, released := o.registry.Unregister(connID); released && last {
			rebound = prev.ID
		}
	}

	first := o.registry.Register(user, connID)
	o.log.Info("user identified", "user", user.ID, "conn", connID, "first_binding", first)

	if rebound != "" {
		o.publish(ctx, model.ChannelUserConnections, model.PresenceEvent{
			UserID: rebound,
			Status: model.PresenceDisconnected,
		})
	}
	o.publish(ctx, model.ChannelUserConnections, model.PresenceEvent{
		UserID:   user.ID,
		SocketID: connID,
		Status:   model.PresenceConnected,
		Name:     user.Name,
		Avatar:   user.Avatar,
	})
	return nil
}

// SendMessage synthesizes a message, applies it to the local store, and
// publishes it. Local delivery, including to the sender's other devices,
// happens only through the broker round-trip so that every recipient goes
// through the one fan-out path.
func (o *Orchestrator) SendMessage(ctx context.Context, connID string, in SendMessageInput) error {
	o.mu.Lock()
	state := o.conns[connID]
	o.mu.Unlock()
	if state != stateIdentified {
		return ErrNotIdentified
	}

	if err := o.validate.Struct(in); err != nil {
		return fmt.Errorf("invalid message payload: %w", err)
	}

	msg := model.Message{
		ID:             uuid.NewString(),
		SenderID:       in.SenderID,
		ConversationID: in.ConversationID,
		Text:           in.Text,
		Timestamp:      time.Now().UnixMilli(),
		Status:         model.StatusSent,
		Type:           "sent",
	}

	o.store.Record(ctx, msg)
	o.publish(ctx, model.ChannelMessages, msg)
	return nil
}

// Conversations resolves the calling connection's user and replies with that
// user's conversations on the same connection. An anonymous connection gets
// an empty list, not an error.
func (o *Orchestrator) Conversations(ctx context.Context, connID string) error {
	var convs []model.Conversation
	if user, ok := o.registry.UserFor(connID); ok {
		convs = o.store.ForUser(ctx, user.ID)
	} else {
		convs = make([]model.Conversation, 0)
	}

	if err := o.gateway.Send(connID, model.EventConversationsList, convs); err != nil {
		return fmt.Errorf("send conversations list: %w", err)
	}
	return nil
}

// Disconnect releases a connection. Only the user's last local binding emits
// a disconnected presence event.
func (o *Orchestrator) Disconnect(ctx context.Context, connID string) {
	o.mu.Lock()
	delete(o.conns, connID)
	o.mu.Unlock()

	userID, last, ok := o.registry.Unregister(connID)
	if !ok {
		o.log.Debug("anonymous connection closed", "conn", connID)
		return
	}
	o.log.Info("connection closed", "user", userID, "conn", connID, "last_binding", last)

	if last {
		o.publish(ctx, model.ChannelUserConnections, model.PresenceEvent{
			UserID: userID,
			Status: model.PresenceDisconnected,
		})
	}
}

// handleDelivery dispatches broker records by channel. Malformed payloads are
// logged and dropped; nothing here ever propagates to a connection as an
// error.
func (o *Orchestrator) handleDelivery(ctx context.Context, d broker.Delivery) {
	switch d.Channel {
	case model.ChannelMessages:
		o.handleBrokerMessage(ctx, d.Payload)
	case model.ChannelUserConnections:
		o.handleBrokerPresence(ctx, d.Payload)
	default:
		o.log.Warn("delivery on unexpected channel", "channel", d.Channel)
	}
}

// handleBrokerMessage folds a delivered message into the local projection and
// relays it to every local connection of every participant. The message may
// have originated on any process, this one included; participants without
// local bindings are skipped, and a recipient offline everywhere simply never
// sees the message.
func (o *Orchestrator) handleBrokerMessage(ctx context.Context, payload []byte) {
	var msg model.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		o.log.Warn("discarding malformed message record", "err", err)
		return
	}
	if msg.ConversationID == "" || msg.SenderID == "" {
		o.log.Warn("discarding message record without ids", "message", msg.ID)
		return
	}

	conv := o.store.Record(ctx, msg)

	for _, participant := range conv.Participants {
		for _, connID := range o.registry.ConnectionsFor(participant) {
			if err := o.gateway.Send(connID, model.EventMessageReceive, msg); err != nil {
				o.log.Warn("gateway send failed", "conn", connID, "err", err)
			}
		}
	}
}

// handleBrokerPresence applies a presence fact to the remote view and pushes
// a roster refresh to local clients.
func (o *Orchestrator) handleBrokerPresence(ctx context.Context, payload []byte) {
	var ev model.PresenceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		o.log.Warn("discarding malformed presence record", "err", err)
		return
	}
	if ev.UserID == "" || (ev.Status != model.PresenceConnected && ev.Status != model.PresenceDisconnected) {
		o.log.Warn("discarding presence record", "user", ev.UserID, "status", ev.Status)
		return
	}

	o.registry.ObserveRemote(ev)

	update := PresenceUpdate{
		UserID: ev.UserID,
		Status: ev.Status,
		Online: o.registry.OnlineUsers(),
	}
	for _, connID := range o.registry.LocalConnections() {
		if err := o.gateway.Send(connID, model.EventPresenceUpdate, update); err != nil {
			o.log.Warn("gateway send failed", "conn", connID, "err", err)
		}
	}
}

// publish encodes and hands a record to the broker, fire-and-forget. A
// failed publish is logged and otherwise dropped: no retry, no propagation.
func (o *Orchestrator) publish(ctx context.Context, channel string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		o.log.Error("encode broker record", "channel", channel, "err", err)
		return
	}
	if err := o.broker.Publish(ctx, channel, payload); err != nil {
		o.log.Error("broker publish failed", "channel", channel, "err", err)
	}
}

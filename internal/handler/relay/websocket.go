// Package relay implements the websocket connection gateway: it owns the
// physical client connections and translates between wire frames and the
// orchestrator's operations.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mbaig/relay/internal/config"
	model "github.com/mbaig/relay/internal/model/relay"
	relayservice "github.com/mbaig/relay/internal/service/relay"
)

// Relay is the subset of the orchestrator the gateway drives.
type Relay interface {
	Connect(connID string)
	Identify(ctx context.Context, connID string, user model.User) error
	SendMessage(ctx context.Context, connID string, in relayservice.SendMessageInput) error
	Conversations(ctx context.Context, connID string) error
	Disconnect(ctx context.Context, connID string)
}

// frame is the wire envelope for both directions: an event name plus its
// JSON payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler upgrades websocket connections, assigns them connection ids, and
// pumps frames between clients and the relay. It implements the
// orchestrator's Gateway interface through the connection table.
type Handler struct {
	log      *slog.Logger
	cfg      config.GatewayConfig
	relay    Relay
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHandler builds the gateway. Attach must be called before serving.
func NewHandler(log *slog.Logger, cfg config.GatewayConfig) *Handler {
	return &Handler{
		log: log,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*client),
	}
}

// Attach binds the relay the gateway dispatches into. Split from NewHandler
// because the orchestrator needs the gateway at construction time.
func (h *Handler) Attach(r Relay) {
	h.relay = r
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// Send delivers one event to one locally owned connection, best-effort: a
// full send buffer drops the frame and reports it.
func (h *Handler) Send(connID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	buf, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	// The read lock is held across the channel send: remove closes the
	// channel under the write lock, so a send can never hit a closed one.
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return fmt.Errorf("unknown connection %s", connID)
	}

	select {
	case c.send <- buf:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", connID)
	}
}

// remove detaches a client from the table and closes its send channel as one
// step, excluding any in-flight Send.
func (h *Handler) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	close(c.send)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.relay == nil {
		http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.log.Info("connection opened", "conn", c.id, "remote", conn.RemoteAddr().String())
	h.relay.Connect(c.id)

	go h.writePump(c)

	// Socket.io hands the socket id to the client implicitly; our clients
	// need it on the wire.
	if err := h.Send(c.id, model.EventConnectionAck, map[string]string{"connectionId": c.id}); err != nil {
		h.log.Warn("connection ack failed", "conn", c.id, "err", err)
	}

	h.readLoop(r.Context(), c)
}

// readLoop consumes inbound frames until the connection dies, then tears the
// binding down. A malformed frame fails only that dispatch, never the
// connection.
func (h *Handler) readLoop(ctx context.Context, c *client) {
	defer func() {
		h.remove(c)
		// The request context is already ending; teardown publishes must
		// not be cancelled with it.
		h.relay.Disconnect(context.Background(), c.id)
		h.log.Info("connection closed", "conn", c.id)
	}()

	c.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read error", "conn", c.id, "err", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.log.Warn("discarding malformed frame", "conn", c.id, "err", err)
			continue
		}
		h.dispatch(ctx, c, f)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *client, f frame) {
	switch f.Event {
	case model.EventUserConnect:
		user, err := decodeUser(f.Data)
		if err != nil {
			h.log.Warn("discarding user:connect", "conn", c.id, "err", err)
			return
		}
		if err := h.relay.Identify(ctx, c.id, user); err != nil {
			h.log.Warn("identify failed", "conn", c.id, "err", err)
		}
	case model.EventMessageSend:
		var in relayservice.SendMessageInput
		if err := json.Unmarshal(f.Data, &in); err != nil {
			h.log.Warn("discarding message:send", "conn", c.id, "err", err)
			return
		}
		if err := h.relay.SendMessage(ctx, c.id, in); err != nil {
			h.log.Warn("message send failed", "conn", c.id, "err", err)
		}
	case model.EventConversationsGet:
		if err := h.relay.Conversations(ctx, c.id); err != nil {
			h.log.Warn("conversations lookup failed", "conn", c.id, "err", err)
		}
	default:
		h.log.Debug("unsupported event", "conn", c.id, "event", f.Event)
	}
}

// decodeUser accepts either the bare userId string the original wire contract
// uses or a full user object with display metadata.
func decodeUser(data json.RawMessage) (model.User, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if id == "" {
			return model.User{}, fmt.Errorf("empty user id")
		}
		return model.User{ID: id}, nil
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return model.User{}, fmt.Errorf("invalid user payload: %w", err)
	}
	return user, nil
}

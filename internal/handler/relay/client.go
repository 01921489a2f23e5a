package relay

import (
	"time"

	"github.com/gorilla/websocket"
)

// client is one physical websocket connection. Outbound frames go through
// the send channel so the write pump stays the connection's only writer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. It exits when the send channel closes or a write fails,
// closing the connection either way.
func (h *Handler) writePump(c *client) {
	pingPeriod := h.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Warn("websocket write failed", "conn", c.id, "err", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nik312123/Orbits/internal/metrics"
	"github.com/nik312123/Orbits/internal/sim"
)

// Client is one WebSocket connection.
type Client struct {
	id       uint64
	ip       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan ServerMessage
	canApply bool
}

// enqueue queues msg without blocking. A client whose buffer is full misses
// the message. Callers hold hub.mu or run on the hub goroutine, either of
// which keeps send open.
func (c *Client) enqueue(msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
		metrics.IncLiveErrors("send_buffer_full")
		c.hub.logger.Debug("live client send buffer full", "client_id", c.id, "type", msg.Type)
	}
}

// reply queues a response to a request from this client.
func (c *Client) reply(msg ServerMessage) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; ok {
		c.enqueue(msg)
	}
}

// readPump handles incoming messages from the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.hub.limiter.Release(c.ip)
	}()

	c.conn.SetReadLimit(c.hub.cfg.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				metrics.IncLiveErrors("read")
				c.hub.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.IncLiveErrors("bad_message")
			c.reply(ServerMessage{Type: MsgTypeError, Data: ErrorData{Code: "bad_request", Message: "malformed JSON message"}})
			continue
		}
		metrics.IncLiveMessages("in", msg.Type)
		c.handleMessage(msg)
	}
}

// writePump sends queued messages and pings to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				metrics.IncLiveErrors("write")
				return
			}
			metrics.IncLiveMessages("out", message.Type)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes a message from the client.
func (c *Client) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MsgTypeApply:
		c.handleApply(msg)
	case MsgTypeValidate:
		c.handleValidate(msg)
	default:
		metrics.IncLiveErrors("unknown_type")
		c.reply(ServerMessage{Type: MsgTypeError, ID: msg.ID, Data: ErrorData{
			Code:    "unknown_type",
			Message: fmt.Sprintf("unknown message type %q", msg.Type),
		}})
	}
}

func decodeParams(data json.RawMessage) (sim.Params, error) {
	var p sim.Params
	if len(data) == 0 {
		return p, fmt.Errorf("missing data")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decoding params: %w", err)
	}
	return p, nil
}

func (c *Client) handleApply(msg ClientMessage) {
	if !c.canApply {
		c.reply(ServerMessage{Type: MsgTypeError, ID: msg.ID, Data: ErrorData{Code: "unauthorized", Message: "connection is read-only"}})
		return
	}
	p, err := decodeParams(msg.Data)
	if err != nil {
		c.reply(ServerMessage{Type: MsgTypeError, ID: msg.ID, Data: ErrorData{Code: "bad_request", Message: err.Error()}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	f, err := c.hub.sim.Apply(ctx, p)
	if err != nil {
		c.reply(errorMessage(msg.ID, err))
		return
	}
	c.hub.logger.Info("orbit applied over websocket", "client_id", c.id, "generation", f.Generation)
	c.reply(ServerMessage{Type: MsgTypeApplied, ID: msg.ID, Data: c.hub.sim.Describe(f)})
}

func (c *Client) handleValidate(msg ClientMessage) {
	p, err := decodeParams(msg.Data)
	if err != nil {
		c.reply(ServerMessage{Type: MsgTypeError, ID: msg.ID, Data: ErrorData{Code: "bad_request", Message: err.Error()}})
		return
	}
	intersects, err := c.hub.sim.Validate(p)
	if err != nil {
		c.reply(errorMessage(msg.ID, err))
		return
	}
	c.reply(ServerMessage{Type: MsgTypeValidation, ID: msg.ID, Data: map[string]bool{"intersects": intersects}})
}

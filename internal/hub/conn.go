package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"messenger-service/internal/fanout"
	"messenger-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Conn is one authenticated websocket connection. It satisfies
// fanout.Sink so the registry can hand it frames directly.
type Conn struct {
	hub  *Hub
	ws   *websocket.Conn
	user models.User
	info ConnInfo
	send chan []byte
}

func newConn(h *Hub, ws *websocket.Conn, user models.User, info ConnInfo) *Conn {
	return &Conn{
		hub:  h,
		ws:   ws,
		user: user,
		info: info,
		send: make(chan []byte, sendBuffer),
	}
}

// Send queues a frame without blocking. A full buffer means the client
// fell behind; the frame is dropped and reported to the caller.
func (c *Conn) Send(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// emit delivers an event to this connection only.
func (c *Conn) emit(event string, data interface{}) {
	frame, err := fanout.Encode(event, data)
	if err != nil {
		c.hub.logger.Errorw("failed to encode event", "event", event, "error", err)
		return
	}
	c.Send(frame)
}

// readPump consumes inbound frames and dispatches them in arrival
// order. It owns the disconnect path.
func (c *Conn) readPump() {
	defer c.hub.disconnect(c)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warnw("websocket read error",
					"user_id", c.user.ID, "conn_id", c.info.ConnID, "error", err)
			}
			return
		}
		c.dispatch(raw)
	}
}

// writePump serializes outbound frames and keeps the connection alive
// with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

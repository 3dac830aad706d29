package channel

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Naitik4516/gravia/internal/log"
)

const (
	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound command frames.
	maxMessageSize = 64 * 1024
)

// Client is one connected application endpoint. A dedicated write pump is
// the only goroutine touching the connection for writes; outbound messages
// go through the buffered send channel.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, 256),
	}
}

// ID returns the client's session identifier.
func (c *Client) ID() string {
	return c.id
}

// Send queues a message for delivery. Returns false when the client's
// buffer is full; the router drops the client in that case.
func (c *Client) Send(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close tears down the connection, unblocking both pumps.
func (c *Client) Close() error {
	return c.conn.Close()
}

// run drives both pumps; it blocks until the connection drops. onCommand
// is invoked on the read goroutine for each inbound command.
func (c *Client) run(onCommand func(Message)) {
	go c.writePump()
	c.readPump(onCommand)
}

func (c *Client) readPump(onCommand func(Message)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("unparseable command", "client", c.id, "error", err)
			continue
		}
		onCommand(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

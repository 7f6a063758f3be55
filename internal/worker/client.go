package worker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/pulpit/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 256
)

// Client is one external device connected over WebSocket.
type Client struct {
	info      protocol.ClientInfo
	conn      *websocket.Conn
	send      chan protocol.ServerMessage
	server    *Server
	closeOnce sync.Once
}

func newClient(server *Server, conn *websocket.Conn, info protocol.ClientInfo) *Client {
	return &Client{
		info:   info,
		conn:   conn,
		send:   make(chan protocol.ServerMessage, sendBufferSize),
		server: server,
	}
}

// Info returns the registry entry for this client.
func (c *Client) Info() protocol.ClientInfo {
	return c.info
}

// Close closes the socket. The read pump notices and unregisters the client.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// readPump handles one client's messages in the order they were sent.
func (c *Client) readPump() {
	defer func() {
		c.server.disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(c.server.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.log.Warn("Client %s read error: %v", c.info.ID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.log.Debug("Client %s sent malformed message: %v", c.info.ID, err)
			c.server.replyError(c.info.ID, "malformed message")
			continue
		}
		c.server.handleClientMessage(c, msg)
	}
}

// writePump drains the send queue to the socket and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Registry closed the queue.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.log.Debug("Client %s write failed: %v", c.info.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

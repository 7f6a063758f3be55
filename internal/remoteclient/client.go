// Package remoteclient is a Go client for the remote control WebSocket
// protocol. It is used by the `pulpit remote` command and by integration
// tests.
package remoteclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/pulpit/internal/protocol"
)

// ConnectionState represents the current state of the connection
type ConnectionState int32

const (
	// StateConnecting is the state until the server's connected message
	StateConnecting ConnectionState = iota
	// StateConnected indicates the server assigned a client id
	StateConnected
	// StateClosed indicates the connection is gone
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("remote client closed")

// ServerError is an error message sent by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server: " + e.Message
}

// Config holds client configuration
type Config struct {
	// Addr is host:port, or a ws:// URL.
	Addr string
	// UserAgent is reported to the host in the client list.
	UserAgent string
	// ConnectTimeout bounds the dial and the wait for the connected message.
	ConnectTimeout time.Duration
	// WriteTimeout is the timeout for writing messages
	WriteTimeout time.Duration
	// PingInterval is the interval for sending ping messages
	PingInterval time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig(addr string) Config {
	return Config{
		Addr:           addr,
		UserAgent:      "pulpit-remote",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// Client is one remote control connection.
type Client struct {
	config   Config
	conn     *websocket.Conn
	clientID string
	state    atomic.Int32

	outgoing chan protocol.ClientMessage
	incoming chan protocol.ServerMessage

	wg         sync.WaitGroup
	stopCh     chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// Dial connects with DefaultConfig.
func Dial(ctx context.Context, addr string) (*Client, error) {
	return DialConfig(ctx, DefaultConfig(addr))
}

// DialConfig connects and waits for the server to assign a client id.
func DialConfig(ctx context.Context, config Config) (*Client, error) {
	if config.Addr == "" {
		return nil, errors.New("address is required")
	}
	defaults := DefaultConfig(config.Addr)
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}

	endpoint, err := websocketURL(config.Addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	header := http.Header{}
	if config.UserAgent != "" {
		header.Set("User-Agent", config.UserAgent)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	c := &Client{
		config:     config,
		conn:       conn,
		outgoing:   make(chan protocol.ClientMessage, 64),
		incoming:   make(chan protocol.ServerMessage, 256),
		stopCh:     make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var hello protocol.ServerMessage
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for connected: %w", err)
	}
	if hello.Type != protocol.ServerConnected {
		conn.Close()
		return nil, fmt.Errorf("expected connected, got %s", hello.Type)
	}
	var p protocol.ConnectedPayload
	if err := hello.Decode(&p); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.clientID = p.ClientID
	c.state.Store(int32(StateConnected))

	c.wg.Add(3)
	go c.readPump()
	go c.writePump()
	go c.pingLoop()
	return c, nil
}

func websocketURL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// ClientID returns the id the server assigned.
func (c *Client) ClientID() string {
	return c.clientID
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Messages yields every server message after connected. It closes when the
// connection ends.
func (c *Client) Messages() <-chan protocol.ServerMessage {
	return c.incoming
}

// Send queues a message.
func (c *Client) Send(typ protocol.ClientType, payload any) error {
	msg, err := protocol.NewMessage(typ, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.stopCh:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.stopCh:
		return ErrClosed
	}
}

// Await returns the next message of type typ, skipping others. A server
// error message is returned as *ServerError.
func (c *Client) Await(ctx context.Context, typ protocol.ServerType) (protocol.ServerMessage, error) {
	for {
		select {
		case msg, ok := <-c.incoming:
			if !ok {
				return protocol.ServerMessage{}, ErrClosed
			}
			if msg.Type == typ {
				return msg, nil
			}
			if msg.Type == protocol.ServerError {
				var p protocol.ErrorPayload
				_ = msg.Decode(&p)
				return msg, &ServerError{Message: p.Message}
			}
		case <-ctx.Done():
			return protocol.ServerMessage{}, ctx.Err()
		}
	}
}

// Close flushes queued messages, closes the connection and waits for the
// pumps to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.stopCh)
		<-c.writerDone
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
	})
	c.wg.Wait()
	return err
}

func (c *Client) readPump() {
	defer c.wg.Done()
	defer close(c.incoming)
	defer c.state.Store(int32(StateClosed))

	for {
		var msg protocol.ServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case c.incoming <- msg:
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.wg.Done()
	defer close(c.writerDone)

	for {
		select {
		case <-c.stopCh:
			c.drain()
			return
		case msg := <-c.outgoing:
			if !c.write(msg) {
				return
			}
		}
	}
}

// drain writes whatever is still queued after Close.
func (c *Client) drain() {
	for {
		select {
		case msg := <-c.outgoing:
			if !c.write(msg) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg protocol.ClientMessage) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(msg) == nil
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.Send(protocol.ClientPing, nil); err != nil {
				return
			}
		}
	}
}

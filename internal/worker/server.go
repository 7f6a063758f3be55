package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/pulpit/internal/config"
	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/protocol"
)

// Upstream receives messages destined for the supervisor.
type Upstream interface {
	Emit(msg protocol.WorkerMessage)
}

// Options configures a Server.
type Options struct {
	MaxMessageBytes int64
	ShutdownTimeout time.Duration
	Logger          *logger.Logger
	// Addresses lists reachable addresses; defaults to LocalAddresses.
	Addresses func() []string
}

func (o Options) withDefaults() Options {
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = config.DefaultMaxMessageBytes
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logger.Global().WithPrefix("worker")
	}
	if o.Addresses == nil {
		o.Addresses = LocalAddresses
	}
	return o
}

// Server accepts remote control clients and relays their requests upstream.
type Server struct {
	opts     Options
	log      *logger.Logger
	upstream Upstream
	hub      *Hub
	metrics  *metrics
	router   *httprouter.Router
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	clientsWG  sync.WaitGroup

	// admitMu orders client admission against Shutdown; once closing is
	// set no new client is registered.
	admitMu sync.Mutex
	closing bool

	stateMu   sync.RWMutex
	lastState *protocol.RemoteAppState
}

// NewServer creates a server. Nothing listens until Listen.
func NewServer(upstream Upstream, opts Options) *Server {
	opts = opts.withDefaults()
	m := newMetrics()

	s := &Server{
		opts:     opts,
		log:      opts.Logger,
		upstream: upstream,
		metrics:  m,
		hub:      NewHub(opts.Logger.WithPrefix("hub"), m),
		router:   httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Devices on the LAN load the remote from anywhere
			},
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/health", s.handleHealth)
	s.router.Handler(http.MethodGet, "/metrics", s.metrics.handler())
}

// Handler exposes the routes, for embedding in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the client registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Listen binds the port (0 picks a free one) and returns the bound port.
func (s *Server) Listen(port int) (int, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, fmt.Errorf("listen on port %d: %w", port, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// Addresses returns the reachable local addresses.
func (s *Server) Addresses() []string {
	return s.opts.Addresses()
}

// Serve blocks until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve() error {
	if s.httpServer == nil {
		return errors.New("server is not listening")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting, closes every client and waits (bounded) until all
// of them are unregistered, so every disconnect is announced upstream.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	s.admitMu.Lock()
	s.closing = true
	s.admitMu.Unlock()

	var err error
	if s.httpServer != nil {
		// Hijacked WebSocket connections are not tracked by http.Server.
		err = s.httpServer.Shutdown(ctx)
	}
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.clientsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for %d clients to disconnect", s.hub.Count())
	}
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Failed to upgrade WebSocket: %v", err)
		return
	}

	info := protocol.ClientInfo{
		ID:          uuid.NewString(),
		IP:          remoteIP(r),
		UserAgent:   r.UserAgent(),
		ConnectedAt: time.Now().UTC(),
	}
	client := newClient(s, conn, info)

	// Queue the greeting before registering so no broadcast can overtake it.
	client.send <- mustServerMessage(protocol.ServerConnected, protocol.ConnectedPayload{ClientID: info.ID})
	if state := s.currentState(); state != nil {
		client.send <- mustServerMessage(protocol.ServerState, state)
	}

	// Hijacked connections escape http.Server.Shutdown, so an upgrade that
	// finishes after Shutdown began is refused here.
	s.admitMu.Lock()
	if s.closing {
		s.admitMu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
		_ = conn.Close()
		return
	}
	s.clientsWG.Add(1)
	s.hub.Register(client)
	s.admitMu.Unlock()
	s.emit(protocol.WorkerClientConnected, protocol.ClientConnectedPayload{ClientID: info.ID, ClientInfo: info})

	go client.writePump()
	go func() {
		defer s.clientsWG.Done()
		client.readPump()
	}()
}

// disconnect runs exactly once per client, from its read pump.
func (s *Server) disconnect(c *Client) {
	if s.hub.Unregister(c) {
		s.emit(protocol.WorkerClientDisconnected, protocol.ClientRef{ClientID: c.info.ID})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.Count(),
	})
}

func (s *Server) currentState() *protocol.RemoteAppState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastState
}

func (s *Server) emit(typ protocol.WorkerType, payload any) {
	msg, err := protocol.NewMessage(typ, payload)
	if err != nil {
		s.log.Error("Failed to encode %s: %v", typ, err)
		return
	}
	s.upstream.Emit(msg)
}

func (s *Server) replyError(clientID, message string) {
	s.hub.SendTo(clientID, mustServerMessage(protocol.ServerError, protocol.ErrorPayload{Message: message}))
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// mustServerMessage encodes payloads built from protocol types, which always
// marshal.
func mustServerMessage(typ protocol.ServerType, payload any) protocol.ServerMessage {
	msg, err := protocol.NewMessage(typ, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

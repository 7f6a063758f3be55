package worker

import (
	"sort"
	"sync"

	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/protocol"
)

// Hub is the client registry. Every entry belongs to a live socket: entries
// are added before the pumps start and removed by the read pump the moment
// the socket fails or closes.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logger.Logger
	metrics *metrics
}

// NewHub creates an empty registry.
func NewHub(log *logger.Logger, m *metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log,
		metrics: m,
	}
}

// Register adds a client.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.info.ID] = client
	h.metrics.clients.Set(float64(len(h.clients)))
	h.log.Info("Client registered: %s from %s (total: %d)", client.info.ID, client.info.IP, len(h.clients))
}

// Unregister removes a client and closes its send queue. It reports whether
// the client was present, so callers announce each disconnect exactly once.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[client.info.ID]
	if !ok || current != client {
		return false
	}
	delete(h.clients, client.info.ID)
	close(client.send)
	h.metrics.clients.Set(float64(len(h.clients)))
	h.log.Info("Client unregistered: %s (total: %d)", client.info.ID, len(h.clients))
	return true
}

// Broadcast queues msg for every client and returns how many accepted it.
func (h *Hub) Broadcast(msg protocol.ServerMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.clients {
		if h.deliver(client, msg) {
			delivered++
		}
	}
	h.metrics.deliveries.WithLabelValues(string(msg.Type), "broadcast").Inc()
	return delivered
}

// SendTo queues msg for one client. A client that already left is a no-op.
func (h *Hub) SendTo(clientID string, msg protocol.ServerMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		h.log.Debug("Dropping %s for departed client %s", msg.Type, clientID)
		h.metrics.dropped.Inc()
		return false
	}
	h.metrics.deliveries.WithLabelValues(string(msg.Type), "unicast").Inc()
	return h.deliver(client, msg)
}

// deliver must run under h.mu so the send queue cannot be closed underneath.
func (h *Hub) deliver(client *Client, msg protocol.ServerMessage) bool {
	select {
	case client.send <- msg:
		return true
	default:
		// Send buffer is full, likely a dead connection. Closing the socket
		// makes the read pump unregister the client.
		h.log.Warn("Send buffer full for client %s, closing connection", client.info.ID)
		h.metrics.dropped.Inc()
		go client.Close()
		return false
	}
}

// Clients returns the registry contents ordered by connect time.
func (h *Hub) Clients() []protocol.ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]protocol.ClientInfo, 0, len(h.clients))
	for _, client := range h.clients {
		infos = append(infos, client.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ConnectedAt.Equal(infos[j].ConnectedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every socket. Each read pump then unregisters its client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}
}

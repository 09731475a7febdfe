package sse

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/wordsync/internal/model"
)

// Hub fans progress events out to every stream open for one player
type Hub struct {
	playerID model.PlayerID
	clients  map[*Client]struct{}
	mu       sync.RWMutex
	logger   *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub for a player. Call Run to start it.
func NewHub(playerID model.PlayerID, logger *slog.Logger) *Hub {
	return &Hub{
		playerID:   playerID,
		clients:    make(map[*Client]struct{}),
		logger:     logger.With(slog.String("player_id", string(playerID))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	defer close(h.stopped)
	h.logger.Debug("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse client registered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.drop(client)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-h.done:
			// Messages queued before Close still go out so a final
			// cleared event reaches the streams it closes.
			for drained := false; !drained; {
				select {
				case message := <-h.broadcast:
					h.deliver(message)
				default:
					drained = true
				}
			}
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Debug("sse hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	clientCount := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("sse client unregistered",
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", clientCount))
}

func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			dropped++
			h.logger.Warn("sse message dropped - client buffer full",
				slog.String("client_id", client.id))
		}
	}
	if dropped > 0 {
		h.logger.Warn("sse broadcast partial failure",
			slog.Int("sent", len(h.clients)-dropped),
			slog.Int("dropped", dropped))
	}
}

// Register adds a client to the hub. It reports false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Broadcast queues a preformatted message for all clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full")
	}
}

// BroadcastEvent sends an SSE event with a name and data
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatSSEMessage(eventName, data))
}

// Close shuts down the hub and disconnects its clients
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage renders one SSE frame. Every data line gets its own
// "data: " prefix.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteByte('\n')
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// splitLines splits on LF, dropping CRs and a single trailing empty line
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// HubManager owns one hub per player with open streams
type HubManager struct {
	hubs   map[model.PlayerID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.PlayerID]*Hub),
		logger: logger.With(slog.String("component", "sse")),
	}
}

// GetOrCreateHub returns the hub for a player, starting one if needed
func (m *HubManager) GetOrCreateHub(playerID model.PlayerID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		return hub
	}

	hub := NewHub(playerID, m.logger)
	m.hubs[playerID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a player, or nil if none is running
func (m *HubManager) GetHub(playerID model.PlayerID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[playerID]
}

// RemoveHub closes a player's hub, disconnecting its streams
func (m *HubManager) RemoveHub(playerID model.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		hub.Close()
		delete(m.hubs, playerID)
		m.logger.Info("sse hub removed", slog.String("player_id", string(playerID)))
	}
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("sse empty hubs cleaned up", slog.Int("removed", removed))
	}
}

// Close stops every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}

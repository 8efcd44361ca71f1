// Package sse pushes economy updates to connected players over server-sent events.
package sse

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/playerhub/internal/model"
)

// Hub manages SSE clients for a single player
type Hub struct {
	playerID model.PlayerID
	clients  map[*Client]bool
	mu       sync.RWMutex
	logger   *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a player
func NewHub(playerID model.PlayerID, logger *slog.Logger) *Hub {
	return &Hub{
		playerID:   playerID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("player_id", string(playerID))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse client registered", slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse client unregistered",
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("sse messages dropped, client buffer full", slog.Int("dropped", dropped))
			}

		case <-h.done:
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

// Register adds a client to the hub. It returns false if the hub has been closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a message to all clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("sse broadcast dropped, hub buffer full")
	}
}

// BroadcastEvent sends an SSE event with a name and data
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatSSEMessage(eventName, data))
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE message, prefixing every data line with "data: "
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits on newlines, dropping carriage returns and a trailing empty line
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// HubManager manages hubs for all connected players
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

// GetOrCreateHub returns the hub for a player, creating one if it doesn't exist
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

// GetHub returns the hub for a player, or nil if it doesn't exist
func (m *HubManager) GetHub(playerID model.PlayerID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[playerID]
}

// RemoveHub removes and closes a player's hub
func (m *HubManager) RemoveHub(playerID model.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		hub.Close()
		delete(m.hubs, playerID)
	}
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() int {
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
	return removed
}

// Close shuts down every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}

package sse

import (
	"net/http"
	"time"

	"github.com/mcoot/playerhub/internal/model"
)

const (
	// Time between keepalive pings
	pingPeriod = 15 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 16
)

// Client represents a connected SSE client
type Client struct {
	playerID    model.PlayerID
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client
func NewClient(playerID model.PlayerID) *Client {
	return &Client{
		playerID:    playerID,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ServeSSE streams hub messages to the response until the client disconnects or the hub closes
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewClient(playerID)
	if !hub.Register(client) {
		http.Error(w, "Stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(formatSSEMessage(EventConnected, `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

package sse

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/wordsync/internal/model"
)

const (
	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Time between keepalive comments
var pingPeriod = 30 * time.Second

// Message is a named SSE event
type Message struct {
	Event string
	Data  string
}

// Client is one open event stream
type Client struct {
	id          string
	playerID    model.PlayerID
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a client with a fresh connection id
func NewClient(playerID model.PlayerID) *Client {
	return &Client{
		id:          uuid.NewString(),
		playerID:    playerID,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// ServeSSE streams hub events to the response until the request ends or the
// hub closes. The initial messages are written right after the connected event.
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, playerID model.PlayerID, initial ...Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := NewClient(playerID)
	if !hub.Register(client) {
		http.Error(w, "Stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(formatSSEMessage("connected", `{"client_id":"`+client.id+`"}`))
	for _, msg := range initial {
		_, _ = w.Write(formatSSEMessage(msg.Event, msg.Data))
	}
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

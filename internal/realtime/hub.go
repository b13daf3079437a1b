package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/worktrack/worktrack/internal/pubsub"
)

// Hub maintains the set of active clients and routes published saved filter
// events to the connections of the filter's owner.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Events waiting to be routed.
	broadcast chan delivery

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	runCtx   context.Context
	runCtxMu sync.RWMutex
}

type delivery struct {
	subject string
	header  eventHeader
	data    []byte
}

var _ pubsub.Publisher = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		broadcast:  make(chan delivery),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With("component", "realtime"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.setRunCtx(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdownClients()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case d := <-h.broadcast:
			h.route(d)
		}
	}
}

func (h *Hub) route(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.mu.Lock()
		if client.userID == "" || client.userID != d.header.Owner {
			client.mu.Unlock()
			continue
		}
		for subID, sub := range client.subscriptions {
			if sub.Table != "" && sub.Table != d.header.Table {
				continue
			}
			msg := BaseMessage{
				Type:    TypeEvent,
				Payload: mustMarshal(EventPayload{SubID: subID, Subject: d.subject, Event: d.data}),
			}
			select {
			case client.send <- msg:
			default:
				select {
				case client.send <- msg:
				case <-time.After(50 * time.Millisecond):
					h.logger.Warn("Dropping event for slow client", "user", client.userID, "subject", d.subject)
				}
			}
		}
		client.mu.Unlock()
	}
}

// Publish implements pubsub.Publisher. data must be a JSON event carrying
// owner and table.
func (h *Hub) Publish(ctx context.Context, subject string, data []byte) error {
	var header eventHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("realtime: invalid event: %w", err)
	}

	select {
	case <-h.Done():
		return nil
	default:
	}

	select {
	case h.broadcast <- delivery{subject: subject, header: header, data: data}:
		return nil
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements pubsub.Publisher. The hub stops with the context passed
// to Run.
func (h *Hub) Close() error { return nil }

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.Done():
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.Done():
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func mustMarshal(v interface{}) []byte {
	b, _ := json.Marshal(v) // Should not fail for internal types
	return b
}

func (h *Hub) setRunCtx(ctx context.Context) {
	h.runCtxMu.Lock()
	h.runCtx = ctx
	h.runCtxMu.Unlock()
}

func (h *Hub) Done() <-chan struct{} {
	h.runCtxMu.RLock()
	defer h.runCtxMu.RUnlock()
	if h.runCtx == nil {
		return nil
	}
	return h.runCtx.Done()
}

func (h *Hub) shutdownClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

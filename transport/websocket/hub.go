package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/bandloop/bandloop/room/registry"
)

// Hub maintains the set of active clients and fans room events out to
// them. Room membership is never duplicated here: the registry stays the
// single source of truth for which connection is in which room.
type Hub struct {
	mu       sync.RWMutex
	clients  map[registry.ConnID]*Client
	registry *registry.Registry
}

// NewHub creates a hub over the given registry.
func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		clients:  make(map[registry.ConnID]*Client),
		registry: reg,
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	log.Printf("client %s connected (total: %d)", c.id, len(h.clients))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
		log.Printf("client %s disconnected (remaining: %d)", c.id, len(h.clients))
	}
}

// Send delivers a payload to a single connection. Best effort: a full
// send buffer drops the message.
func (h *Hub) Send(id registry.ConnID, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal message for %s: %v", id, err)
		return
	}

	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("dropping message to %s: send buffer full", id)
	}
}

// BroadcastToRoom sends a payload to every connection whose current room
// matches, except the excluded one. Fire-and-forget, at-most-once per
// peer: a slow or gone peer is logged and skipped, never retried, and
// never aborts delivery to the rest.
func (h *Hub) BroadcastToRoom(roomID uint, payload any, exclude registry.ConnID) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal broadcast for room %d: %v", roomID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if id == exclude {
			continue
		}
		rec, ok := h.registry.Get(id)
		if !ok || rec.RoomID != roomID {
			continue
		}

		select {
		case c.send <- data:
		default:
			log.Printf("dropping broadcast to %s in room %d: send buffer full", id, roomID)
		}
	}
}

// CloseAll closes every client connection. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.conn.Close()
		close(c.send)
		delete(h.clients, id)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

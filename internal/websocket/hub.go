package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/calebfife/tandem/internal/feed"
)

// Hub maintains the set of active WebSocket clients, grouped into
// couple-scoped rooms. Each partner device joins its couple's room and
// receives the couple's change-feed events; no events cross couples.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// BindFeed taps the change feed so every published event is forwarded to the
// owning couple's room.
func (h *Hub) BindFeed(f *feed.Feed) {
	f.Tap(func(coupleID int64, ev feed.Event) {
		h.Broadcast(coupleID, ev)
	})
}

// Register adds a client to its couple's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.coupleID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.coupleID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from its room and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.coupleID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.coupleID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client in the couple's room. A client
// that missed messages while disconnected gets no replay; it is expected to
// refetch on reconnect.
func (h *Hub) Broadcast(coupleID int64, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[coupleID] {
		select {
		case c.send <- data:
		default:
			// client buffer full, drop rather than block the feed
		}
	}
}

// ClientCount returns the number of connected clients in a couple's room.
func (h *Hub) ClientCount(coupleID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[coupleID])
}

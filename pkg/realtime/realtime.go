// Package realtime fans out proxied search events to any number of
// listeners (websocket sessions, tests) through an in-process hub.
//
// Delivery is best effort: a listener whose buffer is full misses the event,
// ingestion never blocks. The hub keeps a short ring of recent events so new
// listeners start with some context; there is no persistence.
package realtime

import (
	"sync"
	"time"
)

// SearchEvent describes one query relayed by the proxy.
type SearchEvent struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	ClientIP   string    `json:"client_ip,omitempty"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// Event is the envelope sent to listeners. Type is "search" for proxied
// searches; the websocket layer adds "init" and "heartbeat" frames.
type Event struct {
	Type   string       `json:"type"`
	Search *SearchEvent `json:"search,omitempty"`
}

// Hub is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int

	recent    []SearchEvent
	recentMax int
}

// NewHub returns a hub with the given per-listener buffer. Non positive
// sizes default to 32. The hub remembers the last 20 events.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
		recentMax: 20,
	}
}

// Register adds a listener. Callers must Unregister the returned id.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Publish records a search event and delivers it to every listener.
func (h *Hub) Publish(ev SearchEvent) {
	h.mu.Lock()
	h.recent = append(h.recent, ev)
	if len(h.recent) > h.recentMax {
		h.recent = h.recent[len(h.recent)-h.recentMax:]
	}
	h.mu.Unlock()

	h.Broadcast(Event{Type: "search", Search: &ev})
}

// Broadcast delivers e to all listeners, dropping it for slow ones.
func (h *Hub) Broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- e:
		default:
		}
	}
}

// Recent returns the remembered events, oldest first.
func (h *Hub) Recent() []SearchEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]SearchEvent(nil), h.recent...)
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

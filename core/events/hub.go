package events

import "sync"

const subscriberBuffer = 64

// Hub fans emitted events out to registered subscribers. Slow subscribers are
// skipped rather than blocking the emitting transition.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
}

// NewHub returns an empty hub ready to accept subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Event)}
}

// Emit implements the Emitter interface.
func (h *Hub) Emit(evt Event) {
	if h == nil || evt == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel together with a
// cancel function that unregisters the subscriber and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

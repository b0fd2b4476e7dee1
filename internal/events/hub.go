package events

import (
	"sync"

	"github.com/tinoosan/vodcache/internal/jobs"
)

// Hub fans job events out to any number of subscribers. Publishing never
// blocks: a subscriber that cannot keep up has events dropped on its channel.
type Hub struct {
	mu   sync.Mutex
	subs map[chan jobs.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan jobs.Event]struct{})}
}

// Subscribe registers a new subscriber and returns its channel plus a cancel
// function. Cancel must be called exactly once; the channel is closed by it.
func (h *Hub) Subscribe() (<-chan jobs.Event, func()) {
	ch := make(chan jobs.Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers e to every current subscriber, skipping full channels.
func (h *Hub) Publish(e jobs.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

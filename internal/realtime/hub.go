package realtime

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultBuffer is the per-subscriber channel capacity used by NewHub when
// given a non-positive size.
const DefaultBuffer = 64

// Hub is an in-process change broadcaster. Each subscriber gets its own
// buffered channel; a subscriber that falls a full buffer behind is dropped
// and its channel closed, after which it is expected to reload and subscribe again.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int
	closed bool
}

type subscriber struct {
	ch        chan Change
	resources map[string]bool
}

func (s *subscriber) wants(resource string) bool {
	return len(s.resources) == 0 || s.resources[resource]
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[uint64]*subscriber), buffer: buffer}
}

// Subscribe registers for changes to the named resources, or to all resources
// when none are given. The returned cancel function is idempotent.
func (h *Hub) Subscribe(resources ...string) (<-chan Change, func()) {
	sub := &subscriber{ch: make(chan Change, h.buffer)}
	if len(resources) > 0 {
		sub.resources = make(map[string]bool, len(resources))
		for _, r := range resources {
			sub.resources[r] = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = sub

	return sub.ch, func() { h.remove(id) }
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Publish delivers c to every matching subscriber.
func (h *Hub) Publish(_ context.Context, c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		if !sub.wants(c.Resource) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			slog.Warn("dropping slow change subscriber", "subscriber", id, "resource", c.Resource)
			delete(h.subs, id)
			close(sub.ch)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions receive a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

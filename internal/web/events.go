package web

import (
	"sync"

	"github.com/kozaktomas/face-tracker/internal/store"
)

// eventBuffer is the per-listener channel capacity. A listener that falls
// this far behind starts losing events rather than blocking the pipeline.
const eventBuffer = 16

// EventHub fans entry/exit records out to SSE listeners.
type EventHub struct {
	mu        sync.Mutex
	listeners map[chan store.VisitRecord]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{listeners: make(map[chan store.VisitRecord]struct{})}
}

// Publish delivers the record to every listener without blocking.
func (h *EventHub) Publish(rec store.VisitRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.listeners {
		select {
		case ch <- rec:
		default:
		}
	}
}

// AddListener registers a new listener channel.
func (h *EventHub) AddListener() chan store.VisitRecord {
	ch := make(chan store.VisitRecord, eventBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[ch] = struct{}{}
	return ch
}

// RemoveListener unregisters and closes a listener channel.
func (h *EventHub) RemoveListener(ch chan store.VisitRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[ch]; ok {
		delete(h.listeners, ch)
		close(ch)
	}
}

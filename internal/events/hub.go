package events

import (
	"context"
	"sync"
)

// Hub fans events out to in-process subscribers keyed by doctor. Slow
// subscribers miss events rather than block publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
}

type subscription struct {
	ch chan Event
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel receiving the doctor's events and a function
// that ends the subscription and closes the channel.
func (h *Hub) Subscribe(doctorID string) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[doctorID] == nil {
		h.subs[doctorID] = make(map[*subscription]struct{})
	}
	h.subs[doctorID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[doctorID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, doctorID)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.DoctorID] {
		select {
		case sub.ch <- ev:
		default:
			// subscriber buffer full
		}
	}
	return nil
}

// Subscribers returns the number of subscribers watching doctorID.
func (h *Hub) Subscribers(doctorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[doctorID])
}

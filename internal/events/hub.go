package events

import (
	"context"
	"sync"
)

// Hub fans events out to subscribers. A subscriber that falls behind loses
// events instead of blocking the scheduler.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	last *Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Report(_ context.Context, ev Event) {
	h.mu.Lock()
	if ev.Kind == TradeCompleted {
		e := ev
		h.last = &e
	}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a buffered event channel and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// LastCompleted returns the most recent trade-completed event.
func (h *Hub) LastCompleted() (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return Event{}, false
	}
	return *h.last, true
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

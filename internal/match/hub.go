package match

import (
	"sync"
)

// Event is one state transition pushed to spectating clients.
type Event struct {
	Type     string `json:"type"`
	MatchID  string `json:"match_id"`
	Status   string `json:"status"`
	WinnerID string `json:"winner_id,omitempty"`
	SignalAt int64  `json:"signal_at_ms,omitempty"`
}

// Hub fans match events out to subscribers. Slow subscribers are
// dropped rather than blocking the engine.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for one match. The returned channel is
// buffered; call the cancel func to detach.
func (h *Hub) Subscribe(matchID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	if h.subs[matchID] == nil {
		h.subs[matchID] = make(map[chan Event]struct{})
	}
	h.subs[matchID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[matchID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, matchID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every live subscriber of the match. Delivery
// is best effort; a full buffer loses the event for that subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.MatchID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

package http

import (
	"sync"

	"melody-quiz-service/internal/domain"
)

// Event is one message pushed to the presentation layer.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type clipPayload struct {
	RoundID         string  `json:"roundId"`
	Format          string  `json:"format"`
	DurationSeconds float64 `json:"durationSeconds"`
	Audio           []byte  `json:"audio"`
}

type revealPayload struct {
	RoundID    string             `json:"roundId"`
	Result     domain.RoundResult `json:"result"`
	Scoreboard domain.Scoreboard  `json:"scoreboard"`
}

type expiredPayload struct {
	RoundID string              `json:"roundId"`
	Reason  domain.ExpiryReason `json:"reason"`
}

// Hub fans engine events out to every connection of a session. It implements
// app.Notifier.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel of session events. The caller must invoke the
// returned cancel function to avoid leaks.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subs[sessionID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subs, sessionID)
		}
	}
	return ch, cancel
}

func (h *Hub) OnClipReady(sessionID, roundID string, clip domain.Clip) {
	h.publish(sessionID, Event{Type: "clipReady", Payload: clipPayload{
		RoundID:         roundID,
		Format:          clip.Format,
		DurationSeconds: clip.DurationSeconds,
		Audio:           clip.Data,
	}})
}

func (h *Hub) OnRoundRevealed(sessionID, roundID string, result domain.RoundResult, board domain.Scoreboard) {
	h.publish(sessionID, Event{Type: "roundRevealed", Payload: revealPayload{
		RoundID:    roundID,
		Result:     result,
		Scoreboard: board,
	}})
}

func (h *Hub) OnRoundExpired(sessionID, roundID string, reason domain.ExpiryReason) {
	h.publish(sessionID, Event{Type: "roundExpired", Payload: expiredPayload{RoundID: roundID, Reason: reason}})
}

func (h *Hub) publish(sessionID string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			// drop the oldest event so a slow client never blocks the engine
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

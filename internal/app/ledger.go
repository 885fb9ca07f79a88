package app

import (
	"sort"
	"sync"
	"time"

	"melody-quiz-service/internal/domain"
)

// Ledger accumulates per-participant scores for every session.
// RecordRoundOutcome is the only write path.
type Ledger struct {
	now func() time.Time

	mu     sync.Mutex
	boards map[string]*scoreboard
}

type scoreboard struct {
	mu          sync.RWMutex
	scores      map[string]int
	applied     map[string]struct{}
	updatedAt   time.Time
	subscribers map[chan domain.Scoreboard]struct{}
}

func NewLedger() *Ledger {
	return NewLedgerWithClock(time.Now)
}

// NewLedgerWithClock allows deterministic timestamps in tests.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now, boards: make(map[string]*scoreboard)}
}

func (l *Ledger) board(sessionID string, create bool) *scoreboard {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.boards[sessionID]
	if !ok && create {
		b = &scoreboard{
			scores:      make(map[string]int),
			applied:     make(map[string]struct{}),
			subscribers: make(map[chan domain.Scoreboard]struct{}),
		}
		l.boards[sessionID] = b
	}
	return b
}

// RecordRoundOutcome applies deltas atomically. A round can be applied once;
// repeating it returns domain.ErrOutcomeAlreadyRecorded and changes nothing.
func (l *Ledger) RecordRoundOutcome(sessionID, roundID string, deltas map[string]int) (domain.Scoreboard, error) {
	b := l.board(sessionID, true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, done := b.applied[roundID]; done {
		return b.snapshotLocked(sessionID), domain.ErrOutcomeAlreadyRecorded
	}
	b.applied[roundID] = struct{}{}
	for participantID, delta := range deltas {
		b.scores[participantID] += delta
	}
	b.updatedAt = l.now()
	return b.broadcastLocked(sessionID), nil
}

// Scoreboard returns the session's scores sorted by score descending, ties by
// participant ID ascending. Unknown sessions yield an empty board.
func (l *Ledger) Scoreboard(sessionID string) domain.Scoreboard {
	b := l.board(sessionID, false)
	if b == nil {
		return domain.Scoreboard{SessionID: sessionID, Entries: []domain.ScoreEntry{}}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(sessionID)
}

// Subscribe returns a channel that receives scoreboard updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (l *Ledger) Subscribe(sessionID string) (<-chan domain.Scoreboard, func()) {
	b := l.board(sessionID, true)
	ch := make(chan domain.Scoreboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	initial := b.snapshotLocked(sessionID)
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Drop discards a session's scores and closes its subscriptions.
func (l *Ledger) Drop(sessionID string) {
	l.mu.Lock()
	b, ok := l.boards[sessionID]
	delete(l.boards, sessionID)
	l.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *scoreboard) broadcastLocked(sessionID string) domain.Scoreboard {
	board := b.snapshotLocked(sessionID)
	for ch := range b.subscribers {
		select {
		case ch <- board:
		default:
			// drop the stale update so a slow reader never blocks scoring
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
	return board
}

func (b *scoreboard) snapshotLocked(sessionID string) domain.Scoreboard {
	entries := make([]domain.ScoreEntry, 0, len(b.scores))
	for participantID, score := range b.scores {
		entries = append(entries, domain.ScoreEntry{ParticipantID: participantID, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return domain.Scoreboard{
		SessionID: sessionID,
		Entries:   entries,
		UpdatedAt: b.updatedAt,
	}
}

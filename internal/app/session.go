package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"melody-quiz-service/internal/domain"
)

// Timer is the handle returned by an AfterFunc implementation.
type Timer interface {
	Stop() bool
}

// Session is the in-memory state of one quiz session: its roster and at most
// one non-terminal round.
type Session struct {
	id        string
	createdAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	mu         sync.Mutex
	closed     bool
	roster     map[string]domain.Participant
	active     *round
	generation uint64
	timer      Timer
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return newSessionAt(id, time.Now())
}

func newSessionAt(id string, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		createdAt: now,
		ctx:       ctx,
		cancel:    cancel,
		roster:    make(map[string]domain.Participant),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// IsEmpty reports whether the session has no participants and no live round.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.roster) == 0 && (s.active == nil || s.active.status.Terminal())
}

// Closed reports whether EndSession has been called for the session.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Participants returns the roster ordered by join time.
func (s *Session) Participants() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Participant, 0, len(s.roster))
	for _, p := range s.roster {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Session) join(participantID, displayName string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.roster[participantID]; ok {
		p.DisplayName = displayName
		s.roster[participantID] = p
		return
	}
	s.roster[participantID] = domain.Participant{ID: participantID, DisplayName: displayName, JoinedAt: now}
}

func (s *Session) leave(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roster, participantID)
}

// allAnsweredLocked is false for an empty roster so anonymous sessions run to
// the deadline.
func (s *Session) allAnsweredLocked(r *round) bool {
	if len(s.roster) == 0 {
		return false
	}
	for id := range s.roster {
		if _, ok := r.answered[id]; !ok {
			return false
		}
	}
	return true
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// close is idempotent; it cancels in-flight preparation and drops the round.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.stopTimerLocked()
	s.active = nil
	s.roster = make(map[string]domain.Participant)
}

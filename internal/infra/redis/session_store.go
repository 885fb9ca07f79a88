package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"melody-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionStore.
// Notes:
//   - Sessions (and their rounds) stay in a local map; round state is owned by
//     one process.
//   - Redis marks session liveness so other instances and operators can see
//     which chats are active.
//   - Redis is never called under the map lock, and reads refresh the marker
//     at most once per quarter TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*trackedSession
}

type trackedSession struct {
	session   *app.Session
	refreshed atomic.Int64 // unix nanos of the last liveness write
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*trackedSession),
	}
}

func (s *SessionStore) GetOrCreate(sessionID string) *app.Session {
	s.mu.Lock()
	if tracked, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		s.refresh(sessionID, tracked)
		return tracked.session
	}
	tracked := &trackedSession{session: app.NewSession(sessionID)}
	tracked.refreshed.Store(s.clock().UnixNano())
	s.sessions[sessionID] = tracked
	s.mu.Unlock()

	// best-effort liveness marker
	_ = s.client.Set(context.Background(), sessionKey(sessionID), "1", s.ttl).Err()
	return tracked.session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	tracked, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.refresh(sessionID, tracked)
	return tracked.session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), sessionKey(sessionID)).Err()
}

// refresh extends the liveness marker when a quarter of its TTL has passed.
// Only the caller that wins the swap talks to Redis.
func (s *SessionStore) refresh(sessionID string, tracked *trackedSession) {
	if s.ttl <= 0 {
		return
	}
	now := s.clock().UnixNano()
	last := tracked.refreshed.Load()
	if now-last < int64(s.ttl/4) || !tracked.refreshed.CompareAndSwap(last, now) {
		return
	}
	_ = s.client.Expire(context.Background(), sessionKey(sessionID), s.ttl).Err()
}

func sessionKey(sessionID string) string {
	return "quiz:session:" + sessionID
}

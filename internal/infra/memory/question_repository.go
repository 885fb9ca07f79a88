package memory

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"melody-quiz-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., document DB).
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

const loadTimeout = 10 * time.Second

// QuestionRepository caches questions with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader  QuestionLoader
	ttl     time.Duration
	timeout time.Duration
	clock   func() time.Time
	sf      singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader:  loader,
		ttl:     ttl,
		timeout: loadTimeout,
		clock:   time.Now,
		cache:   make(map[string]cachedQuestion),
	}
}

// GetQuestion serves from cache or loads once for all concurrent callers. The
// shared load ignores caller cancellation; a caller whose ctx ends stops waiting.
func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := r.cached(questionID); ok {
		return q, nil
	}

	ch := r.sf.DoChan(questionID, func() (interface{}, error) {
		if q, ok := r.cached(questionID); ok {
			return q, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		q, err := r.loader.LoadQuestion(loadCtx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		r.mu.Lock()
		r.cache[questionID] = cachedQuestion{
			question:  q,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return q, nil
	})
	select {
	case <-ctx.Done():
		return domain.Question{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Question{}, res.Err
		}
		return res.Val.(domain.Question), nil
	}
}

// Invalidate drops a cached question so the next read goes to the loader.
func (r *QuestionRepository) Invalidate(questionID string) {
	r.mu.Lock()
	delete(r.cache, questionID)
	r.mu.Unlock()
}

func (r *QuestionRepository) cached(questionID string) (domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[questionID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Question{}, false
	}
	return entry.question, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

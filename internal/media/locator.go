// Package media resolves quiz questions to playable media references.
package media

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/logging"
)

// QuestionSource loads question content (from cache/backing store).
type QuestionSource interface {
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// DurationProber measures media that the catalog does not carry a duration for.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

const defaultLookupTimeout = 45 * time.Second

// Locator resolves question IDs to media references and caches them with TTL.
// It never retries; callers decide retry policy.
type Locator struct {
	questions QuestionSource
	probe     DurationProber
	ttl       time.Duration
	timeout   time.Duration
	clock     func() time.Time
	sf        singleflight.Group
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cachedReference
}

type cachedReference struct {
	ref       domain.MediaReference
	expiresAt time.Time
}

// LocatorOption customizes a Locator.
type LocatorOption func(*Locator)

// WithLookupTimeout bounds one resolution, catalog read and ffprobe included.
func WithLookupTimeout(d time.Duration) LocatorOption {
	return func(l *Locator) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLocator builds a locator. probe may be nil when every question carries its duration.
func NewLocator(questions QuestionSource, probe DurationProber, ttl time.Duration, logger *slog.Logger, opts ...LocatorOption) *Locator {
	l := &Locator{
		questions: questions,
		probe:     probe,
		ttl:       ttl,
		timeout:   defaultLookupTimeout,
		clock:     time.Now,
		logger:    logging.NewComponentLogger(logger, "locator"),
		cache:     make(map[string]cachedReference),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve returns the media reference for questionID. It fails with
// domain.ErrNotFound when no media is associated, domain.ErrTimeout when the
// lookup exceeds its bound and domain.ErrUnavailable when the catalog or the
// prober cannot be reached.
//
// Concurrent callers share one lookup. The shared lookup is detached from
// every caller's cancellation; each caller stops waiting when its own ctx ends.
func (l *Locator) Resolve(ctx context.Context, questionID string) (domain.MediaReference, error) {
	if ref, ok := l.cached(questionID); ok {
		return ref, nil
	}

	ch := l.sf.DoChan(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if ref, ok := l.cached(questionID); ok {
			return ref, nil
		}
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		ref, err := l.resolve(lookupCtx, questionID)
		if err != nil {
			return domain.MediaReference{}, err
		}
		l.mu.Lock()
		l.cache[questionID] = cachedReference{ref: ref, expiresAt: l.clock().Add(l.ttlWithJitter())}
		l.mu.Unlock()
		return ref, nil
	})
	select {
	case <-ctx.Done():
		return domain.MediaReference{}, contextError("resolve", questionID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.MediaReference{}, res.Err
		}
		return res.Val.(domain.MediaReference), nil
	}
}

func (l *Locator) resolve(ctx context.Context, questionID string) (domain.MediaReference, error) {
	question, err := l.questions.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MediaReference{}, err
		}
		if ctx.Err() != nil {
			return domain.MediaReference{}, contextError("load question", questionID, ctx.Err())
		}
		return domain.MediaReference{}, domain.Wrap(domain.ErrUnavailable, "locator", "load question", questionID, err)
	}
	if question.MediaURI == "" {
		return domain.MediaReference{}, domain.Wrap(domain.ErrNotFound, "locator", "resolve", "no media associated with "+questionID, nil)
	}

	duration := question.DurationSeconds
	if duration <= 0 {
		if l.probe == nil {
			return domain.MediaReference{}, domain.Wrap(domain.ErrUnavailable, "locator", "probe", "no prober configured for "+questionID, nil)
		}
		duration, err = l.probe.Duration(ctx, question.MediaURI)
		if err != nil && ctx.Err() != nil {
			return domain.MediaReference{}, contextError("probe", question.MediaURI, ctx.Err())
		}
		if err != nil {
			return domain.MediaReference{}, domain.Wrap(domain.ErrUnavailable, "locator", "probe", question.MediaURI, err)
		}
		l.logger.Debug("probed media duration",
			logging.Question(questionID),
			logging.Float64("duration_seconds", duration))
	}
	return domain.MediaReference{Locator: question.MediaURI, DurationSeconds: duration}, nil
}

func contextError(operation, subject string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(domain.ErrTimeout, "locator", operation, subject, err)
	}
	return domain.Wrap(domain.ErrUnavailable, "locator", operation, subject, err)
}

func (l *Locator) cached(questionID string) (domain.MediaReference, bool) {
	if l.ttl <= 0 {
		return domain.MediaReference{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.cache[questionID]
	if !ok || !entry.expiresAt.After(l.clock()) {
		return domain.MediaReference{}, false
	}
	return entry.ref, true
}

func (l *Locator) ttlWithJitter() time.Duration {
	if l.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	return l.ttl + time.Duration(rand.Int64N(int64(l.ttl)/10+1))
}

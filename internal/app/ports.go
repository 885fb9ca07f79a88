package app

import (
	"context"

	"melody-quiz-service/internal/domain"
)

// SessionStore abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionStore interface {
	GetOrCreate(sessionID string) *Session
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// QuestionCatalog lists the questions a round may draw from when the caller
// does not name one.
type QuestionCatalog interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// MediaLocator resolves a question to its playable media.
type MediaLocator interface {
	Resolve(ctx context.Context, questionID string) (domain.MediaReference, error)
}

// ClipExtractor turns a clip window into encoded audio. The production
// implementation shells out to ffmpeg; tests use in-memory fakes.
type ClipExtractor interface {
	Extract(ctx context.Context, spec domain.ClipSpec) (domain.Clip, error)
}

// Notifier receives engine events for the presentation layer. Calls are made
// outside session locks and must not block for long.
type Notifier interface {
	OnClipReady(sessionID, roundID string, clip domain.Clip)
	OnRoundRevealed(sessionID, roundID string, result domain.RoundResult, board domain.Scoreboard)
	OnRoundExpired(sessionID, roundID string, reason domain.ExpiryReason)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) OnClipReady(string, string, domain.Clip) {}

func (NopNotifier) OnRoundRevealed(string, string, domain.RoundResult, domain.Scoreboard) {}

func (NopNotifier) OnRoundExpired(string, string, domain.ExpiryReason) {}

// MultiNotifier fans events out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) OnClipReady(sessionID, roundID string, clip domain.Clip) {
	for _, n := range m {
		n.OnClipReady(sessionID, roundID, clip)
	}
}

func (m MultiNotifier) OnRoundRevealed(sessionID, roundID string, result domain.RoundResult, board domain.Scoreboard) {
	for _, n := range m {
		n.OnRoundRevealed(sessionID, roundID, result, board)
	}
}

func (m MultiNotifier) OnRoundExpired(sessionID, roundID string, reason domain.ExpiryReason) {
	for _, n := range m {
		n.OnRoundExpired(sessionID, roundID, reason)
	}
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/logging"
)

// AfterFunc schedules f after d. It matches time.AfterFunc so tests can swap
// in a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

// Registry is the single gate for round creation. It maps session IDs to
// sessions, runs clip preparation off the session lock and drives rounds
// through their lifecycle.
type Registry struct {
	sessions  SessionStore
	questions QuestionRepository
	catalog   QuestionCatalog
	pick      func(n int) int
	locator   MediaLocator
	extractor ClipExtractor
	ledger    *Ledger
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
	afterFunc AfterFunc
	newID     func() string
	defaults  domain.RoundConfig

	inflight sync.WaitGroup
}

// Option customizes a Registry.
type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithAfterFunc(fn AfterFunc) Option {
	return func(r *Registry) { r.afterFunc = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithDefaults sets the round configuration that per-round overrides merge onto.
func WithDefaults(cfg domain.RoundConfig) Option {
	return func(r *Registry) { r.defaults = cfg }
}

// WithCatalog lets StartRound draw a random question when none is named.
func WithCatalog(c QuestionCatalog) Option {
	return func(r *Registry) { r.catalog = c }
}

// WithPicker replaces the random index source used for question draws.
func WithPicker(fn func(n int) int) Option {
	return func(r *Registry) { r.pick = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

func NewRegistry(store SessionStore, questions QuestionRepository, locator MediaLocator, extractor ClipExtractor, ledger *Ledger, opts ...Option) *Registry {
	r := &Registry{
		sessions:  store,
		questions: questions,
		locator:   locator,
		extractor: extractor,
		ledger:    ledger,
		notifier:  NopNotifier{},
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		pick:      rand.IntN,
		newID:     uuid.NewString,
		defaults:  domain.DefaultRoundConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ledger == nil {
		r.ledger = NewLedgerWithClock(r.now)
	}
	r.logger = logging.NewComponentLogger(r.logger, "registry")
	return r
}

// Ledger exposes the scoring ledger for read-only consumers.
func (r *Registry) Ledger() *Ledger { return r.ledger }

// Wait blocks until every in-flight clip preparation has finished.
func (r *Registry) Wait() { r.inflight.Wait() }

// StartRound creates a Pending round and prepares its clip in the background.
// The round becomes visible to participants once the clip is ready; if
// preparation fails the round expires and the session is free again. An empty
// questionID draws a random question from the catalog.
func (r *Registry) StartRound(ctx context.Context, sessionID, questionID string, override domain.RoundOverride) (string, error) {
	if sessionID == "" {
		return "", domain.Wrap(domain.ErrInvalidSpec, "registry", "start round", "session id is required", nil)
	}
	cfg := r.defaults.Apply(override)
	if err := cfg.Validate(); err != nil {
		return "", domain.Wrap(domain.ErrInvalidSpec, "registry", "start round", "round config", err)
	}

	q, err := r.selectQuestion(ctx, questionID)
	if err != nil {
		return "", err
	}
	questionID = q.ID

	s := r.sessions.GetOrCreate(sessionID)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", domain.ErrSessionNotFound
	}
	if s.active != nil && !s.active.status.Terminal() {
		s.mu.Unlock()
		return "", domain.ErrRoundAlreadyActive
	}
	s.generation++
	rd := newRound(r.newID(), sessionID, q, cfg, s.generation, r.now())
	s.active = rd
	s.mu.Unlock()

	r.logger.Info("round created", logging.Args(
		logging.String(logging.FieldEventType, "round_created"),
		logging.Session(sessionID),
		logging.Round(rd.id),
		logging.Question(questionID),
	)...)

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.prepare(s, rd)
	}()
	return rd.id, nil
}

func (r *Registry) selectQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if questionID == "" {
		return r.drawQuestion(ctx)
	}
	q, err := r.questions.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Question{}, err
		}
		return domain.Question{}, domain.Wrap(domain.ErrUnavailable, "registry", "start round", "load question "+questionID, err)
	}
	return q, nil
}

func (r *Registry) drawQuestion(ctx context.Context) (domain.Question, error) {
	if r.catalog == nil {
		return domain.Question{}, domain.Wrap(domain.ErrInvalidSpec, "registry", "draw question", "question id is required without a catalog", nil)
	}
	questions, err := r.catalog.ListQuestions(ctx)
	if err != nil {
		return domain.Question{}, domain.Wrap(domain.ErrUnavailable, "registry", "draw question", "list catalog", err)
	}
	playable := questions[:0:0]
	for _, q := range questions {
		if q.ID != "" && q.MediaURI != "" {
			playable = append(playable, q)
		}
	}
	if len(playable) == 0 {
		return domain.Question{}, domain.Wrap(domain.ErrNotFound, "registry", "draw question", "catalog has no playable questions", nil)
	}
	return playable[r.pick(len(playable))], nil
}

func (r *Registry) prepare(s *Session, rd *round) {
	clip, err := r.buildClip(s.ctx, rd)

	s.mu.Lock()
	if s.closed || s.active != rd {
		s.mu.Unlock()
		r.logger.Debug("discarding clip for torn down round", logging.Args(logging.Session(s.id), logging.Round(rd.id))...)
		return
	}
	if err != nil {
		reason := domain.ExpiryReasonFor(err)
		if terr := rd.expire(reason); terr != nil {
			s.mu.Unlock()
			r.logger.Error("expire round", logging.Args(logging.Session(s.id), logging.Round(rd.id), logging.Error(terr))...)
			return
		}
		s.mu.Unlock()
		r.logger.Warn("round expired", logging.Args(
			logging.String(logging.FieldEventType, "round_expired"),
			logging.Session(s.id),
			logging.Round(rd.id),
			logging.String("reason", string(reason)),
			logging.Error(err),
		)...)
		r.notifier.OnRoundExpired(s.id, rd.id, reason)
		return
	}
	if terr := rd.transition(domain.RoundPlaying); terr != nil {
		s.mu.Unlock()
		r.logger.Error("start playing", logging.Args(logging.Session(s.id), logging.Round(rd.id), logging.Error(terr))...)
		return
	}
	rd.clip = &clip
	s.mu.Unlock()

	r.notifier.OnClipReady(s.id, rd.id, clip)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.active != rd || rd.status != domain.RoundPlaying {
		return
	}
	if terr := rd.open(r.now()); terr != nil {
		r.logger.Error("accept answers", logging.Args(logging.Session(s.id), logging.Round(rd.id), logging.Error(terr))...)
		return
	}
	roundID, generation := rd.id, rd.generation
	s.timer = r.afterFunc(rd.cfg.Deadline, func() { r.onDeadline(s, roundID, generation) })
	r.logger.Info("accepting answers", logging.Args(
		logging.String(logging.FieldEventType, "round_accepting"),
		logging.Session(s.id),
		logging.Round(rd.id),
		logging.Duration("deadline", rd.cfg.Deadline),
	)...)
}

func (r *Registry) buildClip(ctx context.Context, rd *round) (domain.Clip, error) {
	media, err := r.locator.Resolve(ctx, rd.question.ID)
	if err != nil {
		return domain.Clip{}, err
	}
	spec := domain.PlanClip(rd.question, media, rd.cfg.ClipSeconds, rd.cfg.Format)
	return r.extractor.Extract(ctx, spec)
}

// onDeadline is bound to a round identity; a timer that outlived its round is
// a no-op.
func (r *Registry) onDeadline(s *Session, roundID string, generation uint64) {
	s.mu.Lock()
	rd := s.active
	if s.closed || rd == nil || rd.id != roundID || rd.generation != generation || rd.status != domain.RoundAcceptingAnswers {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	rev := r.closeRoundLocked(s, rd)
	s.mu.Unlock()
	r.publish(rev)
}

type reveal struct {
	sessionID string
	roundID   string
	result    domain.RoundResult
	board     domain.Scoreboard
}

// closeRoundLocked scores the round exactly once and reveals it. Lock order is
// session then ledger.
func (r *Registry) closeRoundLocked(s *Session, rd *round) *reveal {
	s.stopTimerLocked()
	if err := rd.transition(domain.RoundScoring); err != nil {
		r.logger.Error("close round", logging.Args(logging.Session(s.id), logging.Round(rd.id), logging.Error(err))...)
		return nil
	}
	result := judge(rd.question, rd.cfg, rd.startedAt, rd.answers)
	board, err := r.ledger.RecordRoundOutcome(s.id, rd.id, result.Deltas())
	if err != nil {
		r.logger.Warn("round outcome not applied", logging.Args(logging.Session(s.id), logging.Round(rd.id), logging.Error(err))...)
	}
	if err := rd.transition(domain.RoundRevealed); err != nil {
		r.logger.Error("reveal round", logging.Args(logging.Session(s.id), logging.Round(rd.id), logging.Error(err))...)
		return nil
	}
	rd.result = &result
	rd.clip = nil
	return &reveal{sessionID: s.id, roundID: rd.id, result: result, board: board}
}

func (r *Registry) publish(rev *reveal) {
	if rev == nil {
		return
	}
	r.logger.Info("round revealed", logging.Args(
		logging.String(logging.FieldEventType, "round_revealed"),
		logging.Session(rev.sessionID),
		logging.Round(rev.roundID),
		logging.Int("answers", len(rev.result.Outcomes)),
	)...)
	r.notifier.OnRoundRevealed(rev.sessionID, rev.roundID, rev.result, rev.board)
}

// SubmitAnswer stores the first answer of a participant for the active round.
// Arrival order is the order in which answers pass the session lock.
func (r *Registry) SubmitAnswer(_ context.Context, sessionID, participantID, value string) (domain.SubmitResult, error) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return domain.SubmitResult{}, domain.ErrSessionNotFound
	}

	var (
		rev    *reveal
		closed bool
	)
	result := func() domain.SubmitResult {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			closed = true
			return domain.SubmitResult{}
		}
		rd := s.active
		if rd == nil || rd.status.Terminal() {
			return domain.Rejected("", domain.RejectNoActiveRound)
		}
		now := r.now()
		if !rd.accepting(now) {
			if rd.status == domain.RoundAcceptingAnswers {
				// the timer has not fired yet but the window is over
				rev = r.closeRoundLocked(s, rd)
			}
			return domain.Rejected(rd.id, domain.RejectNotAccepting)
		}
		if _, dup := rd.answered[participantID]; dup {
			return domain.Rejected(rd.id, domain.RejectDuplicate)
		}
		answer := rd.record(participantID, value, now)
		closeNow := s.allAnsweredLocked(rd) ||
			(rd.cfg.CloseOnFirstCorrect && matchesAny(rd.cfg.Normalization, value, rd.question.CanonicalAnswers()))
		if closeNow {
			rev = r.closeRoundLocked(s, rd)
		}
		return domain.Accepted(rd.id, answer.Sequence)
	}()
	if closed {
		return domain.SubmitResult{}, domain.ErrSessionNotFound
	}
	r.publish(rev)
	return result, nil
}

// EndSession tears down the session without scoring its active round. It is
// safe at any round state; a clip still being extracted is discarded.
func (r *Registry) EndSession(_ context.Context, sessionID string) error {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	r.sessions.Delete(sessionID)
	s.close()
	r.ledger.Drop(sessionID)
	r.logger.Info("session ended", logging.Args(
		logging.String(logging.FieldEventType, "session_ended"),
		logging.Session(sessionID),
	)...)
	return nil
}

// Join registers or renames a participant. Joined participants form the roster
// used to close a round early once everyone has answered.
func (r *Registry) Join(_ context.Context, sessionID, participantID, displayName string) (domain.Scoreboard, error) {
	if sessionID == "" || participantID == "" {
		return domain.Scoreboard{}, domain.Wrap(domain.ErrInvalidSpec, "registry", "join", "session and participant ids are required", nil)
	}
	s := r.sessions.GetOrCreate(sessionID)
	if s.Closed() {
		return domain.Scoreboard{}, domain.ErrSessionNotFound
	}
	s.join(participantID, displayName, r.now())
	return r.ledger.Scoreboard(sessionID), nil
}

// Leave removes a participant from the roster. Their score is kept.
func (r *Registry) Leave(_ context.Context, sessionID, participantID string) {
	if s, ok := r.sessions.Get(sessionID); ok {
		s.leave(participantID)
	}
}

// Scoreboard returns the ordered scores of a live session.
func (r *Registry) Scoreboard(sessionID string) (domain.Scoreboard, error) {
	if _, ok := r.sessions.Get(sessionID); !ok {
		return domain.Scoreboard{}, domain.ErrSessionNotFound
	}
	return r.ledger.Scoreboard(sessionID), nil
}

// Subscribe streams scoreboard updates for a live session.
func (r *Registry) Subscribe(_ context.Context, sessionID string) (<-chan domain.Scoreboard, func(), error) {
	if _, ok := r.sessions.Get(sessionID); !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := r.ledger.Subscribe(sessionID)
	return ch, cancel, nil
}

// Round returns a snapshot of the session's current or last round.
func (r *Registry) Round(sessionID string) (domain.RoundSnapshot, bool) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return domain.RoundSnapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return domain.RoundSnapshot{}, false
	}
	return s.active.snapshot(), true
}

// Result returns the judged outcome of the session's last revealed round.
func (r *Registry) Result(sessionID string) (domain.RoundResult, bool) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return domain.RoundResult{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.result == nil {
		return domain.RoundResult{}, false
	}
	return *s.active.result, true
}

// Clip returns the audio of the round currently being played or answered.
func (r *Registry) Clip(sessionID string) (string, domain.Clip, bool) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return "", domain.Clip{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.clip == nil {
		return "", domain.Clip{}, false
	}
	return s.active.id, *s.active.clip, true
}

// Participants lists the roster of a live session.
func (r *Registry) Participants(sessionID string) ([]domain.Participant, error) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Participants(), nil
}

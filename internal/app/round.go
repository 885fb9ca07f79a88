package app

import (
	"fmt"
	"time"

	"melody-quiz-service/internal/domain"
)

var transitions = map[domain.RoundStatus][]domain.RoundStatus{
	domain.RoundPending:          {domain.RoundPlaying, domain.RoundExpired},
	domain.RoundPlaying:          {domain.RoundAcceptingAnswers},
	domain.RoundAcceptingAnswers: {domain.RoundScoring},
	domain.RoundScoring:          {domain.RoundRevealed},
}

// round is owned by its session and only touched under the session lock.
//
// The answer deadline is fixed once, when the round opens for answers, and is
// never extended afterwards. Clip preparation time therefore never eats into
// the answer window. Rounds that never open have no deadline.
type round struct {
	id         string
	sessionID  string
	question   domain.Question
	cfg        domain.RoundConfig
	generation uint64

	status     domain.RoundStatus
	clip       *domain.Clip
	createdAt  time.Time
	startedAt  time.Time
	deadlineAt time.Time
	answers    []domain.Answer
	answered   map[string]struct{}
	expiry     domain.ExpiryReason
	result     *domain.RoundResult
}

func newRound(id, sessionID string, q domain.Question, cfg domain.RoundConfig, generation uint64, now time.Time) *round {
	return &round{
		id:         id,
		sessionID:  sessionID,
		question:   q,
		cfg:        cfg,
		generation: generation,
		status:     domain.RoundPending,
		createdAt:  now,
		answered:   make(map[string]struct{}),
	}
}

func (r *round) transition(to domain.RoundStatus) error {
	for _, allowed := range transitions[r.status] {
		if allowed == to {
			r.status = to
			return nil
		}
	}
	return fmt.Errorf("round %s: illegal transition %s -> %s", r.id, r.status, to)
}

func (r *round) expire(reason domain.ExpiryReason) error {
	if err := r.transition(domain.RoundExpired); err != nil {
		return err
	}
	r.expiry = reason
	r.clip = nil
	return nil
}

// open moves a playing round to accepting answers and fixes its deadline.
func (r *round) open(now time.Time) error {
	if !r.deadlineAt.IsZero() {
		return fmt.Errorf("round %s: deadline already fixed at %s", r.id, r.deadlineAt)
	}
	if err := r.transition(domain.RoundAcceptingAnswers); err != nil {
		return err
	}
	r.startedAt = now
	r.deadlineAt = now.Add(r.cfg.Deadline)
	return nil
}

// accepting reports whether an answer submitted at now may be stored.
func (r *round) accepting(now time.Time) bool {
	return r.status == domain.RoundAcceptingAnswers && now.Before(r.deadlineAt)
}

func (r *round) record(participantID, value string, now time.Time) domain.Answer {
	answer := domain.Answer{
		ParticipantID: participantID,
		RoundID:       r.id,
		Sequence:      len(r.answers) + 1,
		SubmittedAt:   now,
		Value:         value,
	}
	r.answers = append(r.answers, answer)
	r.answered[participantID] = struct{}{}
	return answer
}

func (r *round) snapshot() domain.RoundSnapshot {
	answers := make([]domain.Answer, len(r.answers))
	copy(answers, r.answers)
	return domain.RoundSnapshot{
		ID:           r.id,
		SessionID:    r.sessionID,
		QuestionID:   r.question.ID,
		Status:       r.status,
		CreatedAt:    r.createdAt,
		StartedAt:    r.startedAt,
		DeadlineAt:   r.deadlineAt,
		Answers:      answers,
		ExpiryReason: r.expiry,
	}
}

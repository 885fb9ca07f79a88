package app

import (
	"math"
	"time"

	"melody-quiz-service/internal/domain"
)

// pointsFor returns the award for a correct answer given after elapsed of a
// window-long answering period.
func pointsFor(cfg domain.RoundConfig, elapsed, window time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	if window <= 0 || elapsed > window {
		elapsed = window
	}
	span := cfg.MaxPoints - cfg.FloorPoints
	switch cfg.Decay {
	case domain.DecayLinear:
		if window <= 0 {
			return cfg.FloorPoints
		}
		remaining := 1 - float64(elapsed)/float64(window)
		return cfg.FloorPoints + int(math.Round(float64(span)*remaining))
	case domain.DecayStepped:
		if cfg.Steps <= 1 || window <= 0 {
			return cfg.MaxPoints
		}
		step := int(float64(elapsed) / float64(window) * float64(cfg.Steps))
		if step >= cfg.Steps {
			step = cfg.Steps - 1
		}
		return cfg.MaxPoints - span*step/(cfg.Steps-1)
	default:
		return cfg.MaxPoints
	}
}

// judge scores every answer of a round exactly once. Answers are already in
// arrival order, so the first correct one is the fastest.
func judge(q domain.Question, cfg domain.RoundConfig, startedAt time.Time, answers []domain.Answer) domain.RoundResult {
	canonical := q.CanonicalAnswers()
	outcomes := make([]domain.ParticipantOutcome, 0, len(answers))
	bonusGiven := false
	for _, a := range answers {
		elapsed := a.SubmittedAt.Sub(startedAt)
		outcome := domain.ParticipantOutcome{
			ParticipantID: a.ParticipantID,
			Value:         a.Value,
			Sequence:      a.Sequence,
			Elapsed:       elapsed,
			Correct:       matchesAny(cfg.Normalization, a.Value, canonical),
		}
		if outcome.Correct {
			outcome.Awarded = pointsFor(cfg, elapsed, cfg.Deadline)
			if cfg.FastestBonus > 0 && !bonusGiven {
				outcome.Awarded += cfg.FastestBonus
				bonusGiven = true
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return domain.RoundResult{
		QuestionID: q.ID,
		Answer:     q.Reveal(),
		Outcomes:   outcomes,
	}
}

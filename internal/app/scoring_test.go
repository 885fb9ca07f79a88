package app

import (
	"testing"
	"time"

	"melody-quiz-service/internal/domain"
)

func TestPointsFor(t *testing.T) {
	linear := domain.RoundConfig{MaxPoints: 100, FloorPoints: 0, Decay: domain.DecayLinear}
	floored := domain.RoundConfig{MaxPoints: 100, FloorPoints: 10, Decay: domain.DecayLinear}
	stepped := domain.RoundConfig{MaxPoints: 100, FloorPoints: 0, Decay: domain.DecayStepped, Steps: 3}
	flat := domain.RoundConfig{MaxPoints: 50, Decay: domain.DecayNone}
	window := 10 * time.Second

	tests := []struct {
		name    string
		cfg     domain.RoundConfig
		elapsed time.Duration
		want    int
	}{
		{"linear at start", linear, 0, 100},
		{"linear at 2s", linear, 2 * time.Second, 80},
		{"linear at 8s", linear, 8 * time.Second, 20},
		{"linear at deadline", linear, window, 0},
		{"linear past deadline", linear, 12 * time.Second, 0},
		{"linear with floor", floored, 5 * time.Second, 55},
		{"linear floor at deadline", floored, window, 10},
		{"stepped first", stepped, 2 * time.Second, 100},
		{"stepped middle", stepped, 5 * time.Second, 50},
		{"stepped last", stepped, 9 * time.Second, 0},
		{"none", flat, 9 * time.Second, 50},
		{"negative elapsed", linear, -time.Second, 100},
	}
	for _, tt := range tests {
		if got := pointsFor(tt.cfg, tt.elapsed, window); got != tt.want {
			t.Fatalf("%s: want %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestJudgeAwardsBonusToFirstCorrect(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := domain.DefaultRoundConfig()
	cfg.Deadline = 10 * time.Second
	cfg.FastestBonus = 7
	q := domain.Question{ID: "q1", Artist: "Queen", Title: "Bohemian Rhapsody"}
	answers := []domain.Answer{
		{ParticipantID: "a", Sequence: 1, SubmittedAt: start.Add(time.Second), Value: "ABBA"},
		{ParticipantID: "b", Sequence: 2, SubmittedAt: start.Add(5 * time.Second), Value: "queen"},
		{ParticipantID: "c", Sequence: 3, SubmittedAt: start.Add(5 * time.Second), Value: "Queen"},
	}

	result := judge(q, cfg, start, answers)
	if result.Answer != "Queen - Bohemian Rhapsody" || result.QuestionID != "q1" {
		t.Fatalf("unexpected result header: %+v", result)
	}
	deltas := result.Deltas()
	if deltas["a"] != 0 || deltas["b"] != 57 || deltas["c"] != 50 {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	if result.Outcomes[0].Correct || !result.Outcomes[1].Correct {
		t.Fatalf("unexpected correctness: %+v", result.Outcomes)
	}
}

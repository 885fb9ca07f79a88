package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"melody-quiz-service/internal/domain"
)

func TestScoreArchiveStoresRevealedScoreboard(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	archive := NewScoreArchive(newClient(mr), time.Hour, nil)
	board := domain.Scoreboard{
		SessionID: "chat-1",
		Entries: []domain.ScoreEntry{
			{ParticipantID: "carl", Score: 90},
			{ParticipantID: "alice", Score: 40},
			{ParticipantID: "bob", Score: 40},
		},
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	result := domain.RoundResult{
		QuestionID: "q1",
		Answer:     "Queen - Bohemian Rhapsody",
		Outcomes:   []domain.ParticipantOutcome{{ParticipantID: "carl", Correct: true, Awarded: 90}},
	}
	archive.OnRoundRevealed("chat-1", "r1", result, board)
	archive.OnRoundExpired("chat-1", "r2", domain.ExpiryTimeout)

	scores, err := archive.Scores(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", scores.Entries)
	}
	for i, want := range board.Entries {
		if scores.Entries[i] != want {
			t.Fatalf("entry %d: want %+v, got %+v", i, want, scores.Entries[i])
		}
	}

	history, err := archive.History(context.Background(), "chat-1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].RoundID != "r2" || history[0].Status != domain.RoundExpired || history[0].Reason != domain.ExpiryTimeout {
		t.Fatalf("unexpected newest entry: %+v", history[0])
	}
	if history[1].RoundID != "r1" || history[1].Answer != result.Answer || len(history[1].Outcomes) != 1 {
		t.Fatalf("unexpected revealed entry: %+v", history[1])
	}
	if mr.TTL("quiz:scores:chat-1") != time.Hour {
		t.Fatalf("expected scores ttl, got %s", mr.TTL("quiz:scores:chat-1"))
	}
}

package app

import (
	"testing"
	"time"

	"melody-quiz-service/internal/domain"
)

func TestRoundTransitions(t *testing.T) {
	now := time.Unix(0, 0)
	rd := newRound("r1", "chat-1", domain.Question{ID: "q1"}, domain.DefaultRoundConfig(), 1, now)

	if err := rd.transition(domain.RoundAcceptingAnswers); err == nil {
		t.Fatalf("pending must not skip playing")
	}
	for _, next := range []domain.RoundStatus{
		domain.RoundPlaying,
		domain.RoundAcceptingAnswers,
		domain.RoundScoring,
		domain.RoundRevealed,
	} {
		if err := rd.transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if err := rd.transition(domain.RoundScoring); err == nil {
		t.Fatalf("re-entering scoring must fail")
	}
	if err := rd.expire(domain.ExpiryTimeout); err == nil {
		t.Fatalf("revealed round must not expire")
	}
}

func TestRoundExpiresOnlyFromPending(t *testing.T) {
	now := time.Unix(0, 0)
	rd := newRound("r1", "chat-1", domain.Question{ID: "q1"}, domain.DefaultRoundConfig(), 1, now)
	if err := rd.expire(domain.ExpiryTimeout); err != nil {
		t.Fatalf("expire pending: %v", err)
	}
	if rd.snapshot().ExpiryReason != domain.ExpiryTimeout {
		t.Fatalf("expected expiry reason recorded")
	}

	rd = newRound("r2", "chat-1", domain.Question{ID: "q1"}, domain.DefaultRoundConfig(), 2, now)
	_ = rd.transition(domain.RoundPlaying)
	_ = rd.transition(domain.RoundAcceptingAnswers)
	if err := rd.expire(domain.ExpiryTimeout); err == nil {
		t.Fatalf("accepting round must not expire")
	}
}

func TestRoundAcceptingWindow(t *testing.T) {
	now := time.Unix(0, 0)
	rd := newRound("r1", "chat-1", domain.Question{ID: "q1"}, domain.DefaultRoundConfig(), 1, now)
	if rd.accepting(now) {
		t.Fatalf("pending round must not accept answers")
	}
	_ = rd.transition(domain.RoundPlaying)
	_ = rd.transition(domain.RoundAcceptingAnswers)
	rd.startedAt = now
	rd.deadlineAt = now.Add(10 * time.Second)
	if !rd.accepting(now.Add(9 * time.Second)) {
		t.Fatalf("expected accepting before deadline")
	}
	if rd.accepting(now.Add(10 * time.Second)) {
		t.Fatalf("expected closed at deadline")
	}

	a := rd.record("alice", "x", now.Add(time.Second))
	b := rd.record("bob", "y", now.Add(2*time.Second))
	if a.Sequence != 1 || b.Sequence != 2 || a.RoundID != "r1" {
		t.Fatalf("unexpected sequences: %+v %+v", a, b)
	}
	snap := rd.snapshot()
	snap.Answers[0].Value = "mutated"
	if rd.answers[0].Value != "x" {
		t.Fatalf("snapshot must not alias round answers")
	}
}

func TestRoundDeadlineIsFixedOnce(t *testing.T) {
	created := time.Unix(0, 0)
	cfg := domain.DefaultRoundConfig()
	cfg.Deadline = 10 * time.Second
	rd := newRound("r1", "chat-1", domain.Question{ID: "q1"}, cfg, 1, created)

	if err := rd.open(created); err == nil {
		t.Fatalf("pending round must not open before its clip plays")
	}
	_ = rd.transition(domain.RoundPlaying)

	opened := created.Add(3 * time.Second)
	if err := rd.open(opened); err != nil {
		t.Fatalf("open: %v", err)
	}
	want := opened.Add(10 * time.Second)
	if !rd.deadlineAt.Equal(want) || !rd.startedAt.Equal(opened) {
		t.Fatalf("expected deadline %s, got %s", want, rd.deadlineAt)
	}
	if err := rd.open(opened.Add(5 * time.Second)); err == nil {
		t.Fatalf("reopening must fail")
	}
	if !rd.deadlineAt.Equal(want) {
		t.Fatalf("deadline moved to %s", rd.deadlineAt)
	}
}

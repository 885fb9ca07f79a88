package domain

import "time"

// RoundStatus is a state of the round lifecycle.
type RoundStatus string

const (
	RoundPending          RoundStatus = "pending"
	RoundPlaying          RoundStatus = "playing"
	RoundAcceptingAnswers RoundStatus = "accepting_answers"
	RoundScoring          RoundStatus = "scoring"
	RoundRevealed         RoundStatus = "revealed"
	RoundExpired          RoundStatus = "expired"
)

// Terminal reports whether no further transition can leave the status.
func (s RoundStatus) Terminal() bool {
	return s == RoundRevealed || s == RoundExpired
}

// ExpiryReason explains why a round ended without being scored.
type ExpiryReason string

const (
	ExpiryNotFound         ExpiryReason = "not_found"
	ExpiryUnavailable      ExpiryReason = "unavailable"
	ExpiryInvalidSpec      ExpiryReason = "invalid_spec"
	ExpiryExtractionFailed ExpiryReason = "extraction_failed"
	ExpiryTimeout          ExpiryReason = "timeout"
)

// RejectReason explains why an answer was not stored.
type RejectReason string

const (
	RejectDuplicate     RejectReason = "duplicate"
	RejectNotAccepting  RejectReason = "not_accepting"
	RejectNoActiveRound RejectReason = "no_active_round"
)

// SubmitResult is AnswerAccepted when Accepted is true, Rejected(Reason) otherwise.
type SubmitResult struct {
	RoundID  string       `json:"roundId,omitempty"`
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Sequence int          `json:"sequence,omitempty"`
}

// Accepted builds an accepted submission result.
func Accepted(roundID string, sequence int) SubmitResult {
	return SubmitResult{RoundID: roundID, Accepted: true, Sequence: sequence}
}

// Rejected builds a rejected submission result.
func Rejected(roundID string, reason RejectReason) SubmitResult {
	return SubmitResult{RoundID: roundID, Reason: reason}
}

// Answer is an immutable submission recorded by a round.
type Answer struct {
	ParticipantID string    `json:"participantId"`
	RoundID       string    `json:"roundId"`
	Sequence      int       `json:"sequence"`
	SubmittedAt   time.Time `json:"submittedAt"`
	Value         string    `json:"value"`
}

// ParticipantOutcome is the judged result of one answer.
type ParticipantOutcome struct {
	ParticipantID string        `json:"participantId"`
	Value         string        `json:"value"`
	Sequence      int           `json:"sequence"`
	Elapsed       time.Duration `json:"elapsed"`
	Correct       bool          `json:"correct"`
	Awarded       int           `json:"awarded"`
}

// RoundSnapshot is a read-only copy of a round.
type RoundSnapshot struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"sessionId"`
	QuestionID   string       `json:"questionId"`
	Status       RoundStatus  `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	StartedAt    time.Time    `json:"startedAt,omitempty"`
	DeadlineAt   time.Time    `json:"deadlineAt,omitempty"`
	Answers      []Answer     `json:"answers"`
	ExpiryReason ExpiryReason `json:"expiryReason,omitempty"`
}

// Participant is a roster member of a session.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// ScoreEntry is one line of a scoreboard.
type ScoreEntry struct {
	ParticipantID string `json:"participantId"`
	Score         int    `json:"score"`
}

// Scoreboard captures the ordered scores of a session.
type Scoreboard struct {
	SessionID string       `json:"sessionId"`
	Entries   []ScoreEntry `json:"entries"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Score returns the participant's score, or 0 if absent.
func (b Scoreboard) Score(participantID string) int {
	for _, e := range b.Entries {
		if e.ParticipantID == participantID {
			return e.Score
		}
	}
	return 0
}

// RoundResult is what a revealed round tells participants.
type RoundResult struct {
	QuestionID string               `json:"questionId"`
	Answer     string               `json:"answer"`
	Outcomes   []ParticipantOutcome `json:"outcomes"`
}

// Deltas returns the points each participant earns from the round.
func (r RoundResult) Deltas() map[string]int {
	deltas := make(map[string]int, len(r.Outcomes))
	for _, o := range r.Outcomes {
		deltas[o.ParticipantID] += o.Awarded
	}
	return deltas
}

package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/logging"
)

const historyLimit = 50

// ScoreArchive persists revealed scoreboards and round history so they outlive
// the in-memory session. It implements app.Notifier.
//
//	ZADD  quiz:scores:{sessionID}  {score} {participantID}
//	LPUSH quiz:history:{sessionID} {json event}
type ScoreArchive struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// HistoryEntry is one archived round outcome.
type HistoryEntry struct {
	RoundID  string                      `json:"roundId"`
	Status   domain.RoundStatus          `json:"status"`
	Answer   string                      `json:"answer,omitempty"`
	Outcomes []domain.ParticipantOutcome `json:"outcomes,omitempty"`
	Reason   domain.ExpiryReason         `json:"reason,omitempty"`
	At       time.Time                   `json:"at"`
}

func NewScoreArchive(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ScoreArchive {
	return &ScoreArchive{
		client:  client,
		ttl:     ttl,
		timeout: 2 * time.Second,
		logger:  logging.NewComponentLogger(logger, "score-archive"),
	}
}

func (a *ScoreArchive) OnClipReady(string, string, domain.Clip) {}

func (a *ScoreArchive) OnRoundRevealed(sessionID, roundID string, result domain.RoundResult, board domain.Scoreboard) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	pipe := a.client.TxPipeline()
	scoresKey := scoresKey(sessionID)
	pipe.Del(ctx, scoresKey)
	if len(board.Entries) > 0 {
		members := make([]redis.Z, 0, len(board.Entries))
		for _, e := range board.Entries {
			members = append(members, redis.Z{Score: float64(e.Score), Member: e.ParticipantID})
		}
		pipe.ZAdd(ctx, scoresKey, members...)
	}
	a.pushHistory(ctx, pipe, sessionID, HistoryEntry{
		RoundID:  roundID,
		Status:   domain.RoundRevealed,
		Answer:   result.Answer,
		Outcomes: result.Outcomes,
		At:       board.UpdatedAt,
	})
	if a.ttl > 0 {
		pipe.Expire(ctx, scoresKey, a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.Warn("archive scoreboard", logging.Args(logging.Session(sessionID), logging.Round(roundID), logging.Error(err))...)
	}
}

func (a *ScoreArchive) OnRoundExpired(sessionID, roundID string, reason domain.ExpiryReason) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	pipe := a.client.TxPipeline()
	a.pushHistory(ctx, pipe, sessionID, HistoryEntry{
		RoundID: roundID,
		Status:  domain.RoundExpired,
		Reason:  reason,
		At:      time.Now(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.Warn("archive expiry", logging.Args(logging.Session(sessionID), logging.Round(roundID), logging.Error(err))...)
	}
}

func (a *ScoreArchive) pushHistory(ctx context.Context, pipe redis.Pipeliner, sessionID string, entry HistoryEntry) {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return
	}
	key := historyKey(sessionID)
	pipe.LPush(ctx, key, encoded)
	pipe.LTrim(ctx, key, 0, historyLimit-1)
	if a.ttl > 0 {
		pipe.Expire(ctx, key, a.ttl)
	}
}

// Scores returns the archived scoreboard, highest first, ties by participant ID.
func (a *ScoreArchive) Scores(ctx context.Context, sessionID string) (domain.Scoreboard, error) {
	members, err := a.client.ZRevRangeWithScores(ctx, scoresKey(sessionID), 0, -1).Result()
	if err != nil {
		return domain.Scoreboard{}, domain.Wrap(domain.ErrUnavailable, "score-archive", "scores", sessionID, err)
	}
	entries := make([]domain.ScoreEntry, 0, len(members))
	for _, m := range members {
		id, _ := m.Member.(string)
		entries = append(entries, domain.ScoreEntry{ParticipantID: id, Score: int(m.Score)})
	}
	// ZREVRANGE orders equal scores by member descending; flip ties to ascending.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return domain.Scoreboard{SessionID: sessionID, Entries: entries}, nil
}

// History returns the most recent archived rounds, newest first.
func (a *ScoreArchive) History(ctx context.Context, sessionID string, limit int64) ([]HistoryEntry, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	raw, err := a.client.LRange(ctx, historyKey(sessionID), 0, limit-1).Result()
	if err != nil {
		return nil, domain.Wrap(domain.ErrUnavailable, "score-archive", "history", sessionID, err)
	}
	out := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func scoresKey(sessionID string) string {
	return "quiz:scores:" + sessionID
}

func historyKey(sessionID string) string {
	return "quiz:history:" + sessionID
}

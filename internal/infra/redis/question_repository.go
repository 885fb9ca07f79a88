package redis

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"melody-quiz-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., document DB).
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// QuestionRepository caches questions in Redis (hash per question) and falls
// back to a loader on cache miss. Layout:
//
//	HSET quiz:question:{questionID} media ... duration ... artist ... title ... answers [json]
type QuestionRepository struct {
	client  *redis.Client
	loader  QuestionLoader
	ttl     time.Duration
	timeout time.Duration
	sf      singleflight.Group
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client:  client,
		loader:  loader,
		ttl:     ttl,
		timeout: 10 * time.Second,
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	key := questionKey(questionID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return questionFromHash(questionID, fields), nil
	}

	// The shared fill is detached from the first caller's cancellation so one
	// session ending does not fail the others waiting on the same question.
	ch := r.sf.DoChan(questionID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		// Re-check cache in case another goroutine filled it.
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return questionFromHash(questionID, fields), nil
		}

		q, err := r.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key, questionToHash(q))
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// the cache is best effort; a failed write only costs a reload
		_, _ = pipe.Exec(ctx)

		return q, nil
	})
	select {
	case <-ctx.Done():
		return domain.Question{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Question{}, res.Err
		}
		return res.Val.(domain.Question), nil
	}
}

func questionKey(questionID string) string {
	return "quiz:question:" + questionID
}

func questionToHash(q domain.Question) map[string]interface{} {
	fields := map[string]interface{}{
		"media":    q.MediaURI,
		"duration": strconv.FormatFloat(q.DurationSeconds, 'f', -1, 64),
		"artist":   q.Artist,
		"title":    q.Title,
	}
	if q.ClipStart != nil {
		fields["clipStart"] = strconv.FormatFloat(*q.ClipStart, 'f', -1, 64)
	}
	if len(q.Answers) > 0 {
		if encoded, err := json.Marshal(q.Answers); err == nil {
			fields["answers"] = string(encoded)
		}
	}
	return fields
}

func questionFromHash(questionID string, fields map[string]string) domain.Question {
	q := domain.Question{
		ID:       questionID,
		MediaURI: fields["media"],
		Artist:   fields["artist"],
		Title:    fields["title"],
	}
	if d, err := strconv.ParseFloat(fields["duration"], 64); err == nil {
		q.DurationSeconds = d
	}
	if raw, ok := fields["clipStart"]; ok {
		if start, err := strconv.ParseFloat(raw, 64); err == nil {
			q.ClipStart = &start
		}
	}
	if raw, ok := fields["answers"]; ok {
		_ = json.Unmarshal([]byte(raw), &q.Answers)
	}
	return q
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

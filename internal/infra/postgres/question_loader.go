package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"melody-quiz-service/internal/domain"
)

// QuestionLoader loads question JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.Wrap(domain.ErrNotFound, "postgres", "load question", questionID, nil)
	}
	if err != nil {
		return domain.Question{}, domain.Wrap(domain.ErrUnavailable, "postgres", "load question", questionID, err)
	}
	return decodeQuestion(questionID, raw)
}

// ListQuestions returns every stored question ordered by ID.
func (l *QuestionLoader) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM questions ORDER BY id`)
	if err != nil {
		return nil, domain.Wrap(domain.ErrUnavailable, "postgres", "list questions", "", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q, err := decodeQuestion(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpsertQuestion inserts or replaces a question document.
func (l *QuestionLoader) UpsertQuestion(ctx context.Context, q domain.Question) error {
	if q.ID == "" {
		return fmt.Errorf("upsert question: id is required")
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO questions (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, q.ID, raw)
	if err != nil {
		return domain.Wrap(domain.ErrUnavailable, "postgres", "upsert question", q.ID, err)
	}
	return nil
}

func decodeQuestion(id string, raw []byte) (domain.Question, error) {
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question %s: %w", id, err)
	}
	if q.ID == "" {
		q.ID = id
	}
	return q, nil
}

package memory

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"melody-quiz-service/internal/domain"
)

// StaticQuestionLoader is a loader backed by an in-memory map (useful for tests/demos
// and for file catalogs).
type StaticQuestionLoader struct {
	questions map[string]domain.Question
}

func NewStaticQuestionLoader(questions map[string]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if q, ok := l.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.Wrap(domain.ErrNotFound, "catalog", "load question", questionID, nil)
}

// List returns every question ordered by ID.
func (l *StaticQuestionLoader) List() []domain.Question {
	out := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListQuestions satisfies app.QuestionCatalog.
func (l *StaticQuestionLoader) ListQuestions(context.Context) ([]domain.Question, error) {
	return l.List(), nil
}

type catalogFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadCatalogFile reads a YAML question catalog:
//
//	questions:
//	  - id: q1
//	    media: /srv/music/song.mp3
//	    artist: Queen
//	    title: Bohemian Rhapsody
//	    answers: ["bohemian rhapsody"]
func LoadCatalogFile(path string) (*StaticQuestionLoader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	questions := make(map[string]domain.Question, len(file.Questions))
	for i, q := range file.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: id is required", i)
		}
		if _, dup := questions[q.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, q.ID)
		}
		questions[q.ID] = q
	}
	return NewStaticQuestionLoader(questions), nil
}

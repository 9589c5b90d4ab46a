package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-grading/internal/config"
	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// ImportQuiz stores a quiz with its questions and options. Question and
// option parents are taken from the bundle; defaults are applied to the quiz.
func (e *Engine) ImportQuiz(ctx context.Context, b exam.QuizBundle) (exam.QuizBundle, error) {
	if strings.TrimSpace(b.Quiz.ID) == "" {
		return b, fmt.Errorf("quiz id is required: %w", ErrInvalidInput)
	}
	if b.Quiz.StartAt != nil && b.Quiz.EndAt != nil && b.Quiz.EndAt.Before(*b.Quiz.StartAt) {
		return b, fmt.Errorf("quiz %s ends before it starts: %w", b.Quiz.ID, ErrInvalidInput)
	}
	b.Quiz = exam.NormalizeQuiz(b.Quiz)

	seen := map[string]bool{}
	for i := range b.Questions {
		q := &b.Questions[i]
		if q.ID == "" || seen[q.ID] {
			return b, fmt.Errorf("question %d: missing or duplicate id: %w", i, ErrInvalidInput)
		}
		seen[q.ID] = true
		if !q.Type.Valid() {
			return b, fmt.Errorf("question %s: unknown type %q: %w", q.ID, q.Type, ErrInvalidInput)
		}
		q.QuizID = b.Quiz.ID
		if _, clamped := q.MaxPoints(); clamped {
			config.WithContext(ctx).WithField("question_id", q.ID).Warnf("points %v invalid, graded as 1", q.Points)
		}
	}
	for qid, opts := range b.Options {
		if !seen[qid] {
			return b, fmt.Errorf("options for unknown question %s: %w", qid, ErrInvalidInput)
		}
		for i := range opts {
			if opts[i].ID == "" {
				return b, fmt.Errorf("question %s option %d: missing id: %w", qid, i, ErrInvalidInput)
			}
			opts[i].QuestionID = qid
		}
	}

	if err := e.store.PutQuiz(ctx, b); err != nil {
		return b, fmt.Errorf("store quiz %s: %w", b.Quiz.ID, err)
	}
	config.WithContext(ctx).WithField("quiz_id", b.Quiz.ID).Infof("quiz imported with %d questions", len(b.Questions))
	return b, nil
}

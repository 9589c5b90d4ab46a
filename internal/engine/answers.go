package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// SaveAnswer stores the latest payload for (attempt, question). It fails
// with ErrInvalidState once the attempt has left in_progress, also when the
// submit lands between the status read and the write.
func (e *Engine) SaveAnswer(ctx context.Context, attemptID, questionID string, p exam.Payload) (exam.Answer, error) {
	a, q, err := e.answerTarget(ctx, attemptID, questionID)
	if err != nil {
		return exam.Answer{}, err
	}
	return e.save(ctx, a, q, p)
}

// SaveAnswerJSON decodes a client body for the question's type and saves it.
func (e *Engine) SaveAnswerJSON(ctx context.Context, attemptID, questionID string, raw json.RawMessage) (exam.Answer, error) {
	a, q, err := e.answerTarget(ctx, attemptID, questionID)
	if err != nil {
		return exam.Answer{}, err
	}
	p, err := exam.DecodePayload(q.Type, raw)
	if err != nil {
		return exam.Answer{}, err
	}
	return e.save(ctx, a, q, p)
}

func (e *Engine) answerTarget(ctx context.Context, attemptID, questionID string) (exam.Attempt, exam.Question, error) {
	a, err := e.GetAttempt(ctx, attemptID)
	if err != nil {
		return a, exam.Question{}, err
	}
	if a.Status != exam.StatusInProgress {
		return a, exam.Question{}, fmt.Errorf("attempt %s is %s: %w", attemptID, a.Status, ErrInvalidState)
	}
	q, err := e.question(ctx, a.QuizID, questionID)
	return a, q, err
}

func (e *Engine) save(ctx context.Context, a exam.Attempt, q exam.Question, p exam.Payload) (exam.Answer, error) {
	if !exam.Fits(q.Type, p) {
		return exam.Answer{}, fmt.Errorf("%w: %s answer for %s question", exam.ErrInvalidPayload, kindOf(p), q.Type)
	}
	if sel, ok := p.(exam.Selection); ok {
		if err := e.checkOptions(ctx, q, sel); err != nil {
			return exam.Answer{}, err
		}
	}
	ans, err := e.store.UpsertAnswer(ctx, exam.Answer{
		ID:         e.newID(),
		AttemptID:  a.ID,
		QuestionID: q.ID,
		Payload:    p,
		UpdatedAt:  e.now(),
	})
	switch {
	case errors.Is(err, exam.ErrConflict):
		return exam.Answer{}, fmt.Errorf("attempt %s no longer in progress: %w", a.ID, ErrInvalidState)
	case err != nil:
		return exam.Answer{}, fmt.Errorf("save answer: %w", err)
	}
	return ans, nil
}

// checkOptions rejects selections naming options of another question.
func (e *Engine) checkOptions(ctx context.Context, q exam.Question, sel exam.Selection) error {
	if len(sel.OptionIDs) == 0 {
		return nil
	}
	opts, err := e.store.ListOptions(ctx, q.ID)
	if err != nil {
		return fmt.Errorf("list options of %s: %w", q.ID, err)
	}
	known := make(map[string]bool, len(opts))
	for _, o := range opts {
		known[o.ID] = true
	}
	for _, id := range sel.OptionIDs {
		if !known[id] {
			return fmt.Errorf("%w: option %s is not part of question %s", exam.ErrInvalidPayload, id, q.ID)
		}
	}
	return nil
}

func kindOf(p exam.Payload) string {
	if p == nil {
		return "empty"
	}
	return p.Kind()
}

// ListAnswers returns the answers of an attempt ordered by question id.
func (e *Engine) ListAnswers(ctx context.Context, attemptID string) ([]exam.Answer, error) {
	if _, err := e.GetAttempt(ctx, attemptID); err != nil {
		return nil, err
	}
	return e.store.ListAnswers(ctx, attemptID)
}

func (e *Engine) GetAnswer(ctx context.Context, attemptID, questionID string) (exam.Answer, error) {
	ans, err := e.store.GetAnswer(ctx, attemptID, questionID)
	if err != nil {
		return exam.Answer{}, fmt.Errorf("answer %s/%s: %w", attemptID, questionID, err)
	}
	return ans, nil
}

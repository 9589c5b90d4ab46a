package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// CanShowResults decides whether a student may see the results of attempt.
// It is evaluated on every request and never cached.
func CanShowResults(quiz exam.Quiz, attempt exam.Attempt, now time.Time) bool {
	policy := exam.NormalizeResultsPolicy(quiz.ResultsPolicy)
	if policy == exam.ResultsNever {
		return false
	}
	if attempt.Status != exam.StatusSubmitted && attempt.Status != exam.StatusGraded {
		return false
	}
	if policy == exam.ResultsImmediate {
		return true
	}
	return quiz.EndAt == nil || now.After(*quiz.EndAt)
}

// Results is what a student gets back for an attempt. When Visible is
// false the score and all grading fields are withheld.
type Results struct {
	Attempt exam.Attempt  `json:"attempt"`
	Answers []exam.Answer `json:"answers"`
	Visible bool          `json:"visible"`
}

// GetResultsIfVisible returns the attempt with its answers, hiding grading
// unless CanShowResults allows it. A non-empty studentID must own the
// attempt; otherwise the attempt is reported as not found.
func (e *Engine) GetResultsIfVisible(ctx context.Context, attemptID, studentID string, now time.Time) (Results, error) {
	a, err := e.GetAttempt(ctx, attemptID)
	if err != nil {
		return Results{}, err
	}
	if studentID != "" && a.StudentID != studentID {
		return Results{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	quiz, err := e.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return Results{}, fmt.Errorf("quiz %s: %w", a.QuizID, err)
	}
	answers, err := e.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return Results{}, fmt.Errorf("list answers: %w", err)
	}

	res := Results{Attempt: a, Answers: answers, Visible: CanShowResults(exam.NormalizeQuiz(quiz), a, now)}
	if !res.Visible {
		res.Attempt.Score = nil
		for i := range res.Answers {
			res.Answers[i].IsCorrect = nil
			res.Answers[i].PointsAwarded = nil
			res.Answers[i].Comment = nil
			res.Answers[i].GradedBy = ""
			res.Answers[i].GradedAt = nil
		}
	}
	return res, nil
}

package exam

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a lost race: a uniqueness constraint fired or a
	// conditional update found the row in an unexpected state.
	ErrConflict = errors.New("conflict")
)

type AttemptListOpts struct {
	QuizID    string
	StudentID string
	Status    Status // optional
	Limit     int
	Offset    int
	Sort      string // started_at|submitted_at, optional " asc"|" desc" (default: started_at desc)
}

// Store is the persistence boundary of the grading engine. Every method is a
// single round trip with atomic single-row semantics.
type Store interface {
	// question bank (read-only for the engine)
	PutQuiz(ctx context.Context, b QuizBundle) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]Question, error)
	ListOptions(ctx context.Context, questionID string) ([]Option, error)

	// CreateAttempt returns ErrConflict when the student already has an
	// in_progress attempt for the quiz.
	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	// UpdateAttempt writes status, submitted_at, duration_seconds and
	// finalized_at, only if the stored status still equals from.
	// Otherwise it returns ErrConflict. Score is never written here.
	UpdateAttempt(ctx context.Context, a Attempt, from Status) error
	// SetAttemptScore is reserved for score reconciliation.
	SetAttemptScore(ctx context.Context, attemptID string, score float64) error

	// UpsertAnswer inserts or replaces the payload of (attempt, question)
	// while the attempt is in_progress; ErrConflict otherwise.
	UpsertAnswer(ctx context.Context, a Answer) (Answer, error)
	GetAnswer(ctx context.Context, attemptID, questionID string) (Answer, error)
	GetAnswerByID(ctx context.Context, id string) (Answer, error)
	ListAnswers(ctx context.Context, attemptID string) ([]Answer, error)
	// UpdateAnswerGrade writes is_correct, points_awarded, comment,
	// graded_by and graded_at.
	UpdateAnswerGrade(ctx context.Context, a Answer) error
}

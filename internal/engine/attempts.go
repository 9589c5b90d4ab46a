package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-grading/internal/exam"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

// Start creates an attempt for (quizID, studentID) or resumes the one that
// is still in progress.
func (e *Engine) Start(ctx context.Context, quizID, studentID string, now time.Time) (exam.Attempt, error) {
	if strings.TrimSpace(studentID) == "" {
		return exam.Attempt{}, fmt.Errorf("student id is required: %w", ErrInvalidInput)
	}
	quiz, err := e.store.GetQuiz(ctx, quizID)
	if err != nil {
		return exam.Attempt{}, fmt.Errorf("quiz %s: %w", quizID, err)
	}
	quiz = exam.NormalizeQuiz(quiz)
	if !quiz.Open(now) {
		return exam.Attempt{}, fmt.Errorf("quiz %s at %s: %w", quizID, now.Format(time.RFC3339), ErrQuizClosed)
	}

	// A lost create race leaves the winner's attempt in place; the second
	// pass finds and resumes it.
	for pass := 0; pass < 2; pass++ {
		prior, err := e.store.ListAttempts(ctx, exam.AttemptListOpts{QuizID: quizID, StudentID: studentID})
		if err != nil {
			return exam.Attempt{}, fmt.Errorf("list attempts: %w", err)
		}
		done := 0
		for _, a := range prior {
			if a.Status == exam.StatusInProgress {
				e.log(ctx, a.ID).Debug("resuming attempt")
				return a, nil
			}
			done++
		}
		if done >= quiz.AttemptsAllowed {
			return exam.Attempt{}, fmt.Errorf("quiz %s allows %d: %w", quizID, quiz.AttemptsAllowed, ErrNoAttemptsRemaining)
		}

		a := exam.Attempt{
			ID:        e.newID(),
			QuizID:    quizID,
			StudentID: studentID,
			Status:    exam.StatusInProgress,
			StartedAt: now,
		}
		err = e.store.CreateAttempt(ctx, a)
		if errors.Is(err, exam.ErrConflict) {
			continue
		}
		if err != nil {
			return exam.Attempt{}, fmt.Errorf("create attempt: %w", err)
		}
		e.metrics.Started()
		e.log(ctx, a.ID).WithFields(logrus.Fields{
			"quiz_id":    quizID,
			"student_id": studentID,
			"number":     done + 1,
		}).Info("attempt started")
		e.record(ctx, syncx.TypeAttemptStarted, a.ID, map[string]any{
			"quiz_id": quizID, "student_id": studentID, "started_at": now.UnixMilli(),
		})
		return a, nil
	}
	return exam.Attempt{}, fmt.Errorf("start attempt for %s/%s: %w", quizID, studentID, exam.ErrConflict)
}

// Submit moves an in_progress attempt to submitted, then auto-grades its
// answers and reconciles the score. Timed-out attempts are submitted by the
// caller through the same call.
//
// The transition is committed before grading starts. A grading failure is
// returned together with the submitted attempt; Recalculate or Finalize
// repair it later. When the transition itself fails the attempt is zero.
func (e *Engine) Submit(ctx context.Context, attemptID string, now time.Time, observedDurationSeconds *int) (exam.Attempt, []string, error) {
	a, err := e.GetAttempt(ctx, attemptID)
	if err != nil {
		return exam.Attempt{}, nil, err
	}
	if a.Status != exam.StatusInProgress {
		return exam.Attempt{}, nil, fmt.Errorf("submit attempt %s in status %s: %w", attemptID, a.Status, ErrInvalidState)
	}
	quiz, err := e.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return exam.Attempt{}, nil, fmt.Errorf("quiz %s: %w", a.QuizID, err)
	}

	next := a
	next.Status = exam.StatusSubmitted
	next.SubmittedAt = &now
	if observedDurationSeconds != nil && *observedDurationSeconds >= 0 {
		d := *observedDurationSeconds
		next.DurationSeconds = &d
	}
	if err := e.store.UpdateAttempt(ctx, next, exam.StatusInProgress); err != nil {
		if errors.Is(err, exam.ErrConflict) {
			return exam.Attempt{}, nil, fmt.Errorf("attempt %s already submitted: %w", attemptID, ErrInvalidState)
		}
		return exam.Attempt{}, nil, fmt.Errorf("submit attempt %s: %w", attemptID, err)
	}
	e.metrics.Submitted()

	log := e.log(ctx, attemptID)
	if dl := quiz.Deadline(a.StartedAt); !dl.IsZero() && now.After(dl) {
		log.WithField("overrun", now.Sub(dl).String()).Info("late submission accepted")
	} else {
		log.Info("attempt submitted")
	}
	e.record(ctx, syncx.TypeAttemptSubmitted, attemptID, map[string]any{
		"submitted_at": now.UnixMilli(), "duration_seconds": next.DurationSeconds,
	})

	warns, err := e.autograde(ctx, next, false, "")
	if err != nil {
		return next, warns, fmt.Errorf("auto-grade attempt %s: %w", attemptID, err)
	}
	_, more, err := e.recalculate(ctx, attemptID)
	warns = append(warns, more...)
	if err != nil {
		return next, warns, fmt.Errorf("reconcile attempt %s: %w", attemptID, err)
	}
	out, err := e.GetAttempt(ctx, attemptID)
	if err != nil {
		return next, warns, err
	}
	return out, warns, nil
}

type finalizeResult struct {
	attempt exam.Attempt
	warns   []string
}

// Finalize fills in every missing grade, reconciles the score and marks the
// attempt graded. Calling it again yields the same end state. Concurrent
// calls for one attempt share a single run.
func (e *Engine) Finalize(ctx context.Context, attemptID, graderID string) (exam.Attempt, []string, error) {
	v, err, _ := e.flight.Do("finalize:"+attemptID, func() (any, error) {
		a, w, err := e.finalize(ctx, attemptID, graderID)
		return finalizeResult{a, w}, err
	})
	res, _ := v.(finalizeResult)
	return res.attempt, res.warns, err
}

func (e *Engine) finalize(ctx context.Context, attemptID, graderID string) (exam.Attempt, []string, error) {
	a, err := e.gradable(ctx, attemptID)
	if err != nil {
		return a, nil, err
	}
	warns, err := e.autograde(ctx, a, true, graderID)
	if err != nil {
		return a, warns, fmt.Errorf("auto-grade attempt %s: %w", attemptID, err)
	}
	if err := e.zeroUngradedManual(ctx, a, graderID); err != nil {
		return a, warns, err
	}
	score, more, err := e.recalculate(ctx, attemptID)
	warns = append(warns, more...)
	if err != nil {
		return a, warns, fmt.Errorf("reconcile attempt %s: %w", attemptID, err)
	}

	if a.Status == exam.StatusSubmitted {
		next := a
		now := e.now()
		next.Status = exam.StatusGraded
		next.FinalizedAt = &now
		err := e.store.UpdateAttempt(ctx, next, exam.StatusSubmitted)
		switch {
		case errors.Is(err, exam.ErrConflict):
			// someone else finalized in between; fine as long as it is graded
			cur, gerr := e.GetAttempt(ctx, attemptID)
			if gerr != nil {
				return a, warns, gerr
			}
			if cur.Status != exam.StatusGraded {
				return cur, warns, fmt.Errorf("finalize attempt %s in status %s: %w", attemptID, cur.Status, ErrInvalidState)
			}
		case err != nil:
			return a, warns, fmt.Errorf("finalize attempt %s: %w", attemptID, err)
		default:
			e.record(ctx, syncx.TypeAttemptFinalized, attemptID, map[string]any{
				"grader_id": graderID, "score": score, "finalized_at": now.UnixMilli(),
			})
		}
	}
	e.log(ctx, attemptID).WithFields(logrus.Fields{"score": score, "grader_id": graderID}).Info("attempt finalized")

	out, err := e.GetAttempt(ctx, attemptID)
	return out, warns, err
}

// zeroUngradedManual gives manual-type answers without points an explicit 0.
// is_correct stays null.
func (e *Engine) zeroUngradedManual(ctx context.Context, a exam.Attempt, graderID string) error {
	idx, err := e.questionIndex(ctx, a.QuizID)
	if err != nil {
		return err
	}
	answers, err := e.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	now := e.now()
	for _, ans := range answers {
		q, ok := idx[ans.QuestionID]
		if !ok || q.Type.AutoGradable() || ans.PointsAwarded != nil || ans.IsCorrect != nil {
			continue
		}
		zero := 0.0
		ans.PointsAwarded = &zero
		ans.GradedBy = graderID
		ans.GradedAt = &now
		if err := e.store.UpdateAnswerGrade(ctx, ans); err != nil {
			return fmt.Errorf("grade answer %s: %w", ans.ID, err)
		}
	}
	return nil
}

// ListAttemptsForQuiz lists attempts of a quiz for graders.
func (e *Engine) ListAttemptsForQuiz(ctx context.Context, quizID string, opts exam.AttemptListOpts) ([]exam.Attempt, error) {
	if _, err := e.store.GetQuiz(ctx, quizID); err != nil {
		return nil, fmt.Errorf("quiz %s: %w", quizID, err)
	}
	opts.QuizID = quizID
	return e.store.ListAttempts(ctx, opts)
}

package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/grading"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

const autoGrader = "auto"

// autograde grades every auto-gradable answer of a. With onlyMissing set,
// answers that already carry points are left alone.
func (e *Engine) autograde(ctx context.Context, a exam.Attempt, onlyMissing bool, graderID string) ([]string, error) {
	idx, err := e.questionIndex(ctx, a.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := e.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if graderID == "" {
		graderID = autoGrader
	}

	opts := map[string][]exam.Option{}
	var warns []string
	now := e.now()
	for _, ans := range answers {
		q, ok := idx[ans.QuestionID]
		if !ok || !q.Type.AutoGradable() {
			continue
		}
		if onlyMissing && ans.PointsAwarded != nil {
			continue
		}
		o, ok := opts[q.ID]
		if !ok {
			if o, err = e.store.ListOptions(ctx, q.ID); err != nil {
				return warns, fmt.Errorf("list options of %s: %w", q.ID, err)
			}
			opts[q.ID] = o
		}
		v, err := e.grader.Grade(q, o, ans.Payload)
		if err != nil {
			return warns, err
		}
		warns = append(warns, v.Warnings...)

		ans.IsCorrect = &v.IsCorrect
		ans.PointsAwarded = &v.Points
		ans.GradedBy = graderID
		ans.GradedAt = &now
		if err := e.store.UpdateAnswerGrade(ctx, ans); err != nil {
			return warns, fmt.Errorf("grade answer %s: %w", ans.ID, err)
		}
	}
	e.warn(ctx, a.ID, "autograde", warns)
	return warns, nil
}

type recalcResult struct {
	score float64
	warns []string
}

// Recalculate recomputes the attempt score from its answers and repairs
// grading fields that contradict each other. It is the only writer of
// Attempt.score and may run any number of times.
func (e *Engine) Recalculate(ctx context.Context, attemptID string) (float64, []string, error) {
	v, err, _ := e.flight.Do("recalc:"+attemptID, func() (any, error) {
		s, w, err := e.recalculate(ctx, attemptID)
		return recalcResult{s, w}, err
	})
	res, _ := v.(recalcResult)
	return res.score, res.warns, err
}

func (e *Engine) recalculate(ctx context.Context, attemptID string) (float64, []string, error) {
	a, err := e.gradable(ctx, attemptID)
	if err != nil {
		return 0, nil, err
	}
	idx, err := e.questionIndex(ctx, a.QuizID)
	if err != nil {
		return 0, nil, err
	}
	answers, err := e.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return 0, nil, fmt.Errorf("list answers: %w", err)
	}

	var (
		score    float64
		warns    []string
		repaired int
	)
	for _, ans := range answers {
		var q *exam.Question
		if found, ok := idx[ans.QuestionID]; ok {
			q = &found
		}
		r := grading.Resolve(q, ans)
		warns = append(warns, r.Warnings...)
		score += r.Points
		if !r.Changed {
			continue
		}
		ans.IsCorrect = r.IsCorrect
		ans.PointsAwarded = r.Awarded
		if err := e.store.UpdateAnswerGrade(ctx, ans); err != nil {
			return 0, warns, fmt.Errorf("repair answer %s: %w", ans.ID, err)
		}
		repaired++
	}

	if err := e.store.SetAttemptScore(ctx, attemptID, score); err != nil {
		return 0, warns, fmt.Errorf("store score of %s: %w", attemptID, err)
	}
	e.metrics.Recalculated()
	e.warn(ctx, attemptID, "reconcile", warns)

	prev := "null"
	if a.Score != nil {
		prev = fmt.Sprint(*a.Score)
	}
	e.log(ctx, attemptID).WithFields(logrus.Fields{
		"score":    score,
		"previous": prev,
		"repaired": repaired,
	}).Debug("score reconciled")
	if a.Score == nil || *a.Score != score || repaired > 0 {
		e.record(ctx, syncx.TypeScoreReconciled, attemptID, map[string]any{
			"score": score, "repaired": repaired, "warnings": len(warns),
		})
	}
	return score, warns, nil
}

package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/grading"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

// ManualGrade is a grader's decision for one answer.
type ManualGrade struct {
	Points  float64
	Comment *string
}

// GradeAnswer records a grader's points for one answer. Points are clamped
// into [0, question points]; NaN counts as 0. Full points mark the answer
// correct, zero marks it incorrect, anything between leaves is_correct
// unset. The attempt score is not touched: run Recalculate or Finalize
// after grading.
func (e *Engine) GradeAnswer(ctx context.Context, answerID string, points float64, comment *string, graderID string) (exam.Answer, error) {
	ans, err := e.store.GetAnswerByID(ctx, answerID)
	if err != nil {
		return exam.Answer{}, fmt.Errorf("answer %s: %w", answerID, err)
	}
	a, err := e.gradable(ctx, ans.AttemptID)
	if err != nil {
		return exam.Answer{}, err
	}
	q, err := e.question(ctx, a.QuizID, ans.QuestionID)
	if err != nil {
		return exam.Answer{}, err
	}
	return e.grade(ctx, q, ans, ManualGrade{Points: points, Comment: comment}, graderID)
}

func (e *Engine) grade(ctx context.Context, q exam.Question, ans exam.Answer, g ManualGrade, graderID string) (exam.Answer, error) {
	max, _ := q.MaxPoints()
	p := grading.Clamp(g.Points, max)
	var correct *bool
	switch p {
	case max:
		t := true
		correct = &t
	case 0:
		f := false
		correct = &f
	}
	now := e.now()
	ans.PointsAwarded = &p
	ans.IsCorrect = correct
	if g.Comment != nil {
		c := *g.Comment
		ans.Comment = &c
	}
	ans.GradedBy = graderID
	ans.GradedAt = &now
	if err := e.store.UpdateAnswerGrade(ctx, ans); err != nil {
		return exam.Answer{}, fmt.Errorf("grade answer %s: %w", ans.ID, err)
	}

	log := e.log(ctx, ans.AttemptID).WithFields(logrus.Fields{
		"answer_id": ans.ID,
		"points":    p,
		"grader_id": graderID,
	})
	if p != g.Points {
		log = log.WithField("requested", g.Points)
	}
	log.Info("answer graded")
	e.record(ctx, syncx.TypeAnswerGraded, ans.AttemptID, map[string]any{
		"answer_id": ans.ID, "question_id": ans.QuestionID, "points": p, "grader_id": graderID,
	})
	return ans, nil
}

// GradeAnswers grades several answers of one attempt, keyed by question id,
// then reconciles once, or finalizes when finalize is set. Every answer is
// looked up before the first write, so an unknown question grades nothing.
func (e *Engine) GradeAnswers(ctx context.Context, attemptID string, grades map[string]ManualGrade, graderID string, finalize bool) (exam.Attempt, []string, error) {
	a, err := e.gradable(ctx, attemptID)
	if err != nil {
		return a, nil, err
	}
	idx, err := e.questionIndex(ctx, a.QuizID)
	if err != nil {
		return a, nil, err
	}

	qids := make([]string, 0, len(grades))
	for qid := range grades {
		qids = append(qids, qid)
	}
	sort.Strings(qids)

	type job struct {
		q   exam.Question
		ans exam.Answer
	}
	jobs := make([]job, 0, len(qids))
	for _, qid := range qids {
		q, ok := idx[qid]
		if !ok {
			return a, nil, fmt.Errorf("question %s in quiz %s: %w", qid, a.QuizID, ErrNotFound)
		}
		ans, err := e.GetAnswer(ctx, attemptID, qid)
		if err != nil {
			return a, nil, err
		}
		jobs = append(jobs, job{q, ans})
	}
	for _, j := range jobs {
		if _, err := e.grade(ctx, j.q, j.ans, grades[j.q.ID], graderID); err != nil {
			return a, nil, err
		}
	}

	if finalize {
		return e.Finalize(ctx, attemptID, graderID)
	}
	_, warns, err := e.Recalculate(ctx, attemptID)
	if err != nil {
		return a, warns, err
	}
	out, err := e.GetAttempt(ctx, attemptID)
	return out, warns, err
}

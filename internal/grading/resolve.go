package grading

import (
	"fmt"
	"math"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// AutoGradable reports whether Grade can score answers of type t.
func AutoGradable(t exam.QuestionType) bool { return t.AutoGradable() }

// Resolution is what one stored answer contributes to the attempt score.
// When Changed is set, IsCorrect and Points are the repaired grading fields
// that must be written back.
type Resolution struct {
	Points    float64
	Changed   bool
	IsCorrect *bool
	Awarded   *float64
	Warnings  []string
}

// Resolve reconciles the grading fields of a stored answer with its
// question. q is nil when the question no longer exists.
//
// Valid points that agree with is_correct are kept. For auto-gradable
// types a set is_correct wins over disagreeing points. Missing or invalid
// points are derived from is_correct when it is set; otherwise invalid
// points are clamped into range and missing ones count as zero.
func Resolve(q *exam.Question, a exam.Answer) Resolution {
	if q == nil {
		return Resolution{Warnings: []string{fmt.Sprintf("answer %s: question %s not found, counted as 0", a.ID, a.QuestionID)}}
	}
	max, clamped := q.MaxPoints()
	var warns []string
	if clamped {
		warns = append(warns, fmt.Sprintf("question %s: points %v invalid, using %v", q.ID, q.Points, max))
	}
	derived := func(c bool) float64 {
		if c {
			return max
		}
		return 0
	}
	rewrite := func(p float64) Resolution {
		ic := a.IsCorrect
		return Resolution{Points: p, Changed: true, IsCorrect: ic, Awarded: &p, Warnings: warns}
	}

	switch {
	case a.PointsAwarded == nil && a.IsCorrect == nil:
		return Resolution{Warnings: warns}

	case a.PointsAwarded == nil:
		return rewrite(derived(*a.IsCorrect))

	case !inRange(*a.PointsAwarded, max):
		p := *a.PointsAwarded
		if a.IsCorrect != nil {
			warns = append(warns, fmt.Sprintf("answer %s: points %v out of range, derived from is_correct", a.ID, p))
			return rewrite(derived(*a.IsCorrect))
		}
		warns = append(warns, fmt.Sprintf("answer %s: points %v out of range [0, %v], clamped", a.ID, p, max))
		return rewrite(Clamp(p, max))

	case a.IsCorrect != nil && q.Type.AutoGradable():
		want := derived(*a.IsCorrect)
		if *a.PointsAwarded != want {
			warns = append(warns, fmt.Sprintf("answer %s: points %v disagree with is_correct=%v, using %v",
				a.ID, *a.PointsAwarded, *a.IsCorrect, want))
			return rewrite(want)
		}
	}
	return Resolution{Points: *a.PointsAwarded, Warnings: warns}
}

// Clamp bounds p into [0, max]; NaN becomes 0.
func Clamp(p, max float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > max:
		return max
	}
	return p
}

func inRange(p, max float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0 && p <= max
}

package grading

import (
	"fmt"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// Verdict is the outcome of auto-grading one answer.
type Verdict struct {
	IsCorrect bool
	Points    float64
	Warnings  []string // data-quality notes; never fatal
}

// Strategy decides correctness for one question type.
type Strategy interface {
	Correct(q exam.Question, opts []exam.Option, p exam.Payload) (bool, []string)
}

type Grader struct {
	strategies map[exam.QuestionType]Strategy
}

// NewGrader installs the built-in strategies. short_text has none: it is
// never auto-graded.
func NewGrader() *Grader {
	return &Grader{
		strategies: map[exam.QuestionType]Strategy{
			exam.TypeMCQSingle: mcqSingleStrategy{},
			exam.TypeMCQMulti:  mcqMultiStrategy{},
			exam.TypeTrueFalse: trueFalseStrategy{},
			exam.TypeNumeric:   numericStrategy{},
		},
	}
}

var defaultGrader = NewGrader()

// Grade auto-grades an answer with the built-in strategies.
func Grade(q exam.Question, opts []exam.Option, p exam.Payload) (Verdict, error) {
	return defaultGrader.Grade(q, opts, p)
}

// Grade returns an error only for question types without a strategy. Bad
// authoring data and mismatched payloads grade as incorrect with a warning.
func (g *Grader) Grade(q exam.Question, opts []exam.Option, p exam.Payload) (Verdict, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Verdict{}, fmt.Errorf("question %s: type %q is not auto-gradable", q.ID, q.Type)
	}
	max, clamped := q.MaxPoints()
	var v Verdict
	if clamped {
		v.Warnings = append(v.Warnings, fmt.Sprintf("question %s: points %v invalid, using %v", q.ID, q.Points, max))
	}
	if !exam.Fits(q.Type, p) {
		v.Warnings = append(v.Warnings, fmt.Sprintf("question %s: payload does not match type %s", q.ID, q.Type))
		return v, nil
	}
	correct, notes := s.Correct(q, opts, p)
	v.Warnings = append(v.Warnings, notes...)
	v.IsCorrect = correct
	if correct {
		v.Points = max
	}
	return v, nil
}

// --- Strategies ---

type mcqSingleStrategy struct{}

func (mcqSingleStrategy) Correct(q exam.Question, opts []exam.Option, p exam.Payload) (bool, []string) {
	sel := p.(exam.Selection)
	keys := correctIDs(opts)
	if len(keys) != 1 {
		return false, []string{fmt.Sprintf("question %s: mcq_single has %d correct options", q.ID, len(keys))}
	}
	if len(sel.OptionIDs) != 1 {
		return false, nil
	}
	_, ok := keys[sel.OptionIDs[0]]
	return ok, nil
}

// mcqMultiStrategy is all-or-nothing: the selected set must equal the
// correct set exactly.
type mcqMultiStrategy struct{}

func (mcqMultiStrategy) Correct(q exam.Question, opts []exam.Option, p exam.Payload) (bool, []string) {
	sel := p.(exam.Selection)
	keys := correctIDs(opts)
	if len(keys) == 0 {
		return false, []string{fmt.Sprintf("question %s: mcq_multi has no correct options", q.ID)}
	}
	return setEqual(keys, toSet(sel.OptionIDs)), nil
}

// trueFalseStrategy compares against the value implied by the correct
// option's order_index. Option text is never consulted.
type trueFalseStrategy struct{}

func (trueFalseStrategy) Correct(q exam.Question, opts []exam.Option, p exam.Payload) (bool, []string) {
	b := p.(exam.Boolean)
	var (
		want  bool
		found int
	)
	for _, o := range opts {
		if !o.IsCorrect {
			continue
		}
		v, ok := o.BoolValue()
		if !ok {
			return false, []string{fmt.Sprintf("question %s: true_false option %s has order_index %d", q.ID, o.ID, o.OrderIndex)}
		}
		want = v
		found++
	}
	if found != 1 {
		return false, []string{fmt.Sprintf("question %s: true_false has %d correct options", q.ID, found)}
	}
	return b.Value == want, nil
}

// helpers

func correctIDs(opts []exam.Option) map[string]struct{} {
	m := make(map[string]struct{}, 1)
	for _, o := range opts {
		if o.IsCorrect {
			m[o.ID] = struct{}{}
		}
	}
	return m
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

package grading_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/grading"
)

func opts(correct ...string) []exam.Option {
	all := []string{"a", "b", "c", "d"}
	is := map[string]bool{}
	for _, c := range correct {
		is[c] = true
	}
	out := make([]exam.Option, 0, len(all))
	for i, id := range all {
		out = append(out, exam.Option{ID: id, QuestionID: "q", Text: id, IsCorrect: is[id], OrderIndex: i})
	}
	return out
}

func TestGradeMCQSingle(t *testing.T) {
	q := exam.Question{ID: "q", Type: exam.TypeMCQSingle, Points: 2}
	cases := []struct {
		name string
		sel  []string
		want bool
	}{
		{"correct", []string{"b"}, true},
		{"wrong", []string{"a"}, false},
		{"empty", nil, false},
		{"two selected", []string{"b", "a"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := grading.Grade(q, opts("b"), exam.Selection{OptionIDs: tc.sel})
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.IsCorrect)
			if tc.want {
				assert.Equal(t, 2.0, v.Points)
			} else {
				assert.Zero(t, v.Points)
			}
			assert.Empty(t, v.Warnings)
		})
	}
}

func TestGradeMCQSingleBadKey(t *testing.T) {
	q := exam.Question{ID: "q", Type: exam.TypeMCQSingle, Points: 1}
	v, err := grading.Grade(q, opts("a", "b"), exam.Selection{OptionIDs: []string{"a"}})
	require.NoError(t, err)
	assert.False(t, v.IsCorrect)
	assert.Len(t, v.Warnings, 1)

	v, err = grading.Grade(q, opts(), exam.Selection{OptionIDs: []string{"a"}})
	require.NoError(t, err)
	assert.False(t, v.IsCorrect)
	assert.Len(t, v.Warnings, 1)
}

func TestGradeMCQMultiIsExact(t *testing.T) {
	q := exam.Question{ID: "q", Type: exam.TypeMCQMulti, Points: 3}
	key := opts("a", "c")

	v, _ := grading.Grade(q, key, exam.Selection{OptionIDs: []string{"c", "a"}})
	assert.True(t, v.IsCorrect)
	assert.Equal(t, 3.0, v.Points)

	for _, sel := range [][]string{{"a"}, {"a", "b", "c"}, {"b", "d"}, nil} {
		v, _ := grading.Grade(q, key, exam.Selection{OptionIDs: sel})
		assert.False(t, v.IsCorrect, "selection %v", sel)
		assert.Zero(t, v.Points, "selection %v", sel)
	}
}

func TestGradeTrueFalseUsesOrderIndex(t *testing.T) {
	q := exam.Question{ID: "q", Type: exam.TypeTrueFalse, Points: 1}
	// option text is deliberately misleading
	tf := []exam.Option{
		{ID: "t", Text: "False", OrderIndex: 0, IsCorrect: true},
		{ID: "f", Text: "True", OrderIndex: 1},
	}
	v, _ := grading.Grade(q, tf, exam.Boolean{Value: true})
	assert.True(t, v.IsCorrect)
	v, _ = grading.Grade(q, tf, exam.Boolean{Value: false})
	assert.False(t, v.IsCorrect)

	tf[0].IsCorrect, tf[1].IsCorrect = false, true
	v, _ = grading.Grade(q, tf, exam.Boolean{Value: false})
	assert.True(t, v.IsCorrect)
}

func TestGradeTrueFalseWithoutKeyWarns(t *testing.T) {
	q := exam.Question{ID: "q", Type: exam.TypeTrueFalse, Points: 1}
	v, _ := grading.Grade(q, []exam.Option{{ID: "t", OrderIndex: 0}, {ID: "f", OrderIndex: 1}}, exam.Boolean{Value: true})
	assert.False(t, v.IsCorrect)
	assert.NotEmpty(t, v.Warnings)
}

func TestGradeNumeric(t *testing.T) {
	tol := 0.5
	q := exam.Question{ID: "q", Type: exam.TypeNumeric, Points: 4, CorrectValue: "10", Tolerance: &tol}
	cases := map[string]bool{
		"10":      true,
		"10.5":    true,
		" 9.6 cm": true,
		"10.51":   false,
		"eleven":  false,
		"":        false,
	}
	for raw, want := range cases {
		v, err := grading.Grade(q, nil, exam.Number{Raw: raw})
		require.NoError(t, err)
		assert.Equal(t, want, v.IsCorrect, "raw %q", raw)
	}
}

func TestGradeNumericKeyFromOption(t *testing.T) {
	q := exam.Question{ID: "q", Type: exam.TypeNumeric, Points: 1}
	o := []exam.Option{{ID: "o", Text: "3.14", IsCorrect: true}}
	v, _ := grading.Grade(q, o, exam.Number{Raw: "3.14"})
	assert.True(t, v.IsCorrect)
	v, _ = grading.Grade(q, o, exam.Number{Raw: "3.1400001"})
	assert.False(t, v.IsCorrect, "tolerance defaults to exact")

	v, _ = grading.Grade(exam.Question{ID: "q", Type: exam.TypeNumeric, Points: 1, CorrectValue: "n/a"}, nil, exam.Number{Raw: "1"})
	assert.False(t, v.IsCorrect)
	assert.NotEmpty(t, v.Warnings)
}

func TestGradeClampsPointsWithWarning(t *testing.T) {
	for _, p := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		q := exam.Question{ID: "q", Type: exam.TypeMCQSingle, Points: p}
		v, err := grading.Grade(q, opts("a"), exam.Selection{OptionIDs: []string{"a"}})
		require.NoError(t, err)
		assert.Equal(t, 1.0, v.Points)
		assert.Len(t, v.Warnings, 1)
	}
}

func TestGradeMismatchedPayload(t *testing.T) {
	q := exam.Question{ID: "q", Type: exam.TypeTrueFalse, Points: 1}
	v, err := grading.Grade(q, opts("a"), exam.Text{Value: "true"})
	require.NoError(t, err)
	assert.False(t, v.IsCorrect)
	assert.NotEmpty(t, v.Warnings)
}

func TestGradeShortTextIsNotAutoGradable(t *testing.T) {
	assert.False(t, grading.AutoGradable(exam.TypeShortText))
	_, err := grading.Grade(exam.Question{ID: "q", Type: exam.TypeShortText}, nil, exam.Text{Value: "x"})
	assert.Error(t, err)
}

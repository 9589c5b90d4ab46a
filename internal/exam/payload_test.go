package exam_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

func TestDecodePayload(t *testing.T) {
	cases := []struct {
		typ  exam.QuestionType
		body string
		want exam.Payload
	}{
		{exam.TypeMCQSingle, `{"selected":"o1"}`, exam.Selection{OptionIDs: []string{"o1"}}},
		{exam.TypeMCQMulti, `{"selected":["a"," b ",""]}`, exam.Selection{OptionIDs: []string{"a", "b"}}},
		{exam.TypeMCQSingle, `{"selected":null}`, exam.Selection{}},
		{exam.TypeTrueFalse, `{"value":false}`, exam.Boolean{Value: false}},
		{exam.TypeNumeric, `{"number":11}`, exam.Number{Raw: "11"}},
		{exam.TypeNumeric, `{"number":"11.5 cm"}`, exam.Number{Raw: "11.5 cm"}},
		{exam.TypeShortText, `{"text":"photosynthesis"}`, exam.Text{Value: "photosynthesis"}},
	}
	for _, tc := range cases {
		got, err := exam.DecodePayload(tc.typ, json.RawMessage(tc.body))
		require.NoError(t, err, tc.body)
		assert.Equal(t, tc.want, got, tc.body)
		assert.True(t, exam.Fits(tc.typ, got))
	}
}

func TestDecodePayloadRejectsMismatch(t *testing.T) {
	bad := map[exam.QuestionType]string{
		exam.TypeMCQSingle: `{"value":true}`,
		exam.TypeTrueFalse: `{"value":"yes"}`,
		exam.TypeNumeric:   `{"number":[1]}`,
		exam.TypeShortText: `{"text":3}`,
		"essay":            `{"text":"x"}`,
	}
	for typ, body := range bad {
		_, err := exam.DecodePayload(typ, json.RawMessage(body))
		assert.ErrorIs(t, err, exam.ErrInvalidPayload, "%s %s", typ, body)
	}
	_, err := exam.DecodePayload(exam.TypeNumeric, json.RawMessage(`not json`))
	assert.ErrorIs(t, err, exam.ErrInvalidPayload)
}

func TestStoredPayloadKeepsVariant(t *testing.T) {
	for _, p := range []exam.Payload{
		exam.Selection{OptionIDs: []string{"x", "y"}},
		exam.Boolean{Value: true},
		exam.Number{Raw: "1e3"},
		exam.Text{Value: "é"},
	} {
		s, err := exam.EncodePayload(p)
		require.NoError(t, err)
		got, err := exam.ParsePayload(s)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := exam.EncodePayload(nil)
	assert.ErrorIs(t, err, exam.ErrInvalidPayload)
}

func TestParseFloatLoose(t *testing.T) {
	v, ok := exam.ParseFloatLoose(" 3.5 kg")
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)
	_, ok = exam.ParseFloatLoose("NaN")
	assert.False(t, ok)
	_, ok = exam.ParseFloatLoose("three")
	assert.False(t, ok)
}

func TestQuizWindowAndDefaults(t *testing.T) {
	q := exam.NormalizeQuiz(exam.Quiz{AttemptsAllowed: -3, ResultsPolicy: "later"})
	assert.Equal(t, 1, q.AttemptsAllowed)
	assert.Equal(t, exam.ResultsAfterClose, q.ResultsPolicy)
	assert.True(t, q.Open(t0), "no window means open")
	assert.True(t, q.Deadline(t0).IsZero())

	limit := 30
	q.TimeLimitMinutes = &limit
	assert.Equal(t, t0.Add(30*time.Minute), q.Deadline(t0))
}

func TestOptionBoolValue(t *testing.T) {
	v, ok := exam.Option{OrderIndex: 0}.BoolValue()
	assert.True(t, ok)
	assert.True(t, v)
	v, ok = exam.Option{OrderIndex: 1}.BoolValue()
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = exam.Option{OrderIndex: 2}.BoolValue()
	assert.False(t, ok)
}

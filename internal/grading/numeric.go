package grading

import (
	"fmt"
	"math"
	"strings"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// numericStrategy accepts |submitted - key| <= tolerance. The key is the
// question's correct_value, or the text of its correct option when unset.
type numericStrategy struct{}

func (numericStrategy) Correct(q exam.Question, opts []exam.Option, p exam.Payload) (bool, []string) {
	n := p.(exam.Number)
	keyText := strings.TrimSpace(q.CorrectValue)
	if keyText == "" {
		for _, o := range opts {
			if o.IsCorrect {
				keyText = o.Text
				break
			}
		}
	}
	key, ok := exam.ParseFloatLoose(keyText)
	if !ok {
		return false, []string{fmt.Sprintf("question %s: numeric key %q is not a number", q.ID, keyText)}
	}
	got, ok := n.Float()
	if !ok {
		return false, nil
	}
	return math.Abs(got-key) <= q.ToleranceOrZero(), nil
}

package exam

import (
	"math"
	"time"
)

type QuestionType string

const (
	TypeMCQSingle QuestionType = "mcq_single"
	TypeMCQMulti  QuestionType = "mcq_multi"
	TypeTrueFalse QuestionType = "true_false"
	TypeNumeric   QuestionType = "numeric"
	TypeShortText QuestionType = "short_text"
)

// AutoGradable reports whether answers of this type can be graded by
// comparison against stored keys.
func (t QuestionType) AutoGradable() bool {
	switch t {
	case TypeMCQSingle, TypeMCQMulti, TypeTrueFalse, TypeNumeric:
		return true
	}
	return false
}

func (t QuestionType) Valid() bool {
	return t.AutoGradable() || t == TypeShortText
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusGraded     Status = "graded"
)

type ResultsPolicy string

const (
	ResultsImmediate  ResultsPolicy = "immediate"
	ResultsAfterClose ResultsPolicy = "after_close"
	ResultsNever      ResultsPolicy = "never"
)

// NormalizeResultsPolicy maps unset or unknown values to after_close.
func NormalizeResultsPolicy(p ResultsPolicy) ResultsPolicy {
	switch p {
	case ResultsImmediate, ResultsNever:
		return p
	}
	return ResultsAfterClose
}

type Quiz struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	TimeLimitMinutes *int          `json:"time_limit_minutes,omitempty"`
	AttemptsAllowed  int           `json:"attempts_allowed"`
	StartAt          *time.Time    `json:"start_at,omitempty"`
	EndAt            *time.Time    `json:"end_at,omitempty"`
	ResultsPolicy    ResultsPolicy `json:"show_results_policy"`
}

// NormalizeQuiz applies the defaults rows may be missing: at least one
// attempt, and after_close when the results policy is unset or unknown.
func NormalizeQuiz(q Quiz) Quiz {
	if q.AttemptsAllowed < 1 {
		q.AttemptsAllowed = 1
	}
	q.ResultsPolicy = NormalizeResultsPolicy(q.ResultsPolicy)
	return q
}

// Open reports whether now falls inside the quiz window. Unset bounds are open.
func (q Quiz) Open(now time.Time) bool {
	if q.StartAt != nil && now.Before(*q.StartAt) {
		return false
	}
	if q.EndAt != nil && now.After(*q.EndAt) {
		return false
	}
	return true
}

// Deadline is the latest submit time for an attempt started at startedAt,
// or zero when the quiz has no time limit.
func (q Quiz) Deadline(startedAt time.Time) time.Time {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return time.Time{}
	}
	return startedAt.Add(time.Duration(*q.TimeLimitMinutes) * time.Minute)
}

type Question struct {
	ID           string       `json:"id"`
	QuizID       string       `json:"quiz_id"`
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt,omitempty"`
	Points       float64      `json:"points"`
	Tolerance    *float64     `json:"tolerance,omitempty"`     // numeric only
	CorrectValue string       `json:"correct_value,omitempty"` // numeric only; falls back to the correct option's text
	OrderIndex   int          `json:"order_index"`
}

// MaxPoints is the credit a correct answer earns. Missing, zero, negative or
// non-finite points are clamped to 1; clamped reports whether that happened.
func (q Question) MaxPoints() (points float64, clamped bool) {
	if q.Points <= 0 || math.IsNaN(q.Points) || math.IsInf(q.Points, 0) {
		return 1, true
	}
	return q.Points, false
}

// ToleranceOrZero returns the numeric tolerance, 0 when absent or invalid.
func (q Question) ToleranceOrZero() float64 {
	if q.Tolerance == nil {
		return 0
	}
	t := *q.Tolerance
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}
	return t
}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	OrderIndex int    `json:"order_index"`
}

// BoolValue is the truth value a true/false option stands for:
// order_index 0 is "true", 1 is "false". Anything else has no value.
func (o Option) BoolValue() (value, ok bool) {
	switch o.OrderIndex {
	case 0:
		return true, true
	case 1:
		return false, true
	}
	return false, false
}

type Attempt struct {
	ID              string     `json:"id"`
	QuizID          string     `json:"quiz_id"`
	StudentID       string     `json:"student_id"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	Score           *float64   `json:"score"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
}

type Answer struct {
	ID            string     `json:"id"`
	AttemptID     string     `json:"attempt_id"`
	QuestionID    string     `json:"question_id"`
	Payload       Payload    `json:"payload"`
	IsCorrect     *bool      `json:"is_correct"`
	PointsAwarded *float64   `json:"points_awarded"`
	Comment       *string    `json:"comment,omitempty"`
	GradedBy      string     `json:"graded_by,omitempty"`
	GradedAt      *time.Time `json:"graded_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QuizBundle is a quiz with its questions and options, the unit of import.
type QuizBundle struct {
	Quiz      Quiz                `json:"quiz"`
	Questions []Question          `json:"questions"`
	Options   map[string][]Option `json:"options"` // question id -> options
}

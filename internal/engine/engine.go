// Package engine runs the quiz attempt lifecycle: starting and resuming
// attempts, saving answers, submission with auto-grading, manual grading,
// score reconciliation, finalization and result visibility.
//
// The engine keeps no state between calls. Everything shared lives in the
// exam.Store, which is also where races are decided.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mind-engage/mindengage-grading/internal/config"
	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/grading"
	"github.com/mind-engage/mindengage-grading/internal/metrics"
)

var (
	ErrQuizClosed          = errors.New("quiz is closed")
	ErrNoAttemptsRemaining = errors.New("no attempts remaining")
	ErrInvalidState        = errors.New("invalid attempt state")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = exam.ErrNotFound
)

// EventSink receives audit events. *syncx.EventRepo implements it.
type EventSink interface {
	Record(ctx context.Context, typ, key string, data any) error
}

type Engine struct {
	store   exam.Store
	events  EventSink
	grader  *grading.Grader
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
	flight  singleflight.Group
}

type Option func(*Engine)

func WithEvents(s EventSink) Option        { return func(e *Engine) { e.events = s } }
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }
func WithGrader(g *grading.Grader) Option   { return func(e *Engine) { e.grader = g } }

// WithClock sets the clock used for finalized_at, graded_at and updated_at.
// Start and Submit take their time from the caller.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

func New(store exam.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		grader: grading.NewGrader(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) log(ctx context.Context, attemptID string) *logrus.Entry {
	return config.WithContext(ctx).WithField("attempt_id", attemptID)
}

// record appends an audit event. A failing event log never fails the
// operation that produced the event.
func (e *Engine) record(ctx context.Context, typ, key string, data any) {
	if e.events == nil {
		return
	}
	if err := e.events.Record(ctx, typ, key, data); err != nil {
		config.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"event": typ,
			"key":   key,
		}).Error("append event failed")
	}
}

func (e *Engine) warn(ctx context.Context, attemptID, source string, warns []string) {
	if len(warns) == 0 {
		return
	}
	log := e.log(ctx, attemptID).WithField("source", source)
	for _, w := range warns {
		log.Warn(w)
	}
	e.metrics.Warnings(source, len(warns))
}

// GetAttempt returns one attempt.
func (e *Engine) GetAttempt(ctx context.Context, attemptID string) (exam.Attempt, error) {
	a, err := e.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return exam.Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, err)
	}
	return a, nil
}

// gradable loads an attempt that is past submission.
func (e *Engine) gradable(ctx context.Context, attemptID string) (exam.Attempt, error) {
	a, err := e.GetAttempt(ctx, attemptID)
	if err != nil {
		return a, err
	}
	if a.Status == exam.StatusInProgress {
		return a, fmt.Errorf("attempt %s is %s: %w", attemptID, a.Status, ErrInvalidState)
	}
	return a, nil
}

// questionIndex maps question ids of a quiz to the questions.
func (e *Engine) questionIndex(ctx context.Context, quizID string) (map[string]exam.Question, error) {
	qs, err := e.store.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions of quiz %s: %w", quizID, err)
	}
	idx := make(map[string]exam.Question, len(qs))
	for _, q := range qs {
		idx[q.ID] = q
	}
	return idx, nil
}

func (e *Engine) question(ctx context.Context, quizID, questionID string) (exam.Question, error) {
	idx, err := e.questionIndex(ctx, quizID)
	if err != nil {
		return exam.Question{}, err
	}
	q, ok := idx[questionID]
	if !ok {
		return exam.Question{}, fmt.Errorf("question %s in quiz %s: %w", questionID, quizID, ErrNotFound)
	}
	return q, nil
}

package exam_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grading/internal/db"
	"github.com/mind-engage/mindengage-grading/internal/exam"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func sqliteStore(t *testing.T) exam.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return exam.NewSQLStore(h, string(db.DriverSQLite))
}

// forEachStore runs the same checks against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s exam.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, exam.NewInMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, sqliteStore(t)) })
}

func seed(t *testing.T, s exam.Store) {
	t.Helper()
	tol := 0.5
	end := t0.Add(24 * time.Hour)
	require.NoError(t, s.PutQuiz(context.Background(), exam.QuizBundle{
		Quiz: exam.Quiz{ID: "qz", Title: "Units", EndAt: &end},
		Questions: []exam.Question{
			{ID: "q2", Type: exam.TypeNumeric, Points: 2, Tolerance: &tol, CorrectValue: "9.81", OrderIndex: 1},
			{ID: "q1", Type: exam.TypeMCQSingle, Points: 1, OrderIndex: 0},
		},
		Options: map[string][]exam.Option{
			"q1": {{ID: "b", Text: "kg", OrderIndex: 1}, {ID: "a", Text: "m", IsCorrect: true, OrderIndex: 0}},
		},
	}))
}

func newAttempt(id, student string) exam.Attempt {
	return exam.Attempt{ID: id, QuizID: "qz", StudentID: student, Status: exam.StatusInProgress, StartedAt: t0}
}

func TestQuestionBank(t *testing.T) {
	forEachStore(t, func(t *testing.T, s exam.Store) {
		ctx := context.Background()
		seed(t, s)

		q, err := s.GetQuiz(ctx, "qz")
		require.NoError(t, err)
		assert.Equal(t, 1, q.AttemptsAllowed)
		assert.Equal(t, exam.ResultsAfterClose, q.ResultsPolicy)
		require.NotNil(t, q.EndAt)
		assert.True(t, q.EndAt.Equal(t0.Add(24*time.Hour)))

		qs, err := s.ListQuestions(ctx, "qz")
		require.NoError(t, err)
		require.Len(t, qs, 2)
		assert.Equal(t, "q1", qs[0].ID)
		assert.Equal(t, "qz", qs[1].QuizID)
		assert.Equal(t, 0.5, qs[1].ToleranceOrZero())
		assert.Equal(t, "9.81", qs[1].CorrectValue)

		opts, err := s.ListOptions(ctx, "q1")
		require.NoError(t, err)
		require.Len(t, opts, 2)
		assert.Equal(t, "a", opts[0].ID)
		assert.True(t, opts[0].IsCorrect)

		_, err = s.GetQuiz(ctx, "missing")
		assert.ErrorIs(t, err, exam.ErrNotFound)
	})
}

func TestSecondInProgressAttemptConflicts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s exam.Store) {
		ctx := context.Background()
		seed(t, s)
		require.NoError(t, s.CreateAttempt(ctx, newAttempt("a1", "stu")))
		assert.ErrorIs(t, s.CreateAttempt(ctx, newAttempt("a2", "stu")), exam.ErrConflict)

		// a submitted attempt does not block a new one
		done := newAttempt("a1", "stu")
		done.Status = exam.StatusSubmitted
		now := t0.Add(time.Minute)
		done.SubmittedAt = &now
		require.NoError(t, s.UpdateAttempt(ctx, done, exam.StatusInProgress))
		assert.NoError(t, s.CreateAttempt(ctx, newAttempt("a2", "stu")))
	})
}

func TestConcurrentCreateAttempt(t *testing.T) {
	forEachStore(t, func(t *testing.T, s exam.Store) {
		ctx := context.Background()
		seed(t, s)
		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.CreateAttempt(ctx, newAttempt(fmt.Sprintf("a%d", i), "stu"))
			}(i)
		}
		wg.Wait()
		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, exam.ErrConflict)
			}
		}
		assert.Equal(t, 1, ok)
	})
}

func TestUpdateAttemptIsConditional(t *testing.T) {
	forEachStore(t, func(t *testing.T, s exam.Store) {
		ctx := context.Background()
		seed(t, s)
		require.NoError(t, s.CreateAttempt(ctx, newAttempt("a1", "stu")))

		next := newAttempt("a1", "stu")
		next.Status = exam.StatusSubmitted
		now := t0.Add(time.Minute)
		d := 60
		next.SubmittedAt, next.DurationSeconds = &now, &d
		require.NoError(t, s.UpdateAttempt(ctx, next, exam.StatusInProgress))
		assert.ErrorIs(t, s.UpdateAttempt(ctx, next, exam.StatusInProgress), exam.ErrConflict)
		assert.ErrorIs(t, s.UpdateAttempt(ctx, exam.Attempt{ID: "zz", Status: exam.StatusSubmitted}, exam.StatusInProgress), exam.ErrNotFound)

		require.NoError(t, s.SetAttemptScore(ctx, "a1", 2.5))
		got, err := s.GetAttempt(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, exam.StatusSubmitted, got.Status)
		assert.Equal(t, 2.5, *got.Score)
		assert.Equal(t, 60, *got.DurationSeconds)
		assert.True(t, got.SubmittedAt.Equal(now))
		assert.ErrorIs(t, s.SetAttemptScore(ctx, "zz", 1), exam.ErrNotFound)
	})
}

func TestListAttemptsFiltersAndSorts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s exam.Store) {
		ctx := context.Background()
		seed(t, s)
		for i, stu := range []string{"s1", "s2", "s3"} {
			a := newAttempt("a"+stu, stu)
			a.StartedAt = t0.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.CreateAttempt(ctx, a))
		}
		all, err := s.ListAttempts(ctx, exam.AttemptListOpts{QuizID: "qz"})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "as3", all[0].ID)

		asc, err := s.ListAttempts(ctx, exam.AttemptListOpts{QuizID: "qz", Sort: "started_at asc", Limit: 2})
		require.NoError(t, err)
		require.Len(t, asc, 2)
		assert.Equal(t, "as1", asc[0].ID)

		one, err := s.ListAttempts(ctx, exam.AttemptListOpts{QuizID: "qz", StudentID: "s2"})
		require.NoError(t, err)
		require.Len(t, one, 1)

		none, err := s.ListAttempts(ctx, exam.AttemptListOpts{QuizID: "qz", Status: exam.StatusGraded})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestUpsertAnswer(t *testing.T) {
	forEachStore(t, func(t *testing.T, s exam.Store) {
		ctx := context.Background()
		seed(t, s)
		require.NoError(t, s.CreateAttempt(ctx, newAttempt("a1", "stu")))

		first, err := s.UpsertAnswer(ctx, exam.Answer{ID: "x1", AttemptID: "a1", QuestionID: "q1",
			Payload: exam.Selection{OptionIDs: []string{"b"}}, UpdatedAt: t0})
		require.NoError(t, err)
		second, err := s.UpsertAnswer(ctx, exam.Answer{ID: "x2", AttemptID: "a1", QuestionID: "q1",
			Payload: exam.Selection{OptionIDs: []string{"a"}}, UpdatedAt: t0.Add(time.Second)})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "one answer per question")
		assert.Equal(t, exam.Selection{OptionIDs: []string{"a"}}, second.Payload)

		_, err = s.UpsertAnswer(ctx, exam.Answer{ID: "x3", AttemptID: "a1", QuestionID: "q2",
			Payload: exam.Number{Raw: "9.8 m/s2"}, UpdatedAt: t0})
		require.NoError(t, err)

		list, err := s.ListAnswers(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, exam.Number{Raw: "9.8 m/s2"}, list[1].Payload)

		_, err = s.UpsertAnswer(ctx, exam.Answer{ID: "x4", AttemptID: "nope", QuestionID: "q1",
			Payload: exam.Selection{}, UpdatedAt: t0})
		assert.ErrorIs(t, err, exam.ErrNotFound)

		sub := newAttempt("a1", "stu")
		sub.Status = exam.StatusSubmitted
		require.NoError(t, s.UpdateAttempt(ctx, sub, exam.StatusInProgress))
		_, err = s.UpsertAnswer(ctx, exam.Answer{ID: "x5", AttemptID: "a1", QuestionID: "q1",
			Payload: exam.Selection{OptionIDs: []string{"b"}}, UpdatedAt: t0.Add(time.Hour)})
		assert.ErrorIs(t, err, exam.ErrConflict)

		kept, err := s.GetAnswer(ctx, "a1", "q1")
		require.NoError(t, err)
		assert.Equal(t, exam.Selection{OptionIDs: []string{"a"}}, kept.Payload)
	})
}

func TestUpdateAnswerGrade(t *testing.T) {
	forEachStore(t, func(t *testing.T, s exam.Store) {
		ctx := context.Background()
		seed(t, s)
		require.NoError(t, s.CreateAttempt(ctx, newAttempt("a1", "stu")))
		ans, err := s.UpsertAnswer(ctx, exam.Answer{ID: "x1", AttemptID: "a1", QuestionID: "q1",
			Payload: exam.Selection{OptionIDs: []string{"a"}}, UpdatedAt: t0})
		require.NoError(t, err)
		assert.Nil(t, ans.IsCorrect)
		assert.Nil(t, ans.PointsAwarded)

		yes, pts, note, at := true, 1.0, "ok", t0.Add(time.Hour)
		ans.IsCorrect, ans.PointsAwarded, ans.Comment, ans.GradedBy, ans.GradedAt = &yes, &pts, &note, "t-1", &at
		require.NoError(t, s.UpdateAnswerGrade(ctx, ans))

		got, err := s.GetAnswerByID(ctx, ans.ID)
		require.NoError(t, err)
		assert.Equal(t, &yes, got.IsCorrect)
		assert.Equal(t, &pts, got.PointsAwarded)
		assert.Equal(t, &note, got.Comment)
		assert.Equal(t, "t-1", got.GradedBy)
		assert.True(t, got.GradedAt.Equal(at))

		assert.ErrorIs(t, s.UpdateAnswerGrade(ctx, exam.Answer{ID: "nope"}), exam.ErrNotFound)
		_, err = s.GetAnswerByID(ctx, "nope")
		assert.ErrorIs(t, err, exam.ErrNotFound)
	})
}

package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutQuiz(ctx context.Context, b QuizBundle) error {
	q := NormalizeQuiz(b.Quiz)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO quizzes (id,title,time_limit_minutes,attempts_allowed,start_at,end_at,show_results_policy,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET title=excluded.title, time_limit_minutes=excluded.time_limit_minutes,
			attempts_allowed=excluded.attempts_allowed, start_at=excluded.start_at, end_at=excluded.end_at,
			show_results_policy=excluded.show_results_policy`,
		q.ID, q.Title, nullInt(q.TimeLimitMinutes), q.AttemptsAllowed, nullMillis(q.StartAt), nullMillis(q.EndAt),
		string(q.ResultsPolicy), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put quiz: %w", err)
	}
	for _, qs := range b.Questions {
		_, err = tx.ExecContext(ctx, `INSERT INTO questions (id,quiz_id,type,prompt,points,tolerance,correct_value,order_index)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET type=excluded.type, prompt=excluded.prompt, points=excluded.points,
				tolerance=excluded.tolerance, correct_value=excluded.correct_value, order_index=excluded.order_index`,
			qs.ID, q.ID, string(qs.Type), qs.Prompt, qs.Points, nullFloat(qs.Tolerance), qs.CorrectValue, qs.OrderIndex)
		if err != nil {
			return fmt.Errorf("put question %s: %w", qs.ID, err)
		}
		for _, o := range b.Options[qs.ID] {
			_, err = tx.ExecContext(ctx, `INSERT INTO options (id,question_id,text,is_correct,order_index)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (id) DO UPDATE SET text=excluded.text, is_correct=excluded.is_correct, order_index=excluded.order_index`,
				o.ID, qs.ID, o.Text, o.IsCorrect, o.OrderIndex)
			if err != nil {
				return fmt.Errorf("put option %s: %w", o.ID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,time_limit_minutes,attempts_allowed,start_at,end_at,show_results_policy
		FROM quizzes WHERE id=$1`, id)
	var (
		q        Quiz
		limit    sql.NullInt64
		start    sql.NullInt64
		end      sql.NullInt64
		policy   sql.NullString
		attempts sql.NullInt64
	)
	if err := row.Scan(&q.ID, &q.Title, &limit, &attempts, &start, &end, &policy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	if limit.Valid {
		v := int(limit.Int64)
		q.TimeLimitMinutes = &v
	}
	q.AttemptsAllowed = int(attempts.Int64)
	q.StartAt = fromMillis(start)
	q.EndAt = fromMillis(end)
	q.ResultsPolicy = ResultsPolicy(policy.String)
	return NormalizeQuiz(q), nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, quizID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,quiz_id,type,prompt,points,tolerance,correct_value,order_index
		FROM questions WHERE quiz_id=$1 ORDER BY order_index, id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		var (
			q      Question
			typ    string
			prompt sql.NullString
			points sql.NullFloat64
			tol    sql.NullFloat64
			cv     sql.NullString
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &typ, &prompt, &points, &tol, &cv, &q.OrderIndex); err != nil {
			return nil, err
		}
		q.Type = QuestionType(typ)
		q.Prompt = prompt.String
		q.Points = points.Float64 // NULL reads as 0 and is clamped at grading time
		if tol.Valid {
			v := tol.Float64
			q.Tolerance = &v
		}
		q.CorrectValue = cv.String
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListOptions(ctx context.Context, questionID string) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,question_id,text,is_correct,order_index
		FROM options WHERE question_id=$1 ORDER BY order_index, id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Option{}
	for rows.Next() {
		var (
			o       Option
			text    sql.NullString
			correct sql.NullBool
		)
		if err := rows.Scan(&o.ID, &o.QuestionID, &text, &correct, &o.OrderIndex); err != nil {
			return nil, err
		}
		o.Text = text.String
		o.IsCorrect = correct.Valid && correct.Bool
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,quiz_id,student_id,status,started_at,submitted_at,score,duration_seconds,finalized_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.QuizID, a.StudentID, string(a.Status), a.StartedAt.UnixMilli(), nullMillis(a.SubmittedAt),
		nullFloat(a.Score), nullInt(a.DurationSeconds), nullMillis(a.FinalizedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

const attemptCols = `id,quiz_id,student_id,status,started_at,submitted_at,score,duration_seconds,finalized_at`

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.StudentID != "" {
		add("student_id=$%d", opts.StudentID)
	}
	if opts.Status != "" {
		add("status=$%d", string(opts.Status))
	}
	q := `SELECT ` + attemptCols + ` FROM attempts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	col, desc := ParseAttemptSort(opts.Sort)
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q += fmt.Sprintf(` ORDER BY %s %s, id`, col, dir)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			q += fmt.Sprintf(` OFFSET $%d`, len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateAttempt(ctx context.Context, a Attempt, from Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET status=$1, submitted_at=$2, duration_seconds=$3, finalized_at=$4
		WHERE id=$5 AND status=$6`,
		string(a.Status), nullMillis(a.SubmittedAt), nullInt(a.DurationSeconds), nullMillis(a.FinalizedAt), a.ID, string(from))
	if err != nil {
		return err
	}
	return s.affectedOrMissing(ctx, res, a.ID)
}

func (s *SQLStore) SetAttemptScore(ctx context.Context, attemptID string, score float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET score=$1 WHERE id=$2`, score, attemptID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) UpsertAnswer(ctx context.Context, a Answer) (Answer, error) {
	payload, err := EncodePayload(a.Payload)
	if err != nil {
		return Answer{}, err
	}
	// The attempt status guard and the write are one statement, so a racing
	// submit either lands before (write rejected) or after (write kept).
	res, err := s.db.ExecContext(ctx, `INSERT INTO answers (id,attempt_id,question_id,payload_json,updated_at)
		SELECT CAST($1 AS TEXT), CAST($2 AS TEXT), CAST($3 AS TEXT), CAST($4 AS TEXT), CAST($5 AS BIGINT)
		WHERE EXISTS (SELECT 1 FROM attempts WHERE id=CAST($2 AS TEXT) AND status='in_progress')
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET payload_json=excluded.payload_json, updated_at=excluded.updated_at`,
		a.ID, a.AttemptID, a.QuestionID, payload, a.UpdatedAt.UnixMilli())
	if err != nil {
		return Answer{}, err
	}
	if err := s.affectedOrMissing(ctx, res, a.AttemptID); err != nil {
		return Answer{}, err
	}
	return s.GetAnswer(ctx, a.AttemptID, a.QuestionID)
}

const answerCols = `id,attempt_id,question_id,payload_json,is_correct,points_awarded,comment,graded_by,graded_at,updated_at`

func (s *SQLStore) GetAnswer(ctx context.Context, attemptID, questionID string) (Answer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+answerCols+` FROM answers WHERE attempt_id=$1 AND question_id=$2`, attemptID, questionID)
	a, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Answer{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) GetAnswerByID(ctx context.Context, id string) (Answer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+answerCols+` FROM answers WHERE id=$1`, id)
	a, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Answer{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) ListAnswers(ctx context.Context, attemptID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+answerCols+` FROM answers WHERE attempt_id=$1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateAnswerGrade(ctx context.Context, a Answer) error {
	var comment sql.NullString
	if a.Comment != nil {
		comment = sql.NullString{String: *a.Comment, Valid: true}
	}
	var correct sql.NullBool
	if a.IsCorrect != nil {
		correct = sql.NullBool{Bool: *a.IsCorrect, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE answers SET is_correct=$1, points_awarded=$2, comment=$3, graded_by=$4, graded_at=$5
		WHERE id=$6`,
		correct, nullFloat(a.PointsAwarded), comment, a.GradedBy, nullMillis(a.GradedAt), a.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// affectedOrMissing turns a zero-row conditional write into ErrNotFound when
// the attempt does not exist and ErrConflict when its status did not match.
func (s *SQLStore) affectedOrMissing(ctx context.Context, res sql.Result, attemptID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM attempts WHERE id=$1`, attemptID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r scanner) (Attempt, error) {
	var (
		a         Attempt
		status    string
		started   int64
		submitted sql.NullInt64
		score     sql.NullFloat64
		duration  sql.NullInt64
		finalized sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.QuizID, &a.StudentID, &status, &started, &submitted, &score, &duration, &finalized); err != nil {
		return Attempt{}, err
	}
	a.Status = Status(status)
	a.StartedAt = time.UnixMilli(started).UTC()
	a.SubmittedAt = fromMillis(submitted)
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		a.DurationSeconds = &v
	}
	a.FinalizedAt = fromMillis(finalized)
	return a, nil
}

func scanAnswer(r scanner) (Answer, error) {
	var (
		a       Answer
		payload string
		correct sql.NullBool
		points  sql.NullFloat64
		comment sql.NullString
		by      sql.NullString
		gradeAt sql.NullInt64
		updated int64
	)
	if err := r.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &payload, &correct, &points, &comment, &by, &gradeAt, &updated); err != nil {
		return Answer{}, err
	}
	p, err := ParsePayload(payload)
	if err != nil {
		return Answer{}, fmt.Errorf("answer %s: %w", a.ID, err)
	}
	a.Payload = p
	if correct.Valid {
		v := correct.Bool
		a.IsCorrect = &v
	}
	if points.Valid {
		v := points.Float64
		a.PointsAwarded = &v
	}
	if comment.Valid {
		v := comment.String
		a.Comment = &v
	}
	a.GradedBy = by.String
	a.GradedAt = fromMillis(gradeAt)
	a.UpdatedAt = time.UnixMilli(updated).UTC()
	return a, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres via other drivers
}

package exam

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps everything in maps guarded by one RWMutex. It backs
// tests and offline demos.
type MemoryStore struct {
	mu        sync.RWMutex
	quizzes   map[string]Quiz
	questions map[string]Question
	options   map[string][]Option // question id -> options
	attempts  map[string]Attempt
	answers   map[string]Answer // answer id -> answer
	byPair    map[string]string // attempt|question -> answer id
}

func NewInMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes:   map[string]Quiz{},
		questions: map[string]Question{},
		options:   map[string][]Option{},
		attempts:  map[string]Attempt{},
		answers:   map[string]Answer{},
		byPair:    map[string]string{},
	}
}

func pairKey(attemptID, questionID string) string { return attemptID + "|" + questionID }

func (m *MemoryStore) PutQuiz(_ context.Context, b QuizBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[b.Quiz.ID] = NormalizeQuiz(b.Quiz)
	for _, q := range b.Questions {
		q.QuizID = b.Quiz.ID
		m.questions[q.ID] = q
		opts := make([]Option, 0, len(b.Options[q.ID]))
		for _, o := range b.Options[q.ID] {
			o.QuestionID = q.ID
			opts = append(opts, o)
		}
		m.options[q.ID] = opts
	}
	return nil
}

func (m *MemoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return q, nil
}

func (m *MemoryStore) ListQuestions(_ context.Context, quizID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Question{}
	for _, q := range m.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListOptions(_ context.Context, questionID string) ([]Option, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Option(nil), m.options[questionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *MemoryStore) CreateAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return ErrNotFound
	}
	if a.Status == StatusInProgress {
		for _, x := range m.attempts {
			if x.QuizID == a.QuizID && x.StudentID == a.StudentID && x.Status == StatusInProgress {
				return ErrConflict
			}
		}
	}
	if _, dup := m.attempts[a.ID]; dup {
		return ErrConflict
	}
	m.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (m *MemoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *MemoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	m.mu.RUnlock()

	col, desc := ParseAttemptSort(opts.Sort)
	key := func(a Attempt) time.Time {
		if col == "submitted_at" && a.SubmittedAt != nil {
			return *a.SubmittedAt
		}
		if col == "submitted_at" {
			return time.Time{}
		}
		return a.StartedAt
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if ki.Equal(kj) {
			return out[i].ID < out[j].ID
		}
		if desc {
			return ki.After(kj)
		}
		return ki.Before(kj)
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateAttempt(_ context.Context, a Attempt, from Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != from {
		return ErrConflict
	}
	cur.Status = a.Status
	cur.SubmittedAt = cloneTime(a.SubmittedAt)
	cur.DurationSeconds = cloneInt(a.DurationSeconds)
	cur.FinalizedAt = cloneTime(a.FinalizedAt)
	m.attempts[a.ID] = cur
	return nil
}

func (m *MemoryStore) SetAttemptScore(_ context.Context, attemptID string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	cur.Score = &score
	m.attempts[attemptID] = cur
	return nil
}

func (m *MemoryStore) UpsertAnswer(_ context.Context, a Answer) (Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.attempts[a.AttemptID]
	if !ok {
		return Answer{}, ErrNotFound
	}
	if at.Status != StatusInProgress {
		return Answer{}, ErrConflict
	}
	k := pairKey(a.AttemptID, a.QuestionID)
	if id, ok := m.byPair[k]; ok {
		cur := m.answers[id]
		cur.Payload = a.Payload
		cur.UpdatedAt = a.UpdatedAt
		m.answers[id] = cur
		return cloneAnswer(cur), nil
	}
	m.answers[a.ID] = cloneAnswer(a)
	m.byPair[k] = a.ID
	return cloneAnswer(a), nil
}

func (m *MemoryStore) GetAnswer(_ context.Context, attemptID, questionID string) (Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey(attemptID, questionID)]
	if !ok {
		return Answer{}, ErrNotFound
	}
	return cloneAnswer(m.answers[id]), nil
}

func (m *MemoryStore) GetAnswerByID(_ context.Context, id string) (Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.answers[id]
	if !ok {
		return Answer{}, ErrNotFound
	}
	return cloneAnswer(a), nil
}

func (m *MemoryStore) ListAnswers(_ context.Context, attemptID string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Answer{}
	for _, a := range m.answers {
		if a.AttemptID == attemptID {
			out = append(out, cloneAnswer(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m *MemoryStore) UpdateAnswerGrade(_ context.Context, a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.answers[a.ID]
	if !ok {
		return ErrNotFound
	}
	cur.IsCorrect = cloneBool(a.IsCorrect)
	cur.PointsAwarded = cloneFloat(a.PointsAwarded)
	cur.Comment = cloneString(a.Comment)
	cur.GradedBy = a.GradedBy
	cur.GradedAt = cloneTime(a.GradedAt)
	m.answers[a.ID] = cur
	return nil
}

// Corrupt overwrites the grading fields of an answer without any checks.
// It exists to simulate data written by older code or by hand.
func (m *MemoryStore) Corrupt(answerID string, isCorrect *bool, points *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.answers[answerID]
	cur.IsCorrect = cloneBool(isCorrect)
	cur.PointsAwarded = cloneFloat(points)
	m.answers[answerID] = cur
}

// ParseAttemptSort turns "submitted_at asc" into its column and direction.
// Unknown columns fall back to started_at, direction defaults to desc.
func ParseAttemptSort(s string) (col string, desc bool) {
	parts := strings.Fields(strings.ToLower(s))
	col, desc = "started_at", true
	if len(parts) > 0 && parts[0] == "submitted_at" {
		col = "submitted_at"
	}
	if len(parts) > 1 && parts[1] == "asc" {
		desc = false
	}
	return col, desc
}

func cloneAttempt(a Attempt) Attempt {
	a.SubmittedAt = cloneTime(a.SubmittedAt)
	a.Score = cloneFloat(a.Score)
	a.DurationSeconds = cloneInt(a.DurationSeconds)
	a.FinalizedAt = cloneTime(a.FinalizedAt)
	return a
}

func cloneAnswer(a Answer) Answer {
	a.IsCorrect = cloneBool(a.IsCorrect)
	a.PointsAwarded = cloneFloat(a.PointsAwarded)
	a.Comment = cloneString(a.Comment)
	a.GradedAt = cloneTime(a.GradedAt)
	if s, ok := a.Payload.(Selection); ok {
		a.Payload = Selection{OptionIDs: append([]string(nil), s.OptionIDs...)}
	}
	return a
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grading/internal/engine"
	"github.com/mind-engage/mindengage-grading/internal/exam"
)

const maxListLimit = 500

type listAttemptsQuery struct {
	StudentID string `json:"student_id" validate:"omitempty,max=128"`
	Status    string `json:"status" validate:"omitempty,oneof=in_progress submitted graded"`
	Sort      string `json:"sort" validate:"omitempty,max=32"`
	Limit     int    `json:"limit" validate:"min=1,max=500"`
	Offset    int    `json:"offset" validate:"min=0"`
}

// GET /quizzes/{quizID}/attempts?student_id=...&status=...&limit=50&offset=0&sort=started_at+desc
// Callers with attempt:view-all may filter by any student; everyone else is
// scoped to their own attempts.
func ListAttemptsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		q := listAttemptsQuery{
			StudentID: strings.TrimSpace(qs.Get("student_id")),
			Status:    strings.TrimSpace(qs.Get("status")),
			Sort:      strings.TrimSpace(qs.Get("sort")),
			Limit:     min(parseIntDefault(qs.Get("limit"), 50), maxListLimit),
			Offset:    parseIntDefault(qs.Get("offset"), 0),
		}
		if q.Limit == 0 {
			q.Limit = 50
		}
		if err := validate.Struct(q); err != nil {
			writeError(w, r, err)
			return
		}
		if student := studentFilter(r); student != "" {
			q.StudentID = student
		}

		list, err := eng.ListAttemptsForQuiz(r.Context(), chi.URLParam(r, "quizID"), exam.AttemptListOpts{
			StudentID: q.StudentID,
			Status:    exam.Status(q.Status),
			Limit:     q.Limit,
			Offset:    q.Offset,
			Sort:      q.Sort,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

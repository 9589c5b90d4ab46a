package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-grading/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grading/internal/engine"
	"github.com/mind-engage/mindengage-grading/internal/exam"
)

type gradeReq struct {
	Points  *float64 `json:"points" validate:"required"`
	Comment *string  `json:"comment,omitempty" validate:"omitempty,max=4000"`
}

type applyGradesReq struct {
	Items    map[string]gradeReq `json:"items" validate:"required,min=1,dive,keys,required,endkeys"` // question_id -> grade
	Finalize bool                `json:"finalize,omitempty"`
}

type gradingResp struct {
	Attempt  exam.Attempt `json:"attempt"`
	Warnings []string     `json:"warnings"`
}

type recalcResp struct {
	AttemptID string   `json:"attempt_id"`
	Score     float64  `json:"score"`
	Warnings  []string `json:"warnings"`
}

func nonNil(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}

// POST /answers/{answerID}/grade
func GradeAnswerHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answerID := strings.TrimSpace(chi.URLParam(r, "answerID"))
		var req gradeReq
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, r, err)
			return
		}
		ans, err := eng.GradeAnswer(r.Context(), answerID, *req.Points, req.Comment, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

// POST /attempts/{attemptID}/grading
func ApplyAttemptGradingHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		var req applyGradesReq
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, r, err)
			return
		}
		grades := make(map[string]engine.ManualGrade, len(req.Items))
		for qid, g := range req.Items {
			grades[qid] = engine.ManualGrade{Points: *g.Points, Comment: g.Comment}
		}
		a, warns, err := eng.GradeAnswers(r.Context(), attemptID, grades, authmw.SubjectFromContext(r.Context()), req.Finalize)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, gradingResp{Attempt: a, Warnings: nonNil(warns)})
	}
}

// POST /attempts/{attemptID}/finalize
func FinalizeAttemptHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		a, warns, err := eng.Finalize(r.Context(), attemptID, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, gradingResp{Attempt: a, Warnings: nonNil(warns)})
	}
}

// POST /attempts/{attemptID}/recalculate
func RecalculateHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		score, warns, err := eng.Recalculate(r.Context(), attemptID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sort.Strings(warns)
		writeJSON(w, http.StatusOK, recalcResp{AttemptID: attemptID, Score: score, Warnings: nonNil(warns)})
	}
}

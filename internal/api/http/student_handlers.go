package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-grading/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grading/internal/config"
	"github.com/mind-engage/mindengage-grading/internal/engine"
	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/rbac"
)

// ownedAttempt loads an attempt. Callers without attempt:view-all only see
// their own attempts; anything else is reported as not found.
func ownedAttempt(r *http.Request, eng *engine.Engine, attemptID string) (exam.Attempt, error) {
	a, err := eng.GetAttempt(r.Context(), attemptID)
	if err != nil {
		return exam.Attempt{}, err
	}
	if !rbac.Can(r.Context(), "attempt:view-all") && a.StudentID != authmw.SubjectFromContext(r.Context()) {
		return exam.Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, engine.ErrNotFound)
	}
	return a, nil
}

// studentFilter is the student id results are scoped to, empty for staff.
func studentFilter(r *http.Request) string {
	if rbac.Can(r.Context(), "attempt:view-all") {
		return ""
	}
	return authmw.SubjectFromContext(r.Context())
}

// StartAttemptHandler starts or resumes the caller's attempt on a quiz.
func StartAttemptHandler(eng *engine.Engine, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		a, err := eng.Start(r.Context(), quizID, authmw.SubjectFromContext(r.Context()), now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// SaveAnswerHandler autosaves one answer. The body is the payload itself,
// e.g. {"selected": ["o1"]} or {"number": 11}.
func SaveAnswerHandler(eng *engine.Engine, limiter *AutosaveLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		questionID := chi.URLParam(r, "questionID")
		if _, err := ownedAttempt(r, eng, attemptID); err != nil {
			writeError(w, r, err)
			return
		}
		if !limiter.Allow(attemptID) {
			config.WithContext(r.Context()).WithField("attempt_id", attemptID).Debug("autosave throttled")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadBody, err))
			return
		}
		if !json.Valid(raw) {
			writeError(w, r, fmt.Errorf("%w: payload is not valid json", errBadBody))
			return
		}
		ans, err := eng.SaveAnswerJSON(r.Context(), attemptID, questionID, raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

// ListAnswersHandler returns the answers of an attempt. Students get the
// same view as their results page, so grading stays hidden until the
// results policy allows it.
func ListAnswersHandler(eng *engine.Engine, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		if student := studentFilter(r); student != "" {
			res, err := eng.GetResultsIfVisible(r.Context(), attemptID, student, now())
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, res.Answers)
			return
		}
		list, err := eng.ListAnswers(r.Context(), attemptID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type submitRequest struct {
	DurationSeconds *int `json:"duration_seconds" validate:"omitempty,min=0"`
}

type submitResponse struct {
	engine.Results
	GradingPending bool `json:"grading_pending,omitempty"`
}

// SubmitAttemptHandler submits an attempt and answers with what the results
// policy lets the student see. A grading failure after the transition still
// answers 202; Finalize or Recalculate complete the grading later.
func SubmitAttemptHandler(eng *engine.Engine, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req submitRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, r, err)
			return
		}
		if _, err := ownedAttempt(r, eng, attemptID); err != nil {
			writeError(w, r, err)
			return
		}

		at := now()
		status := http.StatusOK
		a, _, err := eng.Submit(r.Context(), attemptID, at, req.DurationSeconds)
		if err != nil {
			if a.ID == "" {
				writeError(w, r, err)
				return
			}
			config.WithContext(r.Context()).WithError(err).WithField("attempt_id", attemptID).
				Error("grading after submit failed")
			status = http.StatusAccepted
		}

		res, err := eng.GetResultsIfVisible(r.Context(), attemptID, studentFilter(r), at)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, status, submitResponse{Results: res, GradingPending: status == http.StatusAccepted})
	}
}

// ResultsHandler returns an attempt's results, withholding the score and
// grading unless the quiz's results policy allows them.
func ResultsHandler(eng *engine.Engine, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		res, err := eng.GetResultsIfVisible(r.Context(), attemptID, studentFilter(r), now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

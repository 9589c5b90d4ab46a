package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-grading/internal/config"
	"github.com/mind-engage/mindengage-grading/internal/engine"
	"github.com/mind-engage/mindengage-grading/internal/exam"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine and store errors onto HTTP statuses.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrQuizClosed):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrNoAttemptsRemaining), errors.Is(err, engine.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, exam.ErrInvalidPayload), errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, errBadBody), errors.As(err, &verrs):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := config.WithContext(r.Context()).WithError(err).WithField("status", status)
	body := errorBody{Error: err.Error()}

	var verrs validator.ValidationErrors
	switch {
	case status >= 500:
		log.Error("request failed")
		body.Error = http.StatusText(status)
	case errors.As(err, &verrs):
		log.Debug("validation failed")
		body.Error = "validation failed"
		body.Fields = fieldErrors(verrs)
	default:
		log.Debug("request rejected")
	}
	writeJSON(w, status, body)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

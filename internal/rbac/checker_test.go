package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-grading/internal/rbac"
)

func TestCheckerWildcards(t *testing.T) {
	c := rbac.NewChecker(map[string][]string{
		"grader": {"attempt:*"},
		"root":   {"*"},
	})
	assert.True(t, c.Has("grader", "attempt:grade"))
	assert.False(t, c.Has("grader", "quiz:import"))
	assert.True(t, c.Has("root", "quiz:import"))
	assert.False(t, c.Has("nobody", "attempt:grade"))
	assert.True(t, c.Any("grader", "quiz:import", "attempt:view-all"))
}

func TestDefaultPolicy(t *testing.T) {
	c := rbac.NewChecker(nil)
	assert.True(t, c.Has("student", "attempt:save"))
	assert.False(t, c.Has("student", "attempt:grade"))
	assert.True(t, c.Has("teacher", "attempt:grade"))
	assert.False(t, c.Has("teacher", "attempt:save"))
}

func TestRequire(t *testing.T) {
	h := rbac.Require("attempt:grade")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for role, want := range map[string]int{"": 403, "student": 403, "teacher": 200, "admin": 200} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(rbac.WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
	assert.False(t, rbac.Can(context.Background(), "attempt:grade"))
}

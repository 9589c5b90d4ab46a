package http

import (
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-grading/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grading/internal/engine"
	"github.com/mind-engage/mindengage-grading/internal/rbac"
)

// Deps are the collaborators the API routes need.
type Deps struct {
	Engine   *engine.Engine
	Auth     *authmw.AuthService
	Autosave *AutosaveLimiter
	Now      func() time.Time
}

// Register mounts the protected quiz and grading API on r.
// JWT -> role in context -> RBAC per route.
func Register(r chi.Router, d Deps) {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	eng := d.Engine

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		// Teacher: quiz import and listing
		pr.With(rbac.Require("quiz:import")).
			Post("/quizzes", ImportQuizHandler(eng))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quizzes/{quizID}/attempts", ListAttemptsHandler(eng))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/quizzes/{quizID}/attempts", StartAttemptHandler(eng, now))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers/{questionID}", SaveAnswerHandler(eng, d.Autosave))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/answers", ListAnswersHandler(eng, now))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(eng, now))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/results", ResultsHandler(eng, now))

		// Grading
		pr.Group(func(gr chi.Router) {
			gr.Use(rbac.Require("attempt:grade"))
			gr.Post("/answers/{answerID}/grade", GradeAnswerHandler(eng))
			gr.Post("/attempts/{attemptID}/grading", ApplyAttemptGradingHandler(eng))
			gr.Post("/attempts/{attemptID}/finalize", FinalizeAttemptHandler(eng))
			gr.Post("/attempts/{attemptID}/recalculate", RecalculateHandler(eng))
		})
	})
}

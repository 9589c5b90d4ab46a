package http

import (
	"net/http"
	"time"

	"github.com/mind-engage/mindengage-grading/internal/engine"
	"github.com/mind-engage/mindengage-grading/internal/exam"
)

type quizIn struct {
	ID               string     `json:"id" validate:"required,max=128"`
	Title            string     `json:"title" validate:"max=512"`
	TimeLimitMinutes *int       `json:"time_limit_minutes" validate:"omitempty,min=1"`
	AttemptsAllowed  int        `json:"attempts_allowed"`
	StartAt          *time.Time `json:"start_at"`
	EndAt            *time.Time `json:"end_at"`
	ResultsPolicy    string     `json:"show_results_policy" validate:"omitempty,oneof=immediate after_close never"`
}

type questionIn struct {
	ID           string   `json:"id" validate:"required,max=128"`
	Type         string   `json:"type" validate:"required,oneof=mcq_single mcq_multi true_false numeric short_text"`
	Prompt       string   `json:"prompt"`
	Points       float64  `json:"points"`
	Tolerance    *float64 `json:"tolerance"`
	CorrectValue string   `json:"correct_value"`
	OrderIndex   int      `json:"order_index"`
}

type optionIn struct {
	ID         string `json:"id" validate:"required,max=128"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	OrderIndex int    `json:"order_index" validate:"min=0"`
}

type importQuizReq struct {
	Quiz      quizIn                `json:"quiz"`
	Questions []questionIn          `json:"questions" validate:"required,min=1,dive"`
	Options   map[string][]optionIn `json:"options" validate:"omitempty,dive,keys,required,endkeys,dive"`
}

func (req importQuizReq) bundle() exam.QuizBundle {
	b := exam.QuizBundle{
		Quiz: exam.Quiz{
			ID:               req.Quiz.ID,
			Title:            req.Quiz.Title,
			TimeLimitMinutes: req.Quiz.TimeLimitMinutes,
			AttemptsAllowed:  req.Quiz.AttemptsAllowed,
			StartAt:          req.Quiz.StartAt,
			EndAt:            req.Quiz.EndAt,
			ResultsPolicy:    exam.ResultsPolicy(req.Quiz.ResultsPolicy),
		},
		Options: make(map[string][]exam.Option, len(req.Options)),
	}
	for _, q := range req.Questions {
		b.Questions = append(b.Questions, exam.Question{
			ID:           q.ID,
			Type:         exam.QuestionType(q.Type),
			Prompt:       q.Prompt,
			Points:       q.Points,
			Tolerance:    q.Tolerance,
			CorrectValue: q.CorrectValue,
			OrderIndex:   q.OrderIndex,
		})
	}
	for qid, opts := range req.Options {
		for _, o := range opts {
			b.Options[qid] = append(b.Options[qid], exam.Option{
				ID:         o.ID,
				Text:       o.Text,
				IsCorrect:  o.IsCorrect,
				OrderIndex: o.OrderIndex,
			})
		}
	}
	return b
}

// POST /quizzes
func ImportQuizHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importQuizReq
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, r, err)
			return
		}
		b, err := eng.ImportQuiz(r.Context(), req.bundle())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "id": b.Quiz.ID, "questions": len(b.Questions)})
	}
}

package http

import (
	"errors"
	"net/http"

	"finwise/internal/aggregate"
	"finwise/internal/core"
	"finwise/internal/log"

	"github.com/gorilla/mux"
)

func (s *Server) handleMonthlySavings(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	savings, err := s.analysis.MonthlySavings(r.Context(), s.session(r), month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(savingsView{MonthlySavings: savings, Rate: aggregate.SavingsRate(savings)}).Write(w)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	progress, err := s.analysis.GoalProgress(r.Context(), s.session(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	goals := make([]goalView, 0, len(progress))
	for _, p := range progress {
		goals = append(goals, newGoalView(p))
	}
	NewResponse().JSON(map[string]any{"goals": goals}).Write(w)
}

type addSavingsRequest struct {
	Amount *core.Money `json:"amount"`
}

func (s *Server) handleAddSavings(w http.ResponseWriter, r *http.Request) {
	goalID := sanitizeInput(mux.Vars(r)["id"])
	if goalID == "" {
		s.writeError(w, r, badRequest(errors.New("goal id is required")))
		return
	}

	var req addSavingsRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		s.writeError(w, r, badRequest(errors.New("amount is required")))
		return
	}

	sess := s.session(r)
	progress, err := s.analysis.AddSavings(r.Context(), sess, goalID, *req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Goal updated",
		log.FieldUser, sess.Subject,
		"goal_id", goalID,
		"completed", progress.Completed)
	NewResponse().JSON(newGoalView(progress)).Write(w)
}

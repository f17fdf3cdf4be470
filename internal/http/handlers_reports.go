package http

import (
	"net/http"

	"finwise/internal/log"
	"finwise/internal/services"

	"github.com/gorilla/mux"
)

// handleCreateReport queues a report for delivery and answers 202 with the
// pending job.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req services.ReportRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Month.IsZero() {
		req.Month = s.analysis.CurrentMonth()
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}

	sess := s.session(r)
	job, err := s.reports.Enqueue(r.Context(), sess, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Report job queued",
		log.FieldJobID, job.ID,
		log.FieldUser, sess.Subject,
		log.FieldMonth, job.Month.String())
	NewResponse().
		Status(http.StatusAccepted).
		Header("Location", "/api/reports/"+job.ID).
		JSON(job).
		Write(w)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	job, err := s.reports.Job(r.Context(), s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(job).Write(w)
}

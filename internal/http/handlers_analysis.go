package http

import (
	"net/http"

	"finwise/internal/core"
	"finwise/internal/report"
)

func (s *Server) session(r *http.Request) core.Session {
	sess, _ := SessionFrom(r.Context())
	return sess
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.analysis.Analyze(r.Context(), s.session(r), month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(newAnalysisView(a)).Write(w)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.analysis.Monthly(r.Context(), s.session(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"months": buckets}).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	breakdown, err := s.analysis.Categories(r.Context(), s.session(r), month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"month": month, "total": breakdown.Total, "categories": breakdown.Shares}).Write(w)
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	points, err := s.analysis.Trend(r.Context(), s.session(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := report.TrendChart(points)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().File("image/png", png).Write(w)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	breakdown, err := s.analysis.Categories(r.Context(), s.session(r), month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := report.CategoryChart(breakdown)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().File("image/png", png).Write(w)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, report.FormatPDF)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, report.FormatXLSX)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, f report.Format) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, name, err := s.reports.Render(r.Context(), s.session(r), month, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Attachment(name, f.ContentType(), data).Write(w)
}

package http

import (
	"context"
	"net/http"

	"finwise/internal/aggregate"
	"finwise/internal/api"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/report"

	"golang.org/x/sync/errgroup"
)

// overview builds the admin overview of year. With a backend at hand the
// months are the system-wide figures; otherwise they come from the caller's
// own records.
func (s *Server) overview(ctx context.Context, sess core.Session, year int) (overviewView, error) {
	view := overviewView{Year: year}
	if s.admin == nil {
		months, err := s.analysis.YearOverview(ctx, sess, year)
		if err != nil {
			return overviewView{}, err
		}
		view.Months = months
		return view, nil
	}

	var stats api.AdminStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.admin.AdminStats(gctx, sess.Token, year)
		return err
	})
	g.Go(func() error {
		var err error
		view.Users, err = s.admin.AdminUsers(gctx, sess.Token)
		return err
	})
	if err := g.Wait(); err != nil {
		return overviewView{}, err
	}
	view.Stats = &stats
	view.Months = statsBuckets(year, stats.Monthly)
	return view, nil
}

// statsBuckets turns the backend's monthly figures into the twelve months of
// year. Entries for other years or with unreadable months are ignored.
func statsBuckets(year int, monthly []api.MonthlyStat) []core.MonthlyBucket {
	buckets := make([]core.MonthlyBucket, 0, len(monthly))
	for _, m := range monthly {
		key, err := core.ParseMonthKey(m.Month)
		if err != nil || key.Year != year {
			continue
		}
		buckets = append(buckets, core.MonthlyBucket{
			Month:   key,
			Income:  m.Income,
			Expense: m.Expense,
			Net:     m.Income.Sub(m.Expense),
		})
	}
	from := core.MonthKey{Year: year, Month: 1}
	to := core.MonthKey{Year: year, Month: 12}
	return aggregate.FillMonths(buckets, from, to)
}

func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.overview(r.Context(), s.session(r), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.DebugContext(r.Context(), "Admin overview served", log.FieldYear, year)
	NewResponse().JSON(view).Write(w)
}

func (s *Server) handleAdminOverviewChart(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.overview(r.Context(), s.session(r), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := report.YearChart(year, view.Months)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().File("image/png", png).Write(w)
}

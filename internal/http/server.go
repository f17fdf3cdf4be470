package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finwise/internal/api"
	"finwise/internal/log"
	"finwise/internal/middleware/ratelimit"
	"finwise/internal/middleware/security"
	"finwise/internal/middleware/trace"
	"finwise/internal/services"

	"github.com/gorilla/mux"
)

// AdminReader serves the system-wide figures of the admin overview.
type AdminReader interface {
	AdminStats(ctx context.Context, token string, year int) (api.AdminStats, error)
	AdminUsers(ctx context.Context, token string) ([]api.User, error)
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type Config struct {
	Addr string
	// JWTSecret verifies the signature of callers' access tokens. Requests
	// are rejected while it is empty.
	JWTSecret          string
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type Server struct {
	http.Server

	analysis *services.AnalysisService
	reports  *services.ReportService
	admin    AdminReader
	checks   map[string]ReadinessCheck
	verifier *api.Verifier

	limiter  *ratelimit.Limiter
	trace    *trace.Middleware
	clientIP func(*http.Request) string
	logger   *log.Logger
	now      func() time.Time

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithAdminReader adds backend statistics to the admin overview.
func WithAdminReader(a AdminReader) Option {
	return func(s *Server) { s.admin = a }
}

// WithReadinessCheck registers a check run by /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Shutdown releases the rate limiter.
func NewServer(cfg Config, analysis *services.AnalysisService, reports *services.ReportService, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		analysis: analysis,
		reports:  reports,
		checks:   make(map[string]ReadinessCheck),
		verifier: api.NewVerifier(cfg.JWTSecret),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		clientIP: security.ClientIP,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.trace = trace.NewMiddleware(s.clientIP, logger)

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.trace.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	a.Use(s.RequireSession)

	a.HandleFunc("/analysis", s.handleAnalysis).Methods(http.MethodGet)
	a.HandleFunc("/analysis/monthly", s.handleMonthly).Methods(http.MethodGet)
	a.HandleFunc("/analysis/categories", s.handleCategories).Methods(http.MethodGet)
	a.HandleFunc("/analysis/trend.png", s.handleTrendChart).Methods(http.MethodGet)
	a.HandleFunc("/analysis/categories.png", s.handleCategoryChart).Methods(http.MethodGet)
	a.Handle("/analysis/report.pdf", s.limited(s.handleReportPDF)).Methods(http.MethodGet)
	a.Handle("/analysis/export.xlsx", s.limited(s.handleExportXLSX)).Methods(http.MethodGet)

	a.HandleFunc("/savings/monthly", s.handleMonthlySavings).Methods(http.MethodGet)
	a.HandleFunc("/savings/goals", s.handleGoals).Methods(http.MethodGet)
	a.HandleFunc("/savings/goals/{id}/add", s.handleAddSavings).Methods(http.MethodPost)

	a.Handle("/reports", s.limited(s.handleCreateReport)).Methods(http.MethodPost)
	a.HandleFunc("/reports/{id}", s.handleGetReport).Methods(http.MethodGet)

	admin := a.PathPrefix("/admin").Subrouter()
	admin.Use(s.RequireAdmin)
	admin.HandleFunc("/overview", s.handleAdminOverview).Methods(http.MethodGet)
	admin.HandleFunc("/overview.png", s.handleAdminOverviewChart).Methods(http.MethodGet)

	return r
}

// limited applies the per-user rate limit to report generation.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.clientIP(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	}
	return s.limiter.Middleware(s.userKey, onLimit)(h)
}

// writeError logs err and answers with its mapped status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
			WithHTTPResponse(status, 0)
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.OpRequest, fields)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns the request counters.
func (s *Server) Metrics() trace.Metrics {
	return s.trace.GetMetrics()
}

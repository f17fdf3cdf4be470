package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/api"
	"finwise/internal/cache"
	"finwise/internal/core"
	"finwise/internal/services"
	"finwise/internal/source"
	"finwise/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ReportRequest
}

func (p *fakePublisher) PublishReportRequest(_ context.Context, msg *amqp.ReportRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

type fakeAdmin struct{}

func (fakeAdmin) AdminStats(_ context.Context, _ string, year int) (api.AdminStats, error) {
	return api.AdminStats{Users: 3, Monthly: []api.MonthlyStat{
		{Month: "2024-03", Income: core.MoneyFromInt(900), Expense: core.MoneyFromInt(400)},
		{Month: "2023-03", Income: core.MoneyFromInt(1), Expense: core.MoneyFromInt(1)},
	}}, nil
}

func (fakeAdmin) AdminUsers(context.Context, string) ([]api.User, error) {
	return []api.User{{ID: "u1", Name: "Ada", Role: core.RoleUser}}, nil
}

const testSecret = "test-secret"

func token(t *testing.T, user, role string) string {
	t.Helper()
	claims := api.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

type testEnv struct {
	srv       *Server
	publisher *fakePublisher
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) testEnv {
	t.Helper()
	src := source.NewMemory(
		[]core.Record{
			{ID: "i1", Kind: core.KindIncome, Amount: core.MoneyFromInt(1000), Date: date(t, "2024-01-05"), Note: "Salary"},
		},
		[]core.Record{
			{ID: "e1", Kind: core.KindExpense, Amount: core.MoneyFromInt(250), Date: date(t, "2024-01-10"), Category: &core.CategoryRef{ID: "food"}},
			{ID: "e2", Kind: core.KindExpense, Amount: core.MoneyFromInt(100), Date: date(t, "2024-02-01"), Category: &core.CategoryRef{ID: "rent"}},
		},
		[]core.Category{{ID: "food", Name: "Food"}, {ID: "rent", Name: "Rent"}},
		[]core.SavingsGoal{{ID: "g1", Title: "Bike", TargetAmount: core.MoneyFromInt(100), CurrentAmount: core.MoneyFromInt(60)}},
	)

	store, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pub := &fakePublisher{}
	analysis := services.NewAnalysisService(src, 6, nil)
	reports := services.NewReportService(analysis, store, pub, nil)
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 100
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testSecret
	}
	srv := NewServer(cfg, analysis, reports, nil, opts...)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return testEnv{srv: srv, publisher: pub}
}

func (e testEnv) do(method, path, tok string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, r)
	return rr
}

func TestHealthAndReadiness(t *testing.T) {
	failing := errors.New("database is locked")
	env := newTestEnv(t, Config{},
		WithReadinessCheck("source", func(context.Context) error { return nil }),
		WithReadinessCheck("store", func(context.Context) error { return failing }))

	if rr := env.do(http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	rr := env.do(http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "database is locked") {
		t.Errorf("readyz body missing failing check: %s", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing request id header")
	}
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, Config{})

	rr := env.do(http.MethodGet, "/api/analysis", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("missing WWW-Authenticate header")
	}
	if rr := env.do(http.MethodGet, "/api/analysis", "not-a-jwt", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("malformed token: expected 401, got %d", rr.Code)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	tok, _ := expired.SignedString([]byte(testSecret))
	if rr := env.do(http.MethodGet, "/api/analysis", tok, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("expired token: expected 401, got %d", rr.Code)
	}
}

func TestAuthentication_RejectsTokensNotSignedWithSecret(t *testing.T) {
	env := newTestEnv(t, Config{}, WithAdminReader(fakeAdmin{}))

	// Warm the path with the real user first so a forged token would find
	// data to read if identity were taken from unverified claims.
	if rr := env.do(http.MethodGet, "/api/analysis?month=2024-01", token(t, "victim", core.RoleUser), ""); rr.Code != http.StatusOK {
		t.Fatalf("legitimate token: status=%d body=%s", rr.Code, rr.Body.String())
	}

	forge := func(alg jwt.SigningMethod, key any, role string) string {
		t.Helper()
		tok, err := jwt.NewWithClaims(alg, api.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "victim",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: role,
		}).SignedString(key)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return tok
	}
	forged := map[string]string{
		"other key":   forge(jwt.SigningMethodHS256, []byte("attacker-key"), core.RoleUser),
		"other admin": forge(jwt.SigningMethodHS256, []byte("attacker-key"), core.RoleAdmin),
		"alg none":    forge(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, core.RoleAdmin),
	}
	for name, tok := range forged {
		for _, path := range []string{"/api/analysis?month=2024-01", "/api/analysis/export.xlsx?month=2024-01", "/api/admin/overview?year=2024"} {
			rr := env.do(http.MethodGet, path, tok, "")
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("%s %s: expected 401, got %d", name, path, rr.Code)
			}
			if strings.Contains(rr.Body.String(), "Salary") || strings.Contains(rr.Body.String(), "income") {
				t.Errorf("%s %s: response leaked data: %s", name, path, rr.Body.String())
			}
		}
	}
}

func TestAuthentication_ForgedTokenCannotReadCachedRecords(t *testing.T) {
	victim := token(t, "victim", core.RoleUser)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+victim {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid token"}`))
			return
		}
		switch r.URL.Path {
		case "/incomes":
			w.Write([]byte(`[{"_id":"i1","source":"Salary","amount":4200,"date":"2024-01-05"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer backend.Close()

	store, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	remote := source.NewRemote(api.New(backend.URL, time.Second), cache.NewRecordCache(16, time.Minute, nil), nil)
	analysis := services.NewAnalysisService(remote, 6, nil)
	srv := NewServer(Config{JWTSecret: testSecret, RateLimitPerMinute: 100}, analysis,
		services.NewReportService(analysis, store, nil, nil), nil)
	defer srv.Shutdown(context.Background())
	env := testEnv{srv: srv}

	rr := env.do(http.MethodGet, "/api/analysis?month=2024-01", victim, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "4200") {
		t.Fatalf("victim read: status=%d body=%s", rr.Code, rr.Body.String())
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "victim",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("attacker-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	rr = env.do(http.MethodGet, "/api/analysis?month=2024-01", forged, "")
	if rr.Code != http.StatusUnauthorized || strings.Contains(rr.Body.String(), "4200") {
		t.Fatalf("forged token: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAuthentication_WithoutSecretRejectsEverything(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.srv.verifier = api.NewVerifier("")

	if rr := env.do(http.MethodGet, "/api/analysis", token(t, "u1", core.RoleUser), ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a configured secret, got %d", rr.Code)
	}
}

func TestAnalysis(t *testing.T) {
	env := newTestEnv(t, Config{})
	tok := token(t, "u1", core.RoleUser)

	rr := env.do(http.MethodGet, "/api/analysis?month=2024-01", tok, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Income    core.Money `json:"income"`
		Expense   core.Money `json:"expense"`
		Balance   core.Money `json:"balance"`
		Overspent bool       `json:"overspent"`
		Recent    []struct {
			ID string `json:"id"`
		} `json:"recent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Income.Equal(core.MoneyFromInt(1000)) || !body.Expense.Equal(core.MoneyFromInt(250)) {
		t.Errorf("income=%s expense=%s", body.Income, body.Expense)
	}
	if !body.Balance.Equal(core.MoneyFromInt(650)) || body.Overspent {
		t.Errorf("balance=%s overspent=%v", body.Balance, body.Overspent)
	}
	if len(body.Recent) == 0 || body.Recent[0].ID != "e1" {
		t.Errorf("recent = %+v", body.Recent)
	}

	if rr := env.do(http.MethodGet, "/api/analysis?month=2024-13", tok, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid month: expected 400, got %d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/api/analysis/categories?month=2024-02", tok, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Rent"`) {
		t.Errorf("categories: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/api/analysis/monthly", tok, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"2024-02"`) {
		t.Errorf("monthly: %d %s", rr.Code, rr.Body.String())
	}
}

func TestChartsAndDownloads(t *testing.T) {
	env := newTestEnv(t, Config{})
	tok := token(t, "u1", core.RoleUser)

	for _, path := range []string{"/api/analysis/trend.png", "/api/analysis/categories.png?month=2024-01"} {
		rr := env.do(http.MethodGet, path, tok, "")
		if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
			t.Errorf("%s: status=%d type=%s", path, rr.Code, rr.Header().Get("Content-Type"))
		}
		if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
			t.Errorf("%s: body is not a PNG", path)
		}
	}

	rr := env.do(http.MethodGet, "/api/analysis/categories.png?month=2023-01", tok, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("empty chart: expected 404, got %d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/api/analysis/report.pdf?month=2024-01", tok, "")
	if rr.Code != http.StatusOK || !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("pdf: status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "FinWise-Analysis-2024-01.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rr = env.do(http.MethodGet, "/api/analysis/export.xlsx?month=2024-01", tok, "")
	if rr.Code != http.StatusOK || !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Errorf("xlsx: status=%d", rr.Code)
	}
}

func TestSavings(t *testing.T) {
	env := newTestEnv(t, Config{})
	tok := token(t, "u1", core.RoleUser)

	rr := env.do(http.MethodGet, "/api/savings/monthly?month=2024-01", tok, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"rate":"75"`) {
		t.Errorf("monthly savings: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/api/savings/goals", tok, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Bike"`) {
		t.Errorf("goals: %d %s", rr.Code, rr.Body.String())
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"negative amount", "/api/savings/goals/g1/add", `{"amount":-5}`, http.StatusBadRequest},
		{"missing amount", "/api/savings/goals/g1/add", `{}`, http.StatusBadRequest},
		{"unknown field", "/api/savings/goals/g1/add", `{"amount":5,"x":1}`, http.StatusBadRequest},
		{"unknown goal", "/api/savings/goals/nope/add", `{"amount":5}`, http.StatusNotFound},
		{"completes goal", "/api/savings/goals/g1/add", `{"amount":50}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, tt.path, tok, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr = env.do(http.MethodGet, "/api/savings/goals", tok, "")
	if !strings.Contains(rr.Body.String(), `"completed":true`) {
		t.Errorf("goal should be completed: %s", rr.Body.String())
	}
}

func TestAdminOverview(t *testing.T) {
	env := newTestEnv(t, Config{})
	if rr := env.do(http.MethodGet, "/api/admin/overview?year=2024", token(t, "u1", core.RoleUser), ""); rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d", rr.Code)
	}

	admin := token(t, "root", core.RoleAdmin)
	rr := env.do(http.MethodGet, "/api/admin/overview?year=2024", admin, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var view struct {
		Months []core.MonthlyBucket `json:"months"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil || len(view.Months) != 12 {
		t.Fatalf("months: %v %d", err, len(view.Months))
	}
	if rr := env.do(http.MethodGet, "/api/admin/overview?year=abc", admin, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad year: expected 400, got %d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/api/admin/overview.png?year=2024", admin, "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("chart: %d", rr.Code)
	}
}

func TestAdminOverviewWithBackendStats(t *testing.T) {
	env := newTestEnv(t, Config{}, WithAdminReader(fakeAdmin{}))
	rr := env.do(http.MethodGet, "/api/admin/overview?year=2024", token(t, "root", core.RoleAdmin), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var view struct {
		Months []core.MonthlyBucket `json:"months"`
		Stats  *api.AdminStats      `json:"stats"`
		Users  []api.User           `json:"users"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Stats == nil || view.Stats.Users != 3 || len(view.Users) != 1 {
		t.Errorf("stats=%+v users=%+v", view.Stats, view.Users)
	}
	if !view.Months[2].Net.Equal(core.MoneyFromInt(500)) || !view.Months[0].Net.IsZero() {
		t.Errorf("months = %+v", view.Months)
	}
}

func TestReports(t *testing.T) {
	env := newTestEnv(t, Config{})
	tok := token(t, "u1", core.RoleUser)

	rr := env.do(http.MethodPost, "/api/reports", tok, `{"month":"2024-01","format":"pdf","recipients":["me@example.com"]}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var job storage.ReportJob
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Status != storage.JobPending || job.User != "u1" {
		t.Errorf("job = %+v", job)
	}
	if rr.Header().Get("Location") != "/api/reports/"+job.ID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}
	if len(env.publisher.msgs) != 1 || env.publisher.msgs[0].JobID != job.ID || env.publisher.msgs[0].Token != tok {
		t.Errorf("published = %+v", env.publisher.msgs)
	}

	if rr := env.do(http.MethodGet, "/api/reports/"+job.ID, tok, ""); rr.Code != http.StatusOK {
		t.Errorf("owner get: %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/api/reports/"+job.ID, token(t, "u2", core.RoleUser), ""); rr.Code != http.StatusNotFound {
		t.Errorf("other user get: expected 404, got %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/api/reports/"+job.ID, token(t, "root", core.RoleAdmin), ""); rr.Code != http.StatusOK {
		t.Errorf("admin get: %d", rr.Code)
	}

	for _, body := range []string{
		`{"month":"2024-01","format":"pdf"}`,
		`{"month":"2024-01","format":"doc","to_sheets":true}`,
		`{"month":"2024-01","format":"pdf","recipients":["not an address"]}`,
		`{"month":"24-01","format":"pdf","to_sheets":true}`,
		``,
	} {
		if rr := env.do(http.MethodPost, "/api/reports", tok, body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestReportRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerMinute: 1})
	tok := token(t, "u1", core.RoleUser)

	if rr := env.do(http.MethodGet, "/api/analysis/report.pdf?month=2024-01", tok, ""); rr.Code != http.StatusOK {
		t.Fatalf("first download: %d", rr.Code)
	}
	rr := env.do(http.MethodGet, "/api/analysis/export.xlsx?month=2024-01", tok, "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/api/analysis?month=2024-01", tok, ""); rr.Code != http.StatusOK {
		t.Errorf("analysis is not rate limited: %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/api/analysis/report.pdf?month=2024-01", token(t, "u2", core.RoleUser), ""); rr.Code != http.StatusOK {
		t.Errorf("other user: %d", rr.Code)
	}
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t, Config{})
	rr := env.do(http.MethodGet, "/nope", "", "")
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Header().Get("Content-Type"), "application/json") {
		t.Errorf("unknown route: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if rr := env.do(http.MethodDelete, "/healthz", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: %d", rr.Code)
	}
}

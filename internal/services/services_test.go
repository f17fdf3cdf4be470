package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/core"
	"finwise/internal/report"
	"finwise/internal/source"
	"finwise/internal/storage"
)

var user = core.Session{Subject: "u1", Role: core.RoleUser}

func record(id string, kind core.Kind, amount, date, category string) core.Record {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	r := core.Record{ID: id, Kind: kind, Amount: core.MustMoney(amount), Date: d}
	if category != "" {
		r.Category = &core.CategoryRef{ID: category}
	}
	return r
}

func newMemorySource() *source.Memory {
	incomes := []core.Record{
		record("i1", core.KindIncome, "120000", "2024-01-05", ""),
		record("i2", core.KindIncome, "1000", "2024-02-05", ""),
	}
	expenses := []core.Record{
		record("e1", core.KindExpense, "30000", "2024-01-10", "food"),
		record("e2", core.KindExpense, "10000", "2024-02-01", "transport"),
		record("e3", core.KindExpense, "500", "2024-01-20", ""),
	}
	cats := []core.Category{{ID: "food", Name: "Food"}, {ID: "transport", Name: "Transport"}}
	goals := []core.SavingsGoal{{ID: "g1", Title: "Bike", TargetAmount: core.MoneyFromInt(500), CurrentAmount: core.MoneyFromInt(100)}}
	return source.NewMemory(incomes, expenses, cats, goals)
}

func month(s string) core.MonthKey {
	m, err := core.ParseMonthKey(s)
	if err != nil {
		panic(err)
	}
	return m
}

func TestAnalysisService_Analyze(t *testing.T) {
	svc := NewAnalysisService(newMemorySource(), 0, nil)
	a, err := svc.Analyze(context.Background(), user, month("2024-01"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !a.Income.Equal(core.MoneyFromInt(120000)) || !a.Expense.Equal(core.MoneyFromInt(30500)) {
		t.Errorf("income %s expense %s", a.Income, a.Expense)
	}
	if !a.Net.Equal(core.MoneyFromInt(89500)) || a.Overspent {
		t.Errorf("net %s overspent %v", a.Net, a.Overspent)
	}
	if !a.Balance.Equal(core.MoneyFromInt(80500)) {
		t.Errorf("balance %s", a.Balance)
	}
	if len(a.Categories.Shares) != 2 || a.Categories.Shares[0].Name != "Food" || a.Categories.Shares[1].Name != core.OtherCategory {
		t.Errorf("categories %+v", a.Categories.Shares)
	}
	if len(a.Recent) != 3 || a.Recent[0].ID != "e3" {
		t.Errorf("recent %+v", a.Recent)
	}
	if len(a.Monthly) != 2 || len(a.Trend) != 2 {
		t.Errorf("monthly %d trend %d", len(a.Monthly), len(a.Trend))
	}

	feb, _ := svc.Analyze(context.Background(), user, month("2024-02"))
	if !feb.Overspent {
		t.Errorf("february should be overspent")
	}

	if _, err := svc.Analyze(context.Background(), user, core.MonthKey{}); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Errorf("expected ErrInvalidMonthKey, got %v", err)
	}
}

func TestAnalysisService_Savings(t *testing.T) {
	svc := NewAnalysisService(newMemorySource(), 3, nil)
	ctx := context.Background()

	s, err := svc.MonthlySavings(ctx, user, month("2024-02"))
	if err != nil || !s.Savings.Equal(core.MoneyFromInt(-9000)) {
		t.Fatalf("MonthlySavings() = %+v, %v", s, err)
	}

	progress, err := svc.GoalProgress(ctx, user)
	if err != nil || len(progress) != 1 || progress[0].Percent.String() != "20" {
		t.Fatalf("GoalProgress() = %+v, %v", progress, err)
	}
	p, err := svc.AddSavings(ctx, user, "g1", core.MoneyFromInt(400))
	if err != nil || !p.Completed || p.BarWidth.String() != "100" {
		t.Fatalf("AddSavings() = %+v, %v", p, err)
	}
	if _, err := svc.AddSavings(ctx, user, "g1", core.MoneyFromInt(-1)); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.AddSavings(ctx, user, "missing", core.MoneyFromInt(1)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	year, err := svc.YearOverview(ctx, user, 2024)
	if err != nil || len(year) != 12 || !year[0].Income.Equal(core.MoneyFromInt(120000)) {
		t.Fatalf("YearOverview() = %+v, %v", year, err)
	}
	if _, err := svc.YearOverview(ctx, user, 0); err == nil {
		t.Errorf("expected error for year 0")
	}
}

type fakeJobs struct {
	jobs map[string]storage.ReportJob
	err  error
}

func (f *fakeJobs) CreateJob(_ context.Context, job *storage.ReportJob) error {
	if f.err != nil {
		return f.err
	}
	job.Status = storage.JobPending
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeJobs) Job(_ context.Context, id string) (storage.ReportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return job, core.ErrNotFound
	}
	return job, nil
}

type fakePublisher struct {
	sent []*amqp.ReportRequest
	err  error
}

func (f *fakePublisher) PublishReportRequest(_ context.Context, msg *amqp.ReportRequest) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestReportService_Enqueue(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]storage.ReportJob{}}
	pub := &fakePublisher{}
	svc := NewReportService(NewAnalysisService(newMemorySource(), 0, nil), jobs, pub, nil)
	ctx := context.Background()
	sess := core.Session{Subject: "u1", Token: "tok"}

	job, err := svc.Enqueue(ctx, sess, ReportRequest{Month: month("2024-01"), Format: report.FormatPDF, Recipients: []string{"me@example.com"}})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if job.ID == "" || job.Status != storage.JobPending || job.User != "u1" {
		t.Errorf("unexpected job %+v", job)
	}
	if len(pub.sent) != 1 || pub.sent[0].JobID != job.ID || pub.sent[0].Token != "tok" {
		t.Errorf("published %+v", pub.sent)
	}

	// publish failure keeps the job
	pub.err = errors.New("broker down")
	if _, err := svc.Enqueue(ctx, sess, ReportRequest{Month: month("2024-01"), Format: report.FormatXLSX, ToSheets: true}); err != nil {
		t.Errorf("publish failure should not fail Enqueue: %v", err)
	}
	if len(jobs.jobs) != 2 {
		t.Errorf("expected 2 stored jobs, got %d", len(jobs.jobs))
	}

	if _, err := svc.Job(ctx, core.Session{Subject: "u2"}, job.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("other users must not see the job, got %v", err)
	}
	if _, err := svc.Job(ctx, core.Session{Subject: "admin", Role: core.RoleAdmin}, job.ID); err != nil {
		t.Errorf("admin should see the job: %v", err)
	}
}

func TestReportRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  ReportRequest
		want string
	}{
		{"valid", ReportRequest{Month: month("2024-01"), Format: report.FormatPDF, ToSheets: true}, ""},
		{"no month", ReportRequest{Format: report.FormatPDF, ToSheets: true}, "invalid month"},
		{"json format", ReportRequest{Month: month("2024-01"), Format: report.FormatJSON, ToSheets: true}, "unsupported report format"},
		{"no destination", ReportRequest{Month: month("2024-01"), Format: report.FormatPDF}, "recipients or a sheets export"},
		{"bad recipient", ReportRequest{Month: month("2024-01"), Format: report.FormatPDF, Recipients: []string{"nope"}}, "invalid recipient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestReportService_Render(t *testing.T) {
	svc := NewReportService(NewAnalysisService(newMemorySource(), 0, nil), nil, nil, nil)
	data, name, err := svc.Render(context.Background(), user, month("2024-01"), report.FormatPDF)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if name != "FinWise-Analysis-2024-01.pdf" || !strings.HasPrefix(string(data), "%PDF-") {
		t.Errorf("unexpected render %s (%d bytes)", name, len(data))
	}
	if _, err := svc.Enqueue(context.Background(), user, ReportRequest{Month: month("2024-01"), Format: report.FormatPDF, ToSheets: true}); err == nil {
		t.Errorf("Enqueue without a job store should fail")
	}
}

func TestSyncService_SyncUser(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	svc := NewSyncService(newMemorySource(), store, nil)
	res, err := svc.SyncUser(ctx, user)
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if res.Records != 5 || res.Categories != 2 || res.Goals != 1 {
		t.Errorf("result %+v", res)
	}

	expenses, _ := store.Records(ctx, "u1", core.KindExpense)
	if len(expenses) != 3 {
		t.Errorf("stored %d expenses", len(expenses))
	}
	st, err := store.LastSync(ctx, "u1")
	if err != nil || st.Records != 5 || time.Since(st.SyncedAt) > time.Minute {
		t.Errorf("LastSync() = %+v, %v", st, err)
	}
}

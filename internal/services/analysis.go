package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finwise/internal/aggregate"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/report"
	"finwise/internal/source"
)

const (
	DefaultTrendMonths = 6
	RecentLimit        = 5
)

// Analysis is the model behind the analysis page of one month.
type Analysis struct {
	Month      core.MonthKey          `json:"month"`
	Income     core.Money             `json:"income"`
	Expense    core.Money             `json:"expense"`
	Net        core.Money             `json:"net"`
	Balance    core.Money             `json:"balance"`
	Overspent  bool                   `json:"overspent"`
	Categories core.CategoryBreakdown `json:"categories"`
	Trend      []aggregate.TrendPoint `json:"trend"`
	Recent     []core.Record          `json:"-"`
	Monthly    []core.MonthlyBucket   `json:"monthly"`
	Rejected   int                    `json:"rejected"`
	Incomes    []core.Record          `json:"-"`
	Expenses   []core.Record          `json:"-"`
}

// AnalysisService computes summaries over the records of a source.
type AnalysisService struct {
	src         source.Source
	trendMonths int
	logger      *log.Logger
	now         func() time.Time
}

func NewAnalysisService(src source.Source, trendMonths int, logger *log.Logger) *AnalysisService {
	if trendMonths <= 0 {
		trendMonths = DefaultTrendMonths
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &AnalysisService{
		src:         src,
		trendMonths: trendMonths,
		logger:      logger.WithComponent(log.ComponentAnalysis),
		now:         time.Now,
	}
}

// Source returns the source the service reads from.
func (s *AnalysisService) Source() source.Source {
	return s.src
}

// CurrentMonth is the month used when a caller does not pick one.
func (s *AnalysisService) CurrentMonth() core.MonthKey {
	return core.CurrentMonth(s.now())
}

func (s *AnalysisService) load(ctx context.Context, sess core.Session) (source.Snapshot, error) {
	snap, err := source.Load(ctx, s.src, sess)
	if err != nil {
		return source.Snapshot{}, fmt.Errorf("load records: %w", err)
	}
	if n := snap.Rejected(); n > 0 {
		s.logger.WarnContext(ctx, "Skipped malformed records",
			log.FieldOperation, log.OpDecode,
			log.FieldUser, sess.Subject,
			log.FieldRejected, n,
			log.FieldError, errors.Join(snap.Incomes.Err(), snap.Expenses.Err()))
	}
	return snap, nil
}

// Analyze builds the analysis of month for the session's user.
func (s *AnalysisService) Analyze(ctx context.Context, sess core.Session, month core.MonthKey) (*Analysis, error) {
	if month.IsZero() {
		return nil, core.ErrInvalidMonthKey
	}
	snap, err := s.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	all := snap.All()
	incomes := aggregate.FilterByMonth(snap.Incomes.Records, month.Year, month.Month)
	expenses := aggregate.FilterByMonth(snap.Expenses.Records, month.Year, month.Month)

	income := aggregate.Total(incomes)
	expense := aggregate.Total(expenses)
	a := &Analysis{
		Month:      month,
		Income:     income,
		Expense:    expense,
		Net:        aggregate.ComputeBalance(incomes, expenses),
		Balance:    aggregate.ComputeBalance(snap.Incomes.Records, snap.Expenses.Records),
		Overspent:  expense.GreaterThan(income),
		Categories: aggregate.BucketByCategory(expenses, snap.Categories),
		Trend:      aggregate.ExpenseTrend(snap.Expenses.Records, s.trendMonths),
		Recent:     aggregate.RecentTransactions(aggregate.FilterByMonth(all, month.Year, month.Month), RecentLimit),
		Monthly:    aggregate.BucketByMonth(all),
		Rejected:   snap.Rejected(),
		Incomes:    incomes,
		Expenses:   expenses,
	}

	s.logger.DebugContext(ctx, "Analysis computed",
		log.FieldOperation, log.OpAnalyze,
		log.FieldUser, sess.Subject,
		log.FieldMonth, month.String(),
		log.FieldCount, len(all))
	return a, nil
}

// Categories returns the expense distribution of month.
func (s *AnalysisService) Categories(ctx context.Context, sess core.Session, month core.MonthKey) (core.CategoryBreakdown, error) {
	snap, err := s.load(ctx, sess)
	if err != nil {
		return core.CategoryBreakdown{}, err
	}
	expenses := aggregate.FilterByMonth(snap.Expenses.Records, month.Year, month.Month)
	return aggregate.BucketByCategory(expenses, snap.Categories), nil
}

// Monthly returns the sparse monthly buckets over every record.
func (s *AnalysisService) Monthly(ctx context.Context, sess core.Session) ([]core.MonthlyBucket, error) {
	snap, err := s.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	return aggregate.BucketByMonth(snap.All()), nil
}

// Trend returns the expense trend of the last configured months.
func (s *AnalysisService) Trend(ctx context.Context, sess core.Session) ([]aggregate.TrendPoint, error) {
	res, err := s.src.Records(ctx, sess, core.KindExpense)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	return aggregate.ExpenseTrend(res.Records, s.trendMonths), nil
}

// MonthlySavings reports what was left over in month.
func (s *AnalysisService) MonthlySavings(ctx context.Context, sess core.Session, month core.MonthKey) (core.MonthlySavings, error) {
	snap, err := s.load(ctx, sess)
	if err != nil {
		return core.MonthlySavings{}, err
	}
	return aggregate.MonthlySavings(snap.All(), month), nil
}

// YearOverview returns the twelve months of year, zero-filled.
func (s *AnalysisService) YearOverview(ctx context.Context, sess core.Session, year int) ([]core.MonthlyBucket, error) {
	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: year %d", core.ErrInvalidMonthKey, year)
	}
	snap, err := s.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	return aggregate.YearOverview(snap.All(), year), nil
}

// GoalProgress returns every savings goal with its completion state.
func (s *AnalysisService) GoalProgress(ctx context.Context, sess core.Session) ([]core.GoalProgress, error) {
	goals, err := s.src.Goals(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	out := make([]core.GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, aggregate.Progress(g))
	}
	return out, nil
}

// AddSavings adds amount to a goal and returns its new progress.
func (s *AnalysisService) AddSavings(ctx context.Context, sess core.Session, goalID string, amount core.Money) (core.GoalProgress, error) {
	if amount.IsNegative() || amount.IsZero() {
		return core.GoalProgress{}, fmt.Errorf("%w: savings must be positive", core.ErrInvalidAmount)
	}
	g, err := s.src.AddSavings(ctx, sess, goalID, amount)
	if err != nil {
		return core.GoalProgress{}, fmt.Errorf("add savings to %s: %w", goalID, err)
	}
	s.logger.InfoContext(ctx, "Savings added",
		log.FieldUser, sess.Subject,
		"goal_id", goalID,
		"amount", amount.String())
	return aggregate.Progress(g), nil
}

// Summary converts the analysis into the input of the report renderers.
func (a *Analysis) Summary(user string, generatedAt time.Time) report.Summary {
	return report.Summary{
		User:        user,
		Month:       a.Month,
		Income:      a.Income,
		Expense:     a.Expense,
		Net:         a.Net,
		Balance:     a.Balance,
		Overspent:   a.Overspent,
		Categories:  a.Categories,
		Trend:       a.Trend,
		Monthly:     a.Monthly,
		Incomes:     a.Incomes,
		Expenses:    a.Expenses,
		GeneratedAt: generatedAt,
	}
}

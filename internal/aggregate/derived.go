package aggregate

import (
	"sort"

	"finwise/internal/core"

	"github.com/shopspring/decimal"
)

// TrendPoint is one month of the expense trend chart.
type TrendPoint struct {
	Month   core.MonthKey `json:"month"`
	Label   string        `json:"label"`
	Expense core.Money    `json:"expense"`
}

// ExpenseTrend returns the expense totals of the last n months that have
// expenses, oldest first. Months without expenses are skipped.
func ExpenseTrend(records []core.Record, n int) []TrendPoint {
	out := []TrendPoint{}
	if n <= 0 {
		return out
	}
	buckets := BucketByMonth(FilterByKind(records, core.KindExpense))
	if len(buckets) > n {
		buckets = buckets[len(buckets)-n:]
	}
	for _, b := range buckets {
		out = append(out, TrendPoint{Month: b.Month, Label: b.Month.Label(), Expense: b.Expense})
	}
	return out
}

// YearOverview returns the twelve monthly buckets of year, zero-filled.
func YearOverview(records []core.Record, year int) []core.MonthlyBucket {
	from := core.MonthKey{Year: year, Month: 1}
	to := core.MonthKey{Year: year, Month: 12}
	return FillMonths(BucketByMonth(records), from, to)
}

// MonthlySavings reports income, expense and what was left over in month.
func MonthlySavings(records []core.Record, month core.MonthKey) core.MonthlySavings {
	scoped := FilterByMonth(records, month.Year, month.Month)
	income := Total(FilterByKind(scoped, core.KindIncome))
	expense := Total(FilterByKind(scoped, core.KindExpense))
	return core.MonthlySavings{
		Month:   month,
		Income:  income,
		Expense: expense,
		Savings: income.Sub(expense),
	}
}

// Progress computes the completion of a savings goal. Percent may exceed 100,
// BarWidth never does.
func Progress(goal core.SavingsGoal) core.GoalProgress {
	pct := Percent(goal.CurrentAmount, goal.TargetAmount)
	bar := pct
	if bar.GreaterThan(hundred) {
		bar = hundred
	}
	remaining := goal.TargetAmount.Sub(goal.CurrentAmount)
	if remaining.IsNegative() {
		remaining = core.Zero
	}
	return core.GoalProgress{
		Goal:      goal,
		Percent:   pct,
		BarWidth:  bar,
		Remaining: remaining,
		Completed: !goal.TargetAmount.IsZero() && !goal.CurrentAmount.Amount.LessThan(goal.TargetAmount.Amount),
	}
}

// RecentTransactions returns up to n records, latest date first. Records
// sharing a date keep their input order.
func RecentTransactions(records []core.Record, n int) []core.Record {
	sorted := make([]core.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date.Time)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// SavingsRate is savings over income in percent, one decimal digit.
func SavingsRate(s core.MonthlySavings) decimal.Decimal {
	return Percent(s.Savings, s.Income)
}

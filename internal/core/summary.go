package core

import "github.com/shopspring/decimal"

// MonthlyBucket aggregates incomes and expenses of one calendar month.
type MonthlyBucket struct {
	Month   MonthKey `json:"month"`
	Income  Money    `json:"income"`
	Expense Money    `json:"expense"`
	Net     Money    `json:"net"`
}

// CategoryShare is one slice of the category distribution.
type CategoryShare struct {
	Name    string          `json:"name"`
	Amount  Money           `json:"amount"`
	Percent decimal.Decimal `json:"percent"` // one decimal digit
}

// CategoryBreakdown is the distribution of a record set over category names.
type CategoryBreakdown struct {
	Total  Money           `json:"total"`
	Shares []CategoryShare `json:"shares"`
}

// ByName returns the breakdown as a name -> amount mapping.
func (b CategoryBreakdown) ByName() map[string]Money {
	out := make(map[string]Money, len(b.Shares))
	for _, s := range b.Shares {
		out[s.Name] = s.Amount
	}
	return out
}

// MonthlySavings is what was left over in a month.
type MonthlySavings struct {
	Month   MonthKey `json:"month"`
	Income  Money    `json:"income"`
	Expense Money    `json:"expense"`
	Savings Money    `json:"savings"`
}

// GoalProgress decorates a savings goal with its completion state.
type GoalProgress struct {
	Goal      SavingsGoal     `json:"-"`
	Percent   decimal.Decimal `json:"percent"`   // may exceed 100
	BarWidth  decimal.Decimal `json:"bar_width"` // capped at 100
	Remaining Money           `json:"remaining"` // never negative
	Completed bool            `json:"completed"`
}

package report

import (
	"encoding/json"

	"finwise/internal/aggregate"
	"finwise/internal/core"
)

type jsonReport struct {
	User       string                 `json:"user,omitempty"`
	Month      core.MonthKey          `json:"month"`
	Income     core.Money             `json:"income"`
	Expense    core.Money             `json:"expense"`
	Net        core.Money             `json:"net"`
	Balance    core.Money             `json:"balance"`
	Overspent  bool                   `json:"overspent"`
	Categories core.CategoryBreakdown `json:"categories"`
	Trend      []aggregate.TrendPoint `json:"trend"`
	Monthly    []core.MonthlyBucket   `json:"monthly"`
}

// JSON renders the summary without the raw records.
func JSON(s Summary) ([]byte, error) {
	return json.MarshalIndent(jsonReport{
		User:       s.User,
		Month:      s.Month,
		Income:     s.Income,
		Expense:    s.Expense,
		Net:        s.Net,
		Balance:    s.Balance,
		Overspent:  s.Overspent,
		Categories: s.Categories,
		Trend:      s.Trend,
		Monthly:    s.Monthly,
	}, "", "  ")
}

package http

import (
	"finwise/internal/api"
	"finwise/internal/core"
	"finwise/internal/services"

	"github.com/shopspring/decimal"
)

type recordView struct {
	ID       string     `json:"id"`
	Kind     core.Kind  `json:"kind"`
	Amount   core.Money `json:"amount"`
	Date     core.Date  `json:"date"`
	Category string     `json:"category,omitempty"`
	Note     string     `json:"note,omitempty"`
}

func newRecordView(r core.Record) recordView {
	v := recordView{ID: r.ID, Kind: r.Kind, Amount: r.Amount, Date: r.Date, Note: r.Note}
	if r.Category != nil {
		v.Category = r.Category.Name
		if v.Category == "" {
			v.Category = r.Category.ID
		}
	}
	return v
}

type analysisView struct {
	*services.Analysis
	Recent []recordView `json:"recent"`
}

func newAnalysisView(a *services.Analysis) analysisView {
	v := analysisView{Analysis: a, Recent: make([]recordView, 0, len(a.Recent))}
	for _, r := range a.Recent {
		v.Recent = append(v.Recent, newRecordView(r))
	}
	return v
}

type goalView struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	TargetAmount  core.Money      `json:"target_amount"`
	CurrentAmount core.Money      `json:"current_amount"`
	Image         string          `json:"image,omitempty"`
	Percent       decimal.Decimal `json:"percent"`
	BarWidth      decimal.Decimal `json:"bar_width"`
	Remaining     core.Money      `json:"remaining"`
	Completed     bool            `json:"completed"`
}

func newGoalView(p core.GoalProgress) goalView {
	return goalView{
		ID:            p.Goal.ID,
		Title:         p.Goal.Title,
		TargetAmount:  p.Goal.TargetAmount,
		CurrentAmount: p.Goal.CurrentAmount,
		Image:         p.Goal.ImageRef,
		Percent:       p.Percent,
		BarWidth:      p.BarWidth,
		Remaining:     p.Remaining,
		Completed:     p.Completed,
	}
}

type savingsView struct {
	core.MonthlySavings
	Rate decimal.Decimal `json:"rate"`
}

type overviewView struct {
	Year   int                  `json:"year"`
	Months []core.MonthlyBucket `json:"months"`
	Stats  *api.AdminStats      `json:"stats,omitempty"`
	Users  []api.User           `json:"users,omitempty"`
}

package report

import (
	"bytes"
	"fmt"

	"finwise/internal/aggregate"
	"finwise/internal/core"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartWidth  = 800
	chartHeight = 400
)

var (
	incomeColor  = drawing.ColorFromHex("16a34a")
	expenseColor = drawing.ColorFromHex("dc2626")
)

func moneyFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

func background() chart.Style {
	return chart.Style{
		Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		FillColor: chart.ColorWhite,
	}
}

// TrendChart renders the expense trend as a bar chart.
func TrendChart(points []aggregate.TrendPoint) ([]byte, error) {
	bars := make([]chart.Value, 0, len(points))
	nonZero := false
	for _, p := range points {
		v := p.Expense.Float64()
		nonZero = nonZero || v != 0
		bars = append(bars, chart.Value{
			Label: p.Label,
			Value: v,
			Style: chart.Style{FillColor: expenseColor, StrokeColor: expenseColor},
		})
	}
	if !nonZero {
		return nil, ErrNoData
	}

	graph := chart.BarChart{
		Title:      "Expenses",
		Width:      chartWidth,
		Height:     chartHeight,
		BarWidth:   60,
		Background: background(),
		YAxis: chart.YAxis{
			ValueFormatter: moneyFormatter,
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render trend chart: %w", err)
	}
	return buf.Bytes(), nil
}

// CategoryChart renders the category distribution as a pie chart.
func CategoryChart(b core.CategoryBreakdown) ([]byte, error) {
	if b.Total.IsZero() {
		return nil, ErrNoData
	}
	values := make([]chart.Value, 0, len(b.Shares))
	for _, s := range b.Shares {
		if s.Amount.IsZero() {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%s%%)", s.Name, s.Percent.String()),
			Value: s.Amount.Float64(),
		})
	}

	pie := chart.PieChart{
		Title:      "Expenses by category",
		Width:      chartHeight * 2,
		Height:     chartHeight * 2,
		Values:     values,
		Background: background(),
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render category chart: %w", err)
	}
	return buf.Bytes(), nil
}

// YearChart renders income and expense of every month as two lines.
func YearChart(year int, buckets []core.MonthlyBucket) ([]byte, error) {
	if len(buckets) == 0 {
		return nil, ErrNoData
	}
	xs := make([]float64, len(buckets))
	income := make([]float64, len(buckets))
	expense := make([]float64, len(buckets))
	ticks := make([]chart.Tick, len(buckets))
	nonZero := false
	for i, b := range buckets {
		xs[i] = float64(i + 1)
		income[i] = b.Income.Float64()
		expense[i] = b.Expense.Float64()
		nonZero = nonZero || income[i] != 0 || expense[i] != 0
		ticks[i] = chart.Tick{Value: xs[i], Label: b.Month.Month.String()[:3]}
	}
	if !nonZero {
		return nil, ErrNoData
	}
	if len(buckets) == 1 {
		// a single point has no x range
		xs = append(xs, xs[0]+1)
		income = append(income, income[0])
		expense = append(expense, expense[0])
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("Income and expenses %d", year),
		Width:      chartWidth,
		Height:     chartHeight,
		Background: background(),
		XAxis:      chart.XAxis{Ticks: ticks},
		YAxis:      chart.YAxis{ValueFormatter: moneyFormatter},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Income",
				XValues: xs,
				YValues: income,
				Style:   chart.Style{StrokeColor: incomeColor, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "Expense",
				XValues: xs,
				YValues: expense,
				Style:   chart.Style{StrokeColor: expenseColor, StrokeWidth: 2},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render year chart: %w", err)
	}
	return buf.Bytes(), nil
}

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"finwise/internal/aggregate"
	"finwise/internal/core"

	"github.com/xuri/excelize/v2"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleSummary() Summary {
	month, _ := core.ParseMonthKey("2024-01")
	d := func(s string) core.Date {
		v, _ := core.ParseDate(s)
		return v
	}
	incomes := []core.Record{
		{ID: "i1", Kind: core.KindIncome, Amount: core.MoneyFromInt(120000), Date: d("2024-01-05")},
	}
	expenses := []core.Record{
		{ID: "e1", Kind: core.KindExpense, Amount: core.MoneyFromInt(30000), Date: d("2024-01-10"), Category: &core.CategoryRef{ID: "food"}},
		{ID: "e2", Kind: core.KindExpense, Amount: core.MoneyFromInt(10000), Date: d("2023-12-01"), Category: &core.CategoryRef{ID: "rent"}},
	}
	cats := []core.Category{{ID: "food", Name: "Food"}, {ID: "rent", Name: "Rent"}}
	all := append(append([]core.Record{}, incomes...), expenses...)
	jan := aggregate.FilterByMonth(expenses, 2024, time.January)
	return Summary{
		User:        "u1",
		Month:       month,
		Income:      core.MoneyFromInt(120000),
		Expense:     core.MoneyFromInt(30000),
		Net:         core.MoneyFromInt(90000),
		Balance:     aggregate.ComputeBalance(incomes, expenses),
		Categories:  aggregate.BucketByCategory(jan, cats),
		Trend:       aggregate.ExpenseTrend(expenses, 6),
		Monthly:     aggregate.BucketByMonth(all),
		Incomes:     incomes,
		Expenses:    jan,
		GeneratedAt: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestFileName(t *testing.T) {
	month, _ := core.ParseMonthKey("2024-03")
	if got := FileName(month, FormatPDF); got != "FinWise-Analysis-2024-03.pdf" {
		t.Fatalf("FileName() = %s", got)
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if f, err := ParseFormat("xlsx"); err != nil || !strings.Contains(f.ContentType(), "spreadsheetml") {
		t.Fatalf("ParseFormat(xlsx) = %s, %v", f, err)
	}
}

func TestCharts(t *testing.T) {
	s := sampleSummary()
	tests := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"trend", func() ([]byte, error) { return TrendChart(s.Trend) }},
		{"categories", func() ([]byte, error) { return CategoryChart(s.Categories) }},
		{"year", func() ([]byte, error) {
			return YearChart(2024, aggregate.YearOverview(append(s.Incomes, s.Expenses...), 2024))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			png, err := tt.render()
			if err != nil {
				t.Fatalf("render error = %v", err)
			}
			if !bytes.HasPrefix(png, pngMagic) {
				t.Fatalf("output is not a PNG")
			}
		})
	}
}

func TestChartsWithoutData(t *testing.T) {
	if _, err := TrendChart(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("TrendChart(nil) error = %v", err)
	}
	if _, err := CategoryChart(core.CategoryBreakdown{Total: core.Zero}); !errors.Is(err, ErrNoData) {
		t.Errorf("CategoryChart(empty) error = %v", err)
	}
	if _, err := YearChart(2024, aggregate.YearOverview(nil, 2024)); !errors.Is(err, ErrNoData) {
		t.Errorf("YearChart(empty) error = %v", err)
	}
}

func TestPDF(t *testing.T) {
	for _, s := range []Summary{sampleSummary(), {Month: core.MonthKey{Year: 2024, Month: time.May}}} {
		data, err := PDF(s)
		if err != nil {
			t.Fatalf("PDF() error = %v", err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			t.Fatalf("output is not a PDF")
		}
	}
}

func TestXLSX(t *testing.T) {
	data, err := XLSX(sampleSummary())
	if err != nil {
		t.Fatalf("XLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 3 || got[0] != SheetSummary || got[1] != SheetCategories || got[2] != SheetMonthly {
		t.Fatalf("sheets = %v", got)
	}
	if v, _ := f.GetCellValue(SheetSummary, "B1"); v != "2024-01" {
		t.Errorf("summary month = %q", v)
	}
	rows, err := f.GetRows(SheetCategories)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "Food" || rows[2][0] != "Total" {
		t.Errorf("category rows = %v", rows)
	}
	monthly, _ := f.GetRows(SheetMonthly)
	if len(monthly) != 3 || monthly[1][0] != "2023-12" || monthly[2][0] != "2024-01" {
		t.Errorf("monthly rows = %v", monthly)
	}
}

func TestJSONAndRows(t *testing.T) {
	s := sampleSummary()
	data, err := Render(FormatJSON, s)
	if err != nil {
		t.Fatalf("Render(json) error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["month"] != "2024-01" || got["overspent"] != false {
		t.Fatalf("unexpected json: %s", data)
	}

	rows := MonthlyRows(s)
	if len(rows) != 3 || rows[0][1] != "Food" || rows[1][1] != "Income" || rows[2][2] != "90000.00" {
		t.Fatalf("MonthlyRows() = %v", rows)
	}
}

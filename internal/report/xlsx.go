package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary    = "Summary"
	SheetCategories = "Categories"
	SheetMonthly    = "Monthly"
)

// XLSX renders the workbook with a Summary, a Categories and a Monthly sheet.
func XLSX(s Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetCategories, SheetMonthly} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1E40AF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	summary := [][]any{
		{"Month", s.Month.String()},
		{"Income", s.Income.Float64()},
		{"Expenses", s.Expense.Float64()},
		{"Net", s.Net.Float64()},
		{"Balance", s.Balance.Float64()},
		{"Overspent", s.Overspent},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return nil, err
	}
	f.SetColWidth(SheetSummary, "A", "A", 14)

	categories := [][]any{{"Category", "Amount", "Percent"}}
	for _, share := range s.Categories.Shares {
		pct, _ := share.Percent.Float64()
		categories = append(categories, []any{share.Name, share.Amount.Float64(), pct})
	}
	categories = append(categories, []any{"Total", s.Categories.Total.Float64(), nil})
	if err := writeRows(f, SheetCategories, categories); err != nil {
		return nil, err
	}
	f.SetCellStyle(SheetCategories, "A1", "C1", header)
	f.SetColWidth(SheetCategories, "A", "A", 24)

	monthly := [][]any{{"Month", "Income", "Expense", "Net"}}
	for _, b := range s.Monthly {
		monthly = append(monthly, []any{b.Month.String(), b.Income.Float64(), b.Expense.Float64(), b.Net.Float64()})
	}
	if err := writeRows(f, SheetMonthly, monthly); err != nil {
		return nil, err
	}
	f.SetCellStyle(SheetMonthly, "A1", "D1", header)

	f.SetActiveSheet(0)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// MonthlyRows returns the rows appended to an external spreadsheet: one per
// expense category, then the income and net of the month.
func MonthlyRows(s Summary) [][]any {
	month := s.Month.String()
	rows := make([][]any, 0, len(s.Categories.Shares)+2)
	for _, share := range s.Categories.Shares {
		rows = append(rows, []any{month, share.Name, share.Amount.String(), share.Percent.String()})
	}
	return append(rows,
		[]any{month, "Income", s.Income.String(), ""},
		[]any{month, "Net", s.Net.String(), ""},
	)
}

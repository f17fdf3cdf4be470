// Package report renders the monthly analysis as PNG charts, a PDF document
// and an XLSX workbook.
package report

import (
	"errors"
	"fmt"
	"time"

	"finwise/internal/aggregate"
	"finwise/internal/core"
)

// ErrNoData is returned by chart renderers when there is nothing to draw.
var ErrNoData = errors.New("no data to render")

// Format is an export format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatPDF, FormatXLSX, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// FileName returns the download name of a report, e.g.
// FinWise-Analysis-2024-01.pdf.
func FileName(month core.MonthKey, f Format) string {
	return fmt.Sprintf("FinWise-Analysis-%s.%s", month, f)
}

// Summary is everything a rendered report shows.
type Summary struct {
	User        string
	Month       core.MonthKey
	Income      core.Money
	Expense     core.Money
	Net         core.Money
	Balance     core.Money
	Overspent   bool
	Categories  core.CategoryBreakdown
	Trend       []aggregate.TrendPoint
	Monthly     []core.MonthlyBucket
	Incomes     []core.Record
	Expenses    []core.Record
	GeneratedAt time.Time
}

// Render renders s in format f.
func Render(f Format, s Summary) ([]byte, error) {
	switch f {
	case FormatPDF:
		return PDF(s)
	case FormatXLSX:
		return XLSX(s)
	case FormatJSON:
		return JSON(s)
	}
	return nil, fmt.Errorf("unsupported report format %q", f)
}

package report

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/signintech/gopdf"
	"github.com/wcharczuk/go-chart/v2/roboto"
)

const (
	fontFamily = "roboto"
	pageWidth  = 595.28
	margin     = 40.0
	lineHeight = 18.0
	maxRows    = 20
)

type pdfWriter struct {
	pdf *gopdf.GoPdf
	y   float64
}

func (w *pdfWriter) text(x float64, size int, s string) error {
	if err := w.pdf.SetFont(fontFamily, "", size); err != nil {
		return err
	}
	w.pdf.SetX(x)
	w.pdf.SetY(w.y)
	return w.pdf.Cell(nil, s)
}

func (w *pdfWriter) line(size int, cols ...string) error {
	x := margin
	step := (pageWidth - 2*margin) / float64(len(cols))
	for _, c := range cols {
		if err := w.text(x, size, c); err != nil {
			return err
		}
		x += step
	}
	w.y += lineHeight
	return nil
}

// PDF renders the A4 analysis report: summary, category table and the
// expense trend chart.
func PDF(s Summary) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	if err := pdf.AddTTFFontData(fontFamily, roboto.Roboto); err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	pdf.AddPage()
	w := &pdfWriter{pdf: pdf, y: margin}

	pdf.SetFillColor(30, 64, 175)
	pdf.RectFromUpperLeftWithStyle(0, 0, pageWidth, 90, "F")
	pdf.SetTextColor(255, 255, 255)
	w.y = 30
	if err := w.text(margin, 22, "FinWise analysis "+s.Month.Label()); err != nil {
		return nil, err
	}
	if !s.GeneratedAt.IsZero() {
		w.y = 60
		if err := w.text(margin, 11, "Generated "+s.GeneratedAt.Format("2006-01-02 15:04")); err != nil {
			return nil, err
		}
	}

	pdf.SetTextColor(17, 24, 39)
	w.y = 115
	rows := [][]string{
		{"Income", s.Income.String()},
		{"Expenses", s.Expense.String()},
		{"Net", s.Net.String()},
		{"Balance", s.Balance.String()},
	}
	for _, r := range rows {
		if err := w.line(12, r...); err != nil {
			return nil, err
		}
	}
	if s.Overspent {
		pdf.SetTextColor(220, 38, 38)
		if err := w.line(12, "Expenses exceed income this month"); err != nil {
			return nil, err
		}
		pdf.SetTextColor(17, 24, 39)
	}

	w.y += lineHeight
	if err := w.line(15, "Expenses by category"); err != nil {
		return nil, err
	}
	if len(s.Categories.Shares) == 0 {
		if err := w.line(11, "No expenses recorded"); err != nil {
			return nil, err
		}
	}
	for i, share := range s.Categories.Shares {
		if i == maxRows {
			break
		}
		if err := w.line(11, share.Name, share.Amount.String(), share.Percent.String()+"%"); err != nil {
			return nil, err
		}
	}

	png, err := TrendChart(s.Trend)
	switch {
	case errors.Is(err, ErrNoData):
	case err != nil:
		return nil, err
	default:
		holder, err := gopdf.ImageHolderByBytes(png)
		if err != nil {
			return nil, fmt.Errorf("load trend chart: %w", err)
		}
		w.y += lineHeight
		width := pageWidth - 2*margin
		rect := &gopdf.Rect{W: width, H: width * chartHeight / chartWidth}
		if err := pdf.ImageByHolder(holder, margin, w.y, rect); err != nil {
			return nil, fmt.Errorf("embed trend chart: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Package aggregate turns flat lists of incomes and expenses into month and
// category summaries.
//
// Every function is pure: inputs are never mutated, no state is kept between
// calls and all of them are safe for concurrent use. Empty input produces
// empty or zero output, never an error.
package aggregate

import (
	"sort"
	"time"

	"finwise/internal/core"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BucketByMonth groups records by the calendar month of their date and sums
// them per kind. Buckets are sorted chronologically and only months that have
// at least one record are emitted; use FillMonths for a gap-free series.
// Records of an unknown kind are skipped.
func BucketByMonth(records []core.Record) []core.MonthlyBucket {
	byMonth := make(map[core.MonthKey]*core.MonthlyBucket)
	for _, r := range records {
		if !r.Kind.Valid() {
			continue
		}
		key := r.Date.MonthKey()
		b, ok := byMonth[key]
		if !ok {
			b = &core.MonthlyBucket{Month: key, Income: core.Zero, Expense: core.Zero}
			byMonth[key] = b
		}
		switch r.Kind {
		case core.KindIncome:
			b.Income = b.Income.Add(r.Amount)
		case core.KindExpense:
			b.Expense = b.Expense.Add(r.Amount)
		}
	}

	out := make([]core.MonthlyBucket, 0, len(byMonth))
	for _, b := range byMonth {
		b.Net = b.Income.Sub(b.Expense)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// FillMonths returns one bucket for every month in [from, to], taking values
// from buckets and zero-filling the rest. Buckets outside the range are
// ignored. An inverted range yields an empty slice.
func FillMonths(buckets []core.MonthlyBucket, from, to core.MonthKey) []core.MonthlyBucket {
	out := []core.MonthlyBucket{}
	if to.Before(from) {
		return out
	}
	index := make(map[core.MonthKey]core.MonthlyBucket, len(buckets))
	for _, b := range buckets {
		index[b.Month] = b
	}
	for m := from; !to.Before(m); m = m.Next() {
		if b, ok := index[m]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, core.MonthlyBucket{Month: m, Income: core.Zero, Expense: core.Zero, Net: core.Zero})
	}
	return out
}

// BucketByCategory sums records per category name. Records without a
// category, or whose category id is not among categories, land in
// core.OtherCategory. A category name embedded in the record is used when the
// id is unknown to the category list.
//
// Percent is the share of the grand total rounded to one decimal digit, and
// zero for every entry when the grand total is zero. Shares are sorted by
// amount, largest first, ties broken by name.
func BucketByCategory(records []core.Record, categories []core.Category) core.CategoryBreakdown {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	totals := make(map[string]core.Money)
	grand := core.Zero
	for _, r := range records {
		name := categoryName(r, names)
		totals[name] = totals[name].Add(r.Amount)
		grand = grand.Add(r.Amount)
	}

	shares := make([]core.CategoryShare, 0, len(totals))
	for name, amount := range totals {
		shares = append(shares, core.CategoryShare{
			Name:    name,
			Amount:  amount,
			Percent: Percent(amount, grand),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if c := shares[i].Amount.Amount.Cmp(shares[j].Amount.Amount); c != 0 {
			return c > 0
		}
		return shares[i].Name < shares[j].Name
	})
	return core.CategoryBreakdown{Total: grand, Shares: shares}
}

func categoryName(r core.Record, names map[string]string) string {
	if r.Category == nil {
		return core.OtherCategory
	}
	if name, ok := names[r.Category.ID]; ok && name != "" {
		return name
	}
	if r.Category.Name != "" {
		return r.Category.Name
	}
	return core.OtherCategory
}

// Percent returns part/total*100 rounded to one decimal digit, or zero when
// total is zero.
func Percent(part, total core.Money) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Amount.Div(total.Amount).Mul(hundred).Round(1)
}

// FilterByMonth keeps the records dated in the given calendar month. The
// result is never nil.
func FilterByMonth(records []core.Record, year int, month time.Month) []core.Record {
	out := []core.Record{}
	for _, r := range records {
		if r.Date.Year() == year && r.Date.Month() == month {
			out = append(out, r)
		}
	}
	return out
}

// FilterByKind keeps the records of one kind.
func FilterByKind(records []core.Record, kind core.Kind) []core.Record {
	out := []core.Record{}
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Total sums the amounts of records regardless of kind.
func Total(records []core.Record) core.Money {
	total := core.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// ComputeBalance returns sum(incomes) - sum(expenses).
func ComputeBalance(incomes, expenses []core.Record) core.Money {
	return Total(incomes).Sub(Total(expenses))
}

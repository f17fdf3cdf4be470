package aggregate

import (
	"testing"
	"time"

	"finwise/internal/core"

	"github.com/shopspring/decimal"
)

func rec(id string, kind core.Kind, amount, date, category string) core.Record {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	r := core.Record{ID: id, Kind: kind, Amount: core.MustMoney(amount), Date: d}
	if category != "" {
		r.Category = &core.CategoryRef{ID: category}
	}
	return r
}

func sampleRecords() (incomes, expenses []core.Record) {
	incomes = []core.Record{
		rec("i1", core.KindIncome, "120000", "2024-01-05", ""),
	}
	expenses = []core.Record{
		rec("e1", core.KindExpense, "30000", "2024-01-10", "food"),
		rec("e2", core.KindExpense, "10000", "2024-02-01", "transport"),
	}
	return incomes, expenses
}

func TestBucketByMonthExample(t *testing.T) {
	incomes, expenses := sampleRecords()
	got := BucketByMonth(append(incomes, expenses...))

	want := []struct {
		month                string
		income, expense, net string
	}{
		{"2024-01", "120000", "30000", "90000"},
		{"2024-02", "0", "10000", "-10000"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(got))
	}
	for i, w := range want {
		b := got[i]
		if b.Month.String() != w.month {
			t.Fatalf("bucket %d month %s, want %s", i, b.Month, w.month)
		}
		if !b.Income.Equal(core.MustMoney(w.income)) {
			t.Fatalf("%s income %s, want %s", w.month, b.Income, w.income)
		}
		if !b.Expense.Equal(core.MustMoney(w.expense)) {
			t.Fatalf("%s expense %s, want %s", w.month, b.Expense, w.expense)
		}
		if !b.Net.Equal(core.MustMoney(w.income).Sub(core.MustMoney(w.expense))) {
			t.Fatalf("%s net %s, want %s", w.month, b.Net, w.net)
		}
	}
}

func TestBucketByMonthSkipsUnknownKinds(t *testing.T) {
	records := []core.Record{
		rec("i1", core.KindIncome, "100", "2024-01-05", ""),
		rec("t1", core.Kind("transfer"), "999", "2024-02-10", ""),
		rec("t2", core.Kind(""), "5", "2024-01-20", ""),
	}
	got := BucketByMonth(records)
	if len(got) != 1 || got[0].Month.String() != "2024-01" {
		t.Fatalf("buckets = %+v, want only 2024-01", got)
	}
	if !got[0].Income.Equal(core.MustMoney("100")) || !got[0].Expense.IsZero() || !got[0].Net.Equal(core.MustMoney("100")) {
		t.Errorf("2024-01 bucket = %+v", got[0])
	}
}

func TestBucketByMonthSumsMatchInput(t *testing.T) {
	records := []core.Record{
		rec("a", core.KindIncome, "10.10", "2023-12-31T23:59:59.000Z", ""),
		rec("b", core.KindExpense, "3.33", "2024-03-15", "x"),
		rec("c", core.KindIncome, "0.01", "2024-03-01", ""),
		rec("d", core.KindExpense, "7.77", "2023-11-02", "y"),
		rec("e", core.KindExpense, "0", "2024-03-20", ""),
		rec("f", core.KindIncome, "5000", "2022-06-30", ""),
	}
	buckets := BucketByMonth(records)

	income, expense := core.Zero, core.Zero
	for i, b := range buckets {
		if i > 0 && !buckets[i-1].Month.Before(b.Month) {
			t.Fatalf("buckets not strictly ascending at %d: %s then %s", i, buckets[i-1].Month, b.Month)
		}
		if !b.Net.Equal(b.Income.Sub(b.Expense)) {
			t.Fatalf("%s net %s != %s - %s", b.Month, b.Net, b.Income, b.Expense)
		}
		income = income.Add(b.Income)
		expense = expense.Add(b.Expense)
	}
	if want := Total(FilterByKind(records, core.KindIncome)); !income.Equal(want) {
		t.Fatalf("income sum %s, want %s", income, want)
	}
	if want := Total(FilterByKind(records, core.KindExpense)); !expense.Equal(want) {
		t.Fatalf("expense sum %s, want %s", expense, want)
	}
	if len(buckets) != 4 {
		t.Fatalf("expected 4 sparse buckets, got %d", len(buckets))
	}
}

func TestBucketByMonthDoesNotShiftTimezone(t *testing.T) {
	r := rec("a", core.KindExpense, "1", "2024-01-31T23:30:00-05:00", "")
	buckets := BucketByMonth([]core.Record{r})
	if len(buckets) != 1 || buckets[0].Month.String() != "2024-01" {
		t.Fatalf("expected 2024-01 bucket, got %+v", buckets)
	}
}

func TestEmptyInput(t *testing.T) {
	if got := BucketByMonth(nil); len(got) != 0 {
		t.Fatalf("expected no buckets, got %d", len(got))
	}
	if got := ComputeBalance(nil, nil); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
	breakdown := BucketByCategory(nil, nil)
	if len(breakdown.Shares) != 0 || !breakdown.Total.IsZero() {
		t.Fatalf("expected empty breakdown, got %+v", breakdown)
	}
	if got := FilterByMonth(nil, 2024, time.January); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFilterByMonth(t *testing.T) {
	incomes, expenses := sampleRecords()
	all := append(incomes, expenses...)

	jan := FilterByMonth(all, 2024, time.January)
	if len(jan) != 2 || jan[0].ID != "i1" || jan[1].ID != "e1" {
		t.Fatalf("unexpected january records: %+v", jan)
	}
	// same month, other year
	if got := FilterByMonth(all, 2023, time.January); len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
	if got := FilterByMonth(all, 2024, time.March); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice for month without records, got %#v", got)
	}
}

func TestComputeBalanceIsLinear(t *testing.T) {
	setA := []core.Record{
		rec("a1", core.KindIncome, "1000.50", "2024-01-01", ""),
		rec("a2", core.KindExpense, "200.25", "2024-01-02", "food"),
	}
	setB := []core.Record{
		rec("b1", core.KindIncome, "10", "2024-05-01", ""),
		rec("b2", core.KindExpense, "999.99", "2024-05-03", "rent"),
		rec("b3", core.KindExpense, "0.01", "2024-05-04", ""),
	}
	balance := func(records []core.Record) core.Money {
		return ComputeBalance(FilterByKind(records, core.KindIncome), FilterByKind(records, core.KindExpense))
	}

	combined := append(append([]core.Record{}, setA...), setB...)
	if got, want := balance(combined), balance(setA).Add(balance(setB)); !got.Equal(want) {
		t.Fatalf("balance(A+B) = %s, balance(A)+balance(B) = %s", got, want)
	}

	incomes, expenses := sampleRecords()
	if got := ComputeBalance(incomes, expenses); !got.Equal(core.MoneyFromInt(80000)) {
		t.Fatalf("balance = %s, want 80000", got)
	}
}

func TestBucketByCategory(t *testing.T) {
	categories := []core.Category{{ID: "food", Name: "Food"}, {ID: "transport", Name: "Transport"}}
	records := []core.Record{
		rec("1", core.KindExpense, "30000", "2024-01-10", "food"),
		rec("2", core.KindExpense, "10000", "2024-02-01", "transport"),
		rec("3", core.KindExpense, "5000", "2024-02-02", "deleted-category"),
		rec("4", core.KindExpense, "5000", "2024-02-03", ""),
	}
	got := BucketByCategory(records, categories)

	if !got.Total.Equal(core.MoneyFromInt(50000)) {
		t.Fatalf("total = %s", got.Total)
	}
	want := []struct {
		name    string
		amount  int64
		percent string
	}{
		{"Food", 30000, "60"},
		{"Other", 10000, "20"},
		{"Transport", 10000, "20"},
	}
	if len(got.Shares) != len(want) {
		t.Fatalf("expected %d shares, got %+v", len(want), got.Shares)
	}
	for i, w := range want {
		s := got.Shares[i]
		if s.Name != w.name || !s.Amount.Equal(core.MoneyFromInt(w.amount)) || !s.Percent.Equal(decimal.RequireFromString(w.percent)) {
			t.Fatalf("share %d = %+v, want %+v", i, s, w)
		}
	}
	if m := got.ByName(); !m["Other"].Equal(core.MoneyFromInt(10000)) {
		t.Fatalf("ByName Other = %s", m["Other"])
	}
}

func TestBucketByCategoryEmbeddedName(t *testing.T) {
	r := rec("1", core.KindExpense, "12", "2024-01-01", "c9")
	r.Category.Name = "Books"
	got := BucketByCategory([]core.Record{r}, nil)
	if len(got.Shares) != 1 || got.Shares[0].Name != "Books" {
		t.Fatalf("expected embedded name to be used, got %+v", got.Shares)
	}
}

func TestCategoryPercentagesSumTo100(t *testing.T) {
	categories := []core.Category{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}
	cases := []struct {
		name    string
		amounts []string
		want    string
	}{
		{"thirds", []string{"1", "1", "1"}, "100"},
		{"uneven", []string{"1.99", "7.13", "0.88"}, "100"},
		{"all zero", []string{"0", "0", "0"}, "0"},
	}
	ids := []string{"a", "b", "c"}
	tolerance := decimal.RequireFromString("0.15")

	for _, tc := range cases {
		var records []core.Record
		for i, a := range tc.amounts {
			records = append(records, rec(tc.name, core.KindExpense, a, "2024-04-01", ids[i]))
		}
		got := BucketByCategory(records, categories)
		sum := decimal.Zero
		for _, s := range got.Shares {
			sum = sum.Add(s.Percent)
		}
		want := decimal.RequireFromString(tc.want)
		if sum.Sub(want).Abs().GreaterThan(tolerance) {
			t.Fatalf("%s: percentages sum to %s, want %s", tc.name, sum, want)
		}
		if tc.want == "0" && !sum.IsZero() {
			t.Fatalf("%s: expected exact zero, got %s", tc.name, sum)
		}
	}
}

func TestFillMonths(t *testing.T) {
	incomes, expenses := sampleRecords()
	buckets := BucketByMonth(append(incomes, expenses...))

	from, _ := core.ParseMonthKey("2023-12")
	to, _ := core.ParseMonthKey("2024-03")
	dense := FillMonths(buckets, from, to)

	wantMonths := []string{"2023-12", "2024-01", "2024-02", "2024-03"}
	if len(dense) != len(wantMonths) {
		t.Fatalf("expected %d months, got %d", len(wantMonths), len(dense))
	}
	for i, m := range wantMonths {
		if dense[i].Month.String() != m {
			t.Fatalf("month %d = %s, want %s", i, dense[i].Month, m)
		}
	}
	if !dense[0].Net.IsZero() || !dense[1].Net.Equal(core.MoneyFromInt(90000)) {
		t.Fatalf("unexpected fill values: %+v", dense)
	}
	if got := FillMonths(buckets, to, from); len(got) != 0 {
		t.Fatalf("inverted range should be empty, got %d", len(got))
	}
}

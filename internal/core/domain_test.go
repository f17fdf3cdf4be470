package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-05", "2024-01-05", true},
		{"2024-01-31T23:30:00.000Z", "2024-01-31", true},
		// the calendar date as written wins over the UTC instant
		{"2024-02-01T00:30:00+05:30", "2024-02-01", true},
		{"2024-03-10T08:00:00", "2024-03-10", true},
		{"", "", false},
		{"05/01/2024", "", false},
		{"2024-13-01", "", false},
		{"not a date", "", false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestMonthKey(t *testing.T) {
	m, err := ParseMonthKey("2024-12")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.String() != "2024-12" || m.Next().String() != "2025-01" || m.Prev().String() != "2024-11" {
		t.Fatalf("unexpected navigation: %s %s %s", m, m.Next(), m.Prev())
	}
	if !m.Prev().Before(m) || m.Before(m) || m.Next().Before(m) {
		t.Fatalf("unexpected ordering")
	}
	if m.Label() != "Dec 2024" {
		t.Fatalf("label = %q", m.Label())
	}
	if NewDate(2024, 12, 31).MonthKey() != m {
		t.Fatalf("date month key mismatch")
	}

	for _, bad := range []string{"", "2024", "2024-00", "2024-13", "24-01"} {
		if _, err := ParseMonthKey(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
	if _, err := NewMonthKey(2024, 0); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestRecordValidate(t *testing.T) {
	good := Record{ID: "1", Kind: KindExpense, Amount: MustMoney("10"), Date: NewDate(2024, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Record{
		{Kind: "transfer", Amount: MustMoney("1"), Date: NewDate(2024, 1, 1)},
		{Kind: KindIncome, Amount: MustMoney("1"), Date: Date{Time: time.Time{}}},
		{Kind: KindIncome, Amount: MustMoney("1").Sub(MustMoney("2")), Date: NewDate(2024, 1, 1)},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSavingsGoalValidate(t *testing.T) {
	good := SavingsGoal{Title: "Bike", TargetAmount: MoneyFromInt(50000)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []SavingsGoal{
		{Title: " ", TargetAmount: MoneyFromInt(1)},
		{Title: "x", TargetAmount: Zero},
		{Title: "x", TargetAmount: MoneyFromInt(1), CurrentAmount: MoneyFromInt(-1)},
	}
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

// Package core provides money parsing and handling utilities.
//
// This file contains the decimal Money type used for every amount that flows
// from the backend into the aggregator, and helpers to parse amounts from
// user input or JSON payloads.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in the user's currency.
type Money struct {
	Amount decimal.Decimal
}

// Zero is the neutral amount.
var Zero = Money{Amount: decimal.Zero}

// NewMoney wraps a decimal amount.
func NewMoney(d decimal.Decimal) Money {
	return Money{Amount: d}
}

// MoneyFromInt builds an amount from a whole number of currency units.
func MoneyFromInt(units int64) Money {
	return Money{Amount: decimal.NewFromInt(units)}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount)}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}

func (m Money) GreaterThan(other Money) bool {
	return m.Amount.GreaterThan(other.Amount)
}

// Float64 returns the amount as a float for chart rendering only.
// Never use it for arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Amount.Float64()
	return f
}

// String renders the amount with two decimal digits.
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Amount.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	parsed, err := parseAmountJSON(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseAmount converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Negative and non-numeric values are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("-1")     -> error
//	ParseAmount("abc")    -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Amount: d}, nil
}

func parseAmountJSON(data []byte) (Money, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Money{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		return ParseAmount(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
	return ParseAmount(n.String())
}

// Sum adds up a list of amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

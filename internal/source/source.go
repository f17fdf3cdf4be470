// Package source supplies the record sets the analysis works on. Records can
// come from the REST backend, from the local SQL snapshot or from JSON seed
// files held in memory.
package source

import (
	"context"

	"finwise/internal/core"
)

// Source is the read side of a user's budget data plus the one write the
// analysis pages perform.
type Source interface {
	// Records returns every record of kind. Malformed records are reported in
	// the result, not dropped.
	Records(ctx context.Context, s core.Session, kind core.Kind) (core.DecodeResult, error)
	Categories(ctx context.Context, s core.Session) ([]core.Category, error)
	Goals(ctx context.Context, s core.Session) ([]core.SavingsGoal, error)
	// AddSavings increments a goal and returns it updated.
	AddSavings(ctx context.Context, s core.Session, goalID string, amount core.Money) (core.SavingsGoal, error)
	Name() string
}

// Pinger is implemented by sources that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Invalidator is implemented by caching sources.
type Invalidator interface {
	InvalidateUser(user string)
}

// Type selects a Source implementation.
type Type string

const (
	TypeAPI    Type = "api"
	TypeSQLite Type = "sqlite"
	TypeMemory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case TypeAPI, TypeSQLite, TypeMemory:
		return true
	default:
		return false
	}
}

// Snapshot loads both record kinds of a user.
type Snapshot struct {
	Incomes    core.DecodeResult
	Expenses   core.DecodeResult
	Categories []core.Category
}

// All returns incomes followed by expenses.
func (s Snapshot) All() []core.Record {
	out := make([]core.Record, 0, len(s.Incomes.Records)+len(s.Expenses.Records))
	out = append(out, s.Incomes.Records...)
	return append(out, s.Expenses.Records...)
}

// Rejected counts the malformed records of both kinds.
func (s Snapshot) Rejected() int {
	return len(s.Incomes.Rejected) + len(s.Expenses.Rejected)
}

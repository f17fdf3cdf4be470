package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"finwise/internal/core"
)

// Memory serves seed data loaded from JSON files in the backend's wire
// format. Every session sees the same data.
type Memory struct {
	mu         sync.RWMutex
	incomes    core.DecodeResult
	expenses   core.DecodeResult
	categories []core.Category
	goals      []core.SavingsGoal
}

// Seed file names inside the data directory. Missing files mean empty sets.
const (
	IncomesFile    = "incomes.json"
	ExpensesFile   = "expenses.json"
	CategoriesFile = "categories.json"
	GoalsFile      = "goals.json"
)

func NewMemory(incomes, expenses []core.Record, categories []core.Category, goals []core.SavingsGoal) *Memory {
	return &Memory{
		incomes:    core.DecodeResult{Records: incomes},
		expenses:   core.DecodeResult{Records: expenses},
		categories: categories,
		goals:      goals,
	}
}

// NewMemoryFromDir loads the seed files in dir.
func NewMemoryFromDir(dir string) (*Memory, error) {
	m := &Memory{}
	var err error
	if m.incomes, err = loadRecords(dir, IncomesFile, core.KindIncome); err != nil {
		return nil, err
	}
	if m.expenses, err = loadRecords(dir, ExpensesFile, core.KindExpense); err != nil {
		return nil, err
	}
	if data, ok, err := readSeed(dir, CategoriesFile); err != nil {
		return nil, err
	} else if ok {
		if m.categories, err = core.DecodeCategories(data); err != nil {
			return nil, fmt.Errorf("%s: %w", CategoriesFile, err)
		}
	}
	if data, ok, err := readSeed(dir, GoalsFile); err != nil {
		return nil, err
	} else if ok {
		if m.goals, err = core.DecodeGoals(data); err != nil {
			return nil, fmt.Errorf("%s: %w", GoalsFile, err)
		}
	}
	return m, nil
}

func readSeed(dir, name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read seed %s: %w", name, err)
	}
	return data, true, nil
}

func loadRecords(dir, name string, kind core.Kind) (core.DecodeResult, error) {
	data, ok, err := readSeed(dir, name)
	if err != nil || !ok {
		return core.DecodeResult{}, err
	}
	res, err := core.DecodeRecords(kind, data)
	if err != nil {
		return core.DecodeResult{}, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func (m *Memory) Name() string { return TypeMemory.String() }

func (m *Memory) Records(_ context.Context, _ core.Session, kind core.Kind) (core.DecodeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch kind {
	case core.KindIncome:
		return m.incomes, nil
	case core.KindExpense:
		return m.expenses, nil
	}
	return core.DecodeResult{}, fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
}

func (m *Memory) Categories(context.Context, core.Session) ([]core.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.Category(nil), m.categories...), nil
}

func (m *Memory) Goals(context.Context, core.Session) ([]core.SavingsGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.SavingsGoal(nil), m.goals...), nil
}

func (m *Memory) AddSavings(_ context.Context, _ core.Session, goalID string, amount core.Money) (core.SavingsGoal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return core.SavingsGoal{}, fmt.Errorf("%w: savings must be positive", core.ErrInvalidAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.goals {
		if m.goals[i].ID == goalID {
			m.goals[i].CurrentAmount = m.goals[i].CurrentAmount.Add(amount)
			return m.goals[i], nil
		}
	}
	return core.SavingsGoal{}, fmt.Errorf("%w: goal %s", core.ErrNotFound, goalID)
}

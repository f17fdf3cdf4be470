package source

import (
	"context"

	"finwise/internal/core"

	"golang.org/x/sync/errgroup"
)

// Load fetches incomes, expenses and categories of the session concurrently.
func Load(ctx context.Context, src Source, s core.Session) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := src.Records(ctx, s, core.KindIncome)
		snap.Incomes = res
		return err
	})
	g.Go(func() error {
		res, err := src.Records(ctx, s, core.KindExpense)
		snap.Expenses = res
		return err
	})
	g.Go(func() error {
		cats, err := src.Categories(ctx, s)
		snap.Categories = cats
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

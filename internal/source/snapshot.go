package source

import (
	"context"
	"fmt"

	"finwise/internal/core"
	"finwise/internal/storage"
)

// SQL reads the local snapshot kept up to date by the sync job.
type SQL struct {
	store *storage.Store
}

func NewSQL(store *storage.Store) *SQL {
	return &SQL{store: store}
}

func (s *SQL) Name() string { return TypeSQLite.String() }

func (s *SQL) Records(ctx context.Context, sess core.Session, kind core.Kind) (core.DecodeResult, error) {
	recs, err := s.store.Records(ctx, sess.Subject, kind)
	if err != nil {
		return core.DecodeResult{}, err
	}
	return core.DecodeResult{Records: recs}, nil
}

func (s *SQL) Categories(ctx context.Context, sess core.Session) ([]core.Category, error) {
	return s.store.Categories(ctx, sess.Subject)
}

func (s *SQL) Goals(ctx context.Context, sess core.Session) ([]core.SavingsGoal, error) {
	return s.store.Goals(ctx, sess.Subject)
}

func (s *SQL) AddSavings(ctx context.Context, sess core.Session, goalID string, amount core.Money) (core.SavingsGoal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return core.SavingsGoal{}, fmt.Errorf("%w: savings must be positive", core.ErrInvalidAmount)
	}
	return s.store.AddToGoal(ctx, sess.Subject, goalID, amount)
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

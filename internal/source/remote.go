package source

import (
	"context"

	"finwise/internal/api"
	"finwise/internal/cache"
	"finwise/internal/core"
	"finwise/internal/log"
)

// Remote reads from the REST backend through the shared record cache.
type Remote struct {
	client *api.Client
	cache  *cache.RecordCache
	slog   *log.StructuredLogger
}

func NewRemote(client *api.Client, c *cache.RecordCache, logger *log.Logger) *Remote {
	if logger == nil {
		logger = log.Discard()
	}
	return &Remote{
		client: client,
		cache:  c,
		slog:   log.NewStructuredLogger(logger.WithComponent(log.ComponentSource)),
	}
}

func (r *Remote) Name() string { return TypeAPI.String() }

func (r *Remote) Records(ctx context.Context, s core.Session, kind core.Kind) (core.DecodeResult, error) {
	return r.cache.Records(ctx, s.Subject, kind, func(ctx context.Context) (core.DecodeResult, error) {
		res, err := r.client.Records(ctx, s.Token, kind)
		if err != nil {
			return res, err
		}
		r.slog.LogFetch(ctx, s.Subject, kind.String(), len(res.Records), len(res.Rejected))
		return res, nil
	})
}

func (r *Remote) Categories(ctx context.Context, s core.Session) ([]core.Category, error) {
	return r.cache.Categories(ctx, s.Subject, func(ctx context.Context) ([]core.Category, error) {
		return r.client.Categories(ctx, s.Token)
	})
}

func (r *Remote) Goals(ctx context.Context, s core.Session) ([]core.SavingsGoal, error) {
	return r.cache.Goals(ctx, s.Subject, func(ctx context.Context) ([]core.SavingsGoal, error) {
		return r.client.Goals(ctx, s.Token)
	})
}

func (r *Remote) AddSavings(ctx context.Context, s core.Session, goalID string, amount core.Money) (core.SavingsGoal, error) {
	goal, err := r.client.AddSavings(ctx, s.Token, goalID, amount)
	if err != nil {
		return goal, err
	}
	r.cache.InvalidateGoals(s.Subject)
	return goal, nil
}

// InvalidateUser drops every cached set of user.
func (r *Remote) InvalidateUser(user string) {
	r.cache.InvalidateUser(user)
}

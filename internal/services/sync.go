package services

import (
	"context"
	"fmt"

	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/source"
)

// SnapshotStore receives full record sets of a user.
type SnapshotStore interface {
	ReplaceRecords(ctx context.Context, user string, kind core.Kind, records []core.Record) error
	ReplaceCategories(ctx context.Context, user string, categories []core.Category) error
	ReplaceGoals(ctx context.Context, user string, goals []core.SavingsGoal) error
	RecordSync(ctx context.Context, user string, records, rejected int) error
}

// SyncResult counts what one refresh copied.
type SyncResult struct {
	User       string `json:"user"`
	Records    int    `json:"records"`
	Rejected   int    `json:"rejected"`
	Categories int    `json:"categories"`
	Goals      int    `json:"goals"`
}

// SyncService copies a user's backend data into the local snapshot so
// reports can run while the backend is unreachable.
type SyncService struct {
	src    source.Source
	store  SnapshotStore
	logger *log.Logger
}

func NewSyncService(src source.Source, store SnapshotStore, logger *log.Logger) *SyncService {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncService{
		src:    src,
		store:  store,
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// SyncUser replaces the snapshot of the session's user with fresh data.
// Malformed records are counted, not stored.
func (s *SyncService) SyncUser(ctx context.Context, sess core.Session) (SyncResult, error) {
	res := SyncResult{User: sess.Subject}
	if inv, ok := s.src.(source.Invalidator); ok {
		inv.InvalidateUser(sess.Subject)
	}

	snap, err := source.Load(ctx, s.src, sess)
	if err != nil {
		return res, fmt.Errorf("load records: %w", err)
	}
	goals, err := s.src.Goals(ctx, sess)
	if err != nil {
		return res, fmt.Errorf("load goals: %w", err)
	}

	if err := s.store.ReplaceRecords(ctx, sess.Subject, core.KindIncome, snap.Incomes.Records); err != nil {
		return res, err
	}
	if err := s.store.ReplaceRecords(ctx, sess.Subject, core.KindExpense, snap.Expenses.Records); err != nil {
		return res, err
	}
	if err := s.store.ReplaceCategories(ctx, sess.Subject, snap.Categories); err != nil {
		return res, err
	}
	if err := s.store.ReplaceGoals(ctx, sess.Subject, goals); err != nil {
		return res, err
	}

	res.Records = len(snap.Incomes.Records) + len(snap.Expenses.Records)
	res.Rejected = snap.Rejected()
	res.Categories = len(snap.Categories)
	res.Goals = len(goals)
	if err := s.store.RecordSync(ctx, sess.Subject, res.Records, res.Rejected); err != nil {
		s.logger.WarnContext(ctx, "Failed to record sync state", log.FieldUser, sess.Subject, log.FieldError, err)
	}

	s.logger.InfoContext(ctx, "Snapshot refreshed",
		log.FieldOperation, log.OpSync,
		log.FieldUser, sess.Subject,
		log.FieldCount, res.Records,
		log.FieldRejected, res.Rejected)
	return res, nil
}

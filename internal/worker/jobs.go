package worker

import (
	"context"
	"fmt"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/api"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/report"
	"finwise/internal/services"
	"finwise/internal/storage"
)

// Enqueuer queues report jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, sess core.Session, req services.ReportRequest) (*storage.ReportJob, error)
}

// Syncer refreshes a user's snapshot.
type Syncer interface {
	SyncUser(ctx context.Context, sess core.Session) (services.SyncResult, error)
}

// MonthlyReportConfig describes the scheduled report of the previous month.
type MonthlyReportConfig struct {
	ServiceToken string
	Recipients   []string
	ToSheets     bool
	// Deliver handles the job in process. Set it when no broker carries the
	// job to a consumer.
	Deliver func(context.Context, *amqp.ReportRequest) error
}

// MonthlyReport returns the cron job that queues last month's report for
// the service account.
func MonthlyReport(reports Enqueuer, cfg MonthlyReportConfig, now func() time.Time, logger *log.Logger) func(context.Context) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentScheduler)
	return func(ctx context.Context) error {
		sess, err := api.ParseSession(cfg.ServiceToken, now())
		if err != nil {
			return fmt.Errorf("service session: %w", err)
		}
		month := core.CurrentMonth(now()).Prev()
		job, err := reports.Enqueue(ctx, sess, services.ReportRequest{
			Month:      month,
			Format:     report.FormatPDF,
			Recipients: cfg.Recipients,
			ToSheets:   cfg.ToSheets,
		})
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Monthly report queued",
			log.FieldJobID, job.ID,
			log.FieldMonth, month.String())
		if cfg.Deliver != nil {
			return cfg.Deliver(ctx, amqp.NewReportRequest(job.ID, sess.Subject, sess.Token))
		}
		return nil
	}
}

// SnapshotSync returns the cron job that copies the service account's
// backend data into the snapshot store.
func SnapshotSync(syncer Syncer, serviceToken string, now func() time.Time, logger *log.Logger) func(context.Context) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentScheduler)
	return func(ctx context.Context) error {
		sess, err := api.ParseSession(serviceToken, now())
		if err != nil {
			return fmt.Errorf("service session: %w", err)
		}
		res, err := syncer.SyncUser(ctx, sess)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Snapshot synced",
			log.FieldUser, res.User,
			log.FieldCount, res.Records,
			log.FieldRejected, res.Rejected)
		return nil
	}
}

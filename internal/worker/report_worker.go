package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/api"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/mail"
	"finwise/internal/report"
	"finwise/internal/sheets"
	"finwise/internal/storage"
)

// JobStore is the part of the snapshot DB the worker drives.
type JobStore interface {
	Job(ctx context.Context, id string) (storage.ReportJob, error)
	StartJobAttempt(ctx context.Context, id string) (int, error)
	MarkJobDone(ctx context.Context, id string) error
	MarkJobFailed(ctx context.Context, id string, cause error) error
	StalePendingJobs(ctx context.Context, before time.Time, limit int) ([]storage.ReportJob, error)
}

// Summarizer computes the data behind a report.
type Summarizer interface {
	Summary(ctx context.Context, sess core.Session, month core.MonthKey) (report.Summary, error)
}

// Mailer delivers rendered reports.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string, attachments ...mail.Attachment) error
}

const DefaultMaxAttempts = 3

// errTokenUnavailable fails jobs whose source needs a token that the worker
// does not hold for the job's user.
var errTokenUnavailable = errors.New("token unavailable")

// ReportWorker renders queued report jobs and delivers them.
type ReportWorker struct {
	jobs         JobStore
	reports      Summarizer
	mailer       Mailer
	sheets       sheets.RowAppender
	serviceToken string
	maxAttempts  int
	logger       *log.Logger
	now          func() time.Time
}

type Option func(*ReportWorker)

func WithMailer(m Mailer) Option { return func(w *ReportWorker) { w.mailer = m } }

func WithSheets(s sheets.RowAppender) Option { return func(w *ReportWorker) { w.sheets = s } }

// WithServiceToken sets the token used for the service account's own jobs
// when the message carries none.
func WithServiceToken(tok string) Option { return func(w *ReportWorker) { w.serviceToken = tok } }

func WithMaxAttempts(n int) Option { return func(w *ReportWorker) { w.maxAttempts = n } }

func NewReportWorker(jobs JobStore, reports Summarizer, logger *log.Logger, opts ...Option) *ReportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	w := &ReportWorker{
		jobs:        jobs,
		reports:     reports,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger.WithComponent(log.ComponentWorker),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleReportRequest processes one queued job. Returning an error requeues
// the message; jobs that are unknown, already finished or out of attempts
// are acknowledged.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequest) error {
	logger := w.logger.With(log.FieldJobID, msg.JobID, log.FieldOperation, log.OpDeliver)

	job, err := w.jobs.Job(ctx, msg.JobID)
	if errors.Is(err, core.ErrNotFound) {
		logger.WarnContext(ctx, "Dropping request for unknown job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job.Status != storage.JobPending {
		logger.DebugContext(ctx, "Job already finished", "status", job.Status)
		return nil
	}

	attempt, err := w.jobs.StartJobAttempt(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}

	procErr := w.process(ctx, job, w.sessionFor(job, msg.Token))
	if procErr == nil {
		if err := w.jobs.MarkJobDone(ctx, job.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to mark job done", log.FieldError, err)
		}
		logger.InfoContext(ctx, "Report delivered",
			log.FieldUser, job.User,
			log.FieldMonth, job.Month.String(),
			"attempt", attempt)
		return nil
	}

	if errors.Is(procErr, api.ErrUnauthorized) {
		procErr = fmt.Errorf("%w for user %s: %v", errTokenUnavailable, job.User, procErr)
		if err := w.jobs.MarkJobFailed(ctx, job.ID, procErr); err != nil {
			logger.ErrorContext(ctx, "Failed to mark job failed", log.FieldError, err)
		}
		logger.ErrorContext(ctx, "Report job has no usable token",
			log.FieldUser, job.User,
			log.FieldError, procErr)
		return nil
	}

	logger.WarnContext(ctx, "Report job failed",
		log.FieldError, procErr,
		"attempt", attempt)
	if attempt >= w.maxAttempts {
		if err := w.jobs.MarkJobFailed(ctx, job.ID, procErr); err != nil {
			logger.ErrorContext(ctx, "Failed to mark job failed", log.FieldError, err)
		}
		logger.ErrorContext(ctx, "Report job failed permanently after max attempts", "attempts", attempt)
		return nil
	}
	return procErr
}

// sessionFor returns the session a job runs under. A token is attached only
// when its subject is the job's user: the message's own token first, then
// the service token for the service account's jobs. Without one the session
// carries the user alone, which snapshot sources serve and the backend
// refuses.
func (w *ReportWorker) sessionFor(job storage.ReportJob, msgToken string) core.Session {
	for _, tok := range []string{msgToken, w.serviceToken} {
		if tok == "" {
			continue
		}
		sess, err := api.ParseSession(tok, w.now())
		if err != nil || sess.Subject != job.User {
			continue
		}
		return sess
	}
	return core.Session{Subject: job.User}
}

func (w *ReportWorker) process(ctx context.Context, job storage.ReportJob, sess core.Session) error {
	sum, err := w.reports.Summary(ctx, sess, job.Month)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	if len(job.Recipients) > 0 {
		if w.mailer == nil {
			return errors.New("mail delivery requested but SMTP is not configured")
		}
		f, err := report.ParseFormat(job.Format)
		if err != nil {
			return err
		}
		data, err := report.Render(f, sum)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		body := fmt.Sprintf("FinWise analysis for %s\n\nIncome: %s\nExpenses: %s\nNet: %s\n",
			job.Month.Label(), sum.Income, sum.Expense, sum.Net)
		attachment := mail.Attachment{Name: report.FileName(job.Month, f), ContentType: f.ContentType(), Data: data}
		if err := w.mailer.Send(ctx, job.Recipients, "FinWise analysis "+job.Month.Label(), body, attachment); err != nil {
			return err
		}
	}

	if job.ToSheets {
		if w.sheets == nil {
			return errors.New("sheets export requested but no spreadsheet is configured")
		}
		if _, err := w.sheets.AppendRows(ctx, report.MonthlyRows(sum)); err != nil {
			return err
		}
	}
	return nil
}

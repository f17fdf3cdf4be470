package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/report"
	"finwise/internal/storage"

	"github.com/google/uuid"
)

// ErrNoDestination is returned for report jobs that deliver nowhere.
var ErrNoDestination = errors.New("report job needs recipients or a sheets export")

// JobStore persists report jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *storage.ReportJob) error
	Job(ctx context.Context, id string) (storage.ReportJob, error)
}

// Publisher hands report requests to the worker.
type Publisher interface {
	PublishReportRequest(ctx context.Context, msg *amqp.ReportRequest) error
}

// ReportRequest is what a caller asks to have delivered.
type ReportRequest struct {
	Month      core.MonthKey `json:"month"`
	Format     report.Format `json:"format"`
	Recipients []string      `json:"recipients"`
	ToSheets   bool          `json:"to_sheets"`
}

func (r ReportRequest) Validate() error {
	var errs []error
	if r.Month.IsZero() {
		errs = append(errs, core.ErrInvalidMonthKey)
	}
	if r.Format != report.FormatPDF && r.Format != report.FormatXLSX {
		errs = append(errs, fmt.Errorf("unsupported report format %q", r.Format))
	}
	if len(r.Recipients) == 0 && !r.ToSheets {
		errs = append(errs, ErrNoDestination)
	}
	for _, addr := range r.Recipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			errs = append(errs, fmt.Errorf("invalid recipient %q", addr))
		}
	}
	return errors.Join(errs...)
}

// ReportService renders reports and queues their delivery.
type ReportService struct {
	analysis  *AnalysisService
	jobs      JobStore
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
}

func NewReportService(analysis *AnalysisService, jobs JobStore, publisher Publisher, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		analysis:  analysis,
		jobs:      jobs,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentReport),
		now:       time.Now,
	}
}

// Summary computes the report summary of month.
func (s *ReportService) Summary(ctx context.Context, sess core.Session, month core.MonthKey) (report.Summary, error) {
	a, err := s.analysis.Analyze(ctx, sess, month)
	if err != nil {
		return report.Summary{}, err
	}
	return a.Summary(sess.Subject, s.now()), nil
}

// Render produces the report of month in format f and its file name.
func (s *ReportService) Render(ctx context.Context, sess core.Session, month core.MonthKey, f report.Format) ([]byte, string, error) {
	sum, err := s.Summary(ctx, sess, month)
	if err != nil {
		return nil, "", err
	}
	data, err := report.Render(f, sum)
	if err != nil {
		return nil, "", fmt.Errorf("render %s report: %w", f, err)
	}
	s.logger.DebugContext(ctx, "Report rendered",
		log.FieldOperation, log.OpRender,
		log.FieldUser, sess.Subject,
		log.FieldMonth, month.String(),
		log.FieldFormat, string(f),
		"bytes", len(data))
	return data, report.FileName(month, f), nil
}

// Enqueue stores a pending job and publishes it. A failed publish leaves the
// job pending for the worker's stale job sweep.
func (s *ReportService) Enqueue(ctx context.Context, sess core.Session, req ReportRequest) (*storage.ReportJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.jobs == nil {
		return nil, errors.New("report jobs need a snapshot database")
	}

	job := &storage.ReportJob{
		ID:         uuid.NewString(),
		User:       sess.Subject,
		Month:      req.Month,
		Format:     string(req.Format),
		Recipients: req.Recipients,
		ToSheets:   req.ToSheets,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create report job: %w", err)
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, job left for the sweep", log.FieldJobID, job.ID)
		return job, nil
	}
	if err := s.publisher.PublishReportRequest(ctx, amqp.NewReportRequest(job.ID, sess.Subject, sess.Token)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish report request",
			log.FieldOperation, log.OpEnqueue,
			log.FieldJobID, job.ID,
			log.FieldError, err)
	}
	return job, nil
}

// Job returns a job owned by the session's user. Administrators see every
// job.
func (s *ReportService) Job(ctx context.Context, sess core.Session, id string) (storage.ReportJob, error) {
	if s.jobs == nil {
		return storage.ReportJob{}, core.ErrNotFound
	}
	job, err := s.jobs.Job(ctx, id)
	if err != nil {
		return storage.ReportJob{}, err
	}
	if job.User != sess.Subject && !sess.IsAdmin() {
		return storage.ReportJob{}, fmt.Errorf("job %s: %w", id, core.ErrNotFound)
	}
	return job, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finwise/internal/core"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// ReportJob is a queued request to render and deliver a monthly report.
type ReportJob struct {
	ID         string        `json:"id"`
	User       string        `json:"user"`
	Month      core.MonthKey `json:"month"`
	Format     string        `json:"format"`
	Recipients []string      `json:"recipients,omitempty"`
	ToSheets   bool          `json:"to_sheets"`
	Status     JobStatus     `json:"status"`
	Error      string        `json:"error,omitempty"`
	Attempts   int           `json:"attempts"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// CreateJob inserts job in pending state and fills its timestamps.
func (s *Store) CreateJob(ctx context.Context, job *ReportJob) error {
	now := s.now().UTC()
	job.Status = JobPending
	job.CreatedAt = now
	job.UpdatedAt = now
	ts := now.Format(timeLayout)

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO report_jobs
		(id, user_id, month, format, recipients, to_sheets, status, error, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', 0, ?, ?)`),
		job.ID, job.User, job.Month.String(), job.Format, strings.Join(job.Recipients, ","), job.ToSheets, string(JobPending), ts, ts)
	if err != nil {
		return fmt.Errorf("insert report job: %w", err)
	}
	return nil
}

const jobColumns = `id, user_id, month, format, recipients, to_sheets, status, error, attempts, created_at, updated_at`

func scanJob(row scanner) (ReportJob, error) {
	var (
		job               ReportJob
		month, recipients string
		status            string
		created, updated  string
	)
	err := row.Scan(&job.ID, &job.User, &month, &job.Format, &recipients, &job.ToSheets, &status, &job.Error, &job.Attempts, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return job, ErrNotFound
	}
	if err != nil {
		return job, fmt.Errorf("scan report job: %w", err)
	}
	if job.Month, err = core.ParseMonthKey(month); err != nil {
		return job, fmt.Errorf("report job %s: %w", job.ID, err)
	}
	if recipients != "" {
		job.Recipients = strings.Split(recipients, ",")
	}
	job.Status = JobStatus(status)
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return job, nil
}

// Job returns one report job or ErrNotFound.
func (s *Store) Job(ctx context.Context, id string) (ReportJob, error) {
	return scanJob(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+jobColumns+` FROM report_jobs WHERE id = ?`), id))
}

// StartJobAttempt bumps the attempt counter and returns the new count.
func (s *Store) StartJobAttempt(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE report_jobs SET attempts = attempts + 1, updated_at = ? WHERE id = ?`), s.timestamp(), id)
	if err != nil {
		return 0, fmt.Errorf("start job attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	var attempts int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT attempts FROM report_jobs WHERE id = ?`), id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("read job attempts: %w", err)
	}
	return attempts, nil
}

// MarkJobDone marks job as successfully delivered.
func (s *Store) MarkJobDone(ctx context.Context, id string) error {
	return s.setJobStatus(ctx, id, JobDone, "")
}

// MarkJobFailed records the failure of the last attempt.
func (s *Store) MarkJobFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.setJobStatus(ctx, id, JobFailed, msg)
}

func (s *Store) setJobStatus(ctx context.Context, id string, status JobStatus, msg string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE report_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`),
		string(status), msg, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("update report job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StalePendingJobs returns pending jobs not updated since before, oldest
// first. These are jobs whose message was lost or never published.
func (s *Store) StalePendingJobs(ctx context.Context, before time.Time, limit int) ([]ReportJob, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+jobColumns+` FROM report_jobs
		WHERE status = ? AND updated_at < ? ORDER BY created_at LIMIT ?`),
		string(JobPending), before.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var out []ReportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

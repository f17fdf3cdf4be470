package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/log"
)

// SweeperConfig holds configuration for the stale job sweeper
type SweeperConfig struct {
	// PollInterval is how often to look for stale jobs (default: 1m)
	PollInterval time.Duration

	// StaleAfter is how long a job may stay pending before it is swept (default: 10m)
	StaleAfter time.Duration

	// BatchSize is the max number of jobs handled per poll (default: 10)
	BatchSize int
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		PollInterval: time.Minute,
		StaleAfter:   10 * time.Minute,
		BatchSize:    10,
	}
}

// Sweeper hands jobs whose message was lost or never published to the
// handler directly.
type Sweeper struct {
	jobs    JobStore
	handle  func(context.Context, *amqp.ReportRequest) error
	config  SweeperConfig
	logger  *log.Logger
	now     func() time.Time
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(jobs JobStore, handle func(context.Context, *amqp.ReportRequest) error, config SweeperConfig, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Discard()
	}
	return &Sweeper{
		jobs:   jobs,
		handle: handle,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Job sweeper started",
		"poll_interval", s.config.PollInterval,
		"stale_after", s.config.StaleAfter)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "Job sweeper stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Job sweeper stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep handles one batch of stale pending jobs and returns how many were
// handed to the handler.
func (s *Sweeper) Sweep(ctx context.Context) int {
	jobs, err := s.jobs.StalePendingJobs(ctx, s.now().Add(-s.config.StaleAfter), s.config.BatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list stale jobs", log.FieldError, err)
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}

	s.logger.InfoContext(ctx, "Sweeping stale report jobs", log.FieldCount, len(jobs))
	handled := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return handled
		}
		if err := s.handle(ctx, amqp.NewReportRequest(job.ID, job.User, "")); err != nil {
			s.logger.WarnContext(ctx, "Stale job still failing",
				log.FieldJobID, job.ID,
				log.FieldError, err)
		}
		handled++
	}
	return handled
}

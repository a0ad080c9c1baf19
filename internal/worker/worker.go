package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hlin/internal/jobs"
	"github.com/dukerupert/hlin/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Interval is how often each registered job runs
	Interval time.Duration

	// JobTimeout bounds a single job run
	JobTimeout time.Duration

	// MaxConcurrency is the maximum number of jobs running at once
	MaxConcurrency int
}

// Job is a named unit of periodic work.
type Job struct {
	Type string
	Run  func(ctx context.Context) error
}

// Worker runs housekeeping jobs on a fixed interval
type Worker struct {
	config Config
	jobs   []Job
	logger *slog.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(config Config, logger *slog.Logger, registered ...Job) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = time.Minute
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 2
	}

	return &Worker{
		config: config,
		jobs:   registered,
		logger: logger,
		now:    time.Now,
	}
}

// CleanupJob wraps jobs.CleanupExpired for the worker.
func CleanupJob(store jobs.CleanupStore, logger *slog.Logger) Job {
	return Job{
		Type: jobs.JobTypeCleanupExpired,
		Run: func(ctx context.Context) error {
			result, err := jobs.CleanupExpired(ctx, store, time.Now())
			if err != nil {
				return err
			}
			logger.Info("expired rows removed",
				"sessions", result.SessionsDeleted,
				"reset_tokens", result.ResetTokensDeleted,
				"session_state", result.SessionStateDeleted,
			)
			return nil
		},
	}
}

// Start runs every job once immediately, then on each tick, until the
// context is cancelled. It waits for in-flight jobs before returning.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"interval", w.config.Interval,
		"jobs", len(w.jobs),
	)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	w.dispatch(ctx, sem)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			w.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			w.dispatch(ctx, sem)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, sem chan struct{}) {
	for _, job := range w.jobs {
		select {
		case sem <- struct{}{}:
			w.wg.Add(1)
			go func(job Job) {
				defer w.wg.Done()
				defer func() { <-sem }()
				w.RunJob(ctx, job)
			}(job)
		default:
			// At max concurrency, skip this tick
			w.logger.Warn("job skipped, worker busy", "job_type", job.Type)
		}
	}
}

// RunJob executes a single job with the configured timeout and records its
// outcome.
func (w *Worker) RunJob(ctx context.Context, job Job) error {
	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	start := w.now()
	err := job.Run(jobCtx)
	elapsed := w.now().Sub(start)

	if m := telemetry.Business; m != nil {
		m.JobDuration.WithLabelValues(job.Type).Observe(elapsed.Seconds())
		if err != nil {
			m.JobsFailed.WithLabelValues(job.Type).Inc()
		} else {
			m.JobsProcessed.WithLabelValues(job.Type).Inc()
		}
	}

	if err != nil {
		w.logger.Error("job failed",
			"worker_id", w.config.WorkerID,
			"job_type", job.Type,
			"error", err,
		)
		return err
	}

	w.logger.Debug("job completed",
		"job_type", job.Type,
		"duration", elapsed,
	)
	return nil
}

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
	"github.com/zimmerhq/zimmer-admin-api/pkg/metrics"
)

const defaultInterval = 6 * time.Hour

// RunnerParams configure the audit runner.
type RunnerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Runner executes registered audit jobs on a fixed cadence.
type Runner struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
}

// NewRunner builds an audit runner.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Runner{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run starts the audit loop until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.runCycle(ctx); err != nil {
		r.logg.Error(ctx, "audit run failed", err)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "audit runner context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := r.runCycle(ctx); err != nil {
				r.logg.Error(ctx, "audit run failed", err)
			}
		}
	}
}

// RunOnce executes a single audit cycle, used by the one-shot CLI mode.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.runCycle(ctx)
}

func (r *Runner) runCycle(ctx context.Context) error {
	locked, err := r.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		r.logg.Info(ctx, "another audit instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := r.lock.Release(ctx); relErr != nil {
			r.logg.Error(ctx, "failed to release audit lock", relErr)
		}
	}()

	r.logg.Info(ctx, "audit cycle starting")
	for _, job := range r.registry.Jobs() {
		r.runJob(ctx, job)
	}
	r.logg.Info(ctx, "audit cycle complete")
	return nil
}

func (r *Runner) runJob(ctx context.Context, job Job) {
	jobCtx := r.logg.WithField(ctx, "job", job.Name())
	jobCtx = r.logg.WithField(jobCtx, "event", "audit.job")
	r.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.ObserveDuration(job.Name(), duration)
	}
	jobCtx = r.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		r.logg.Error(jobCtx, "job failed", err)
		if r.metrics != nil {
			r.metrics.IncFailure(job.Name())
		}
		return
	}
	r.logg.Info(jobCtx, "job completed")
	if r.metrics != nil {
		r.metrics.IncSuccess(job.Name())
	}
}

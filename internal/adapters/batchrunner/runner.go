// Package batchrunner polls the batch queue and executes claimed items on a
// bounded worker pool.
package batchrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/service"
)

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Queue  *service.BatchQueue
	Config config.BatchConfig
	Logger *slog.Logger
}

// Runner drives the batch queue: each poll claims due items (the queue
// enforces per-job concurrency) and runs them on a pool bounded by the
// global worker limit.
type Runner struct {
	queue   *service.BatchQueue
	cfg     config.BatchConfig
	logger  *slog.Logger
	workers *semaphore.Weighted
}

// NewRunner creates a batch runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("batch queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "batchrunner")
	}
	return &Runner{
		queue:   opts.Queue,
		cfg:     opts.Config,
		logger:  logger,
		workers: semaphore.NewWeighted(int64(opts.Config.MaxWorkers)),
	}, nil
}

// Run polls until the context is cancelled, then waits for in-flight items
// to settle before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting batch runner",
		"poll_interval", r.cfg.PollInterval, "max_workers", r.cfg.MaxWorkers)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "batch runner stopping", "reason", ctx.Err())
			r.drain()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Runner) poll(ctx context.Context) {
	items, err := r.queue.ClaimDue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "claiming batch items failed", "error", err)
		}
		return
	}

	for _, item := range items {
		if err := r.workers.Acquire(ctx, 1); err != nil {
			// Shutdown mid-claim: the item's lease lapses and the reaper
			// returns it to pending.
			return
		}
		go func() {
			defer r.workers.Release(1)
			r.queue.ExecuteItem(ctx, item)
		}()
	}
}

// drain waits for every worker slot to free up. Uses a fresh context; the
// run context is already cancelled by the time this is called.
func (r *Runner) drain() {
	if err := r.workers.Acquire(context.Background(), int64(r.cfg.MaxWorkers)); err == nil {
		r.workers.Release(int64(r.cfg.MaxWorkers))
	}
}

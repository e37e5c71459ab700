package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/observability/statsd"
)

// ReaperDeps groups the collaborator ports of the reaper service.
type ReaperDeps struct {
	Batches core.BatchRepository
	Audit   core.AuditRepository
	Sink    statsd.Sink
}

// ReaperOptions configures the reaper service.
type ReaperOptions struct {
	Deps   ReaperDeps
	Config config.ReaperConfig
	Logger *slog.Logger
}

// Reaper performs periodic maintenance:
//   - requeue running batch items whose claim lease lapsed (crashed runner)
//   - delete terminal batch jobs past retention
//   - delete audit log entries past retention
type Reaper struct {
	deps   ReaperDeps
	cfg    config.ReaperConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewReaper constructs the reaper service.
func NewReaper(opts ReaperOptions) *Reaper {
	if opts.Deps.Batches == nil {
		panic("BatchRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "reaper")
	}
	return &Reaper{
		deps:   opts.Deps,
		cfg:    opts.Config,
		logger: logger,
		now:    time.Now,
	}
}

// Run starts the reaper loop until the context is cancelled. Returns nil on
// graceful shutdown.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper", "interval", r.cfg.Interval)

	// Jitter up to 10% of the interval so co-started instances do not sweep
	// at the same instant.
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	if err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.ErrorContext(ctx, "initial sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs every maintenance step once. Steps are independent; one failing
// does not stop the others.
func (r *Reaper) Sweep(ctx context.Context) error {
	start := r.now()

	steps := []struct {
		label  string
		metric string
		fn     func(context.Context) (int64, error)
	}{
		{"requeue lapsed leases", "leases_requeued", r.requeueLapsedLeases},
		{"delete old batch jobs", "batch_jobs_deleted", r.deleteOldBatchJobs},
		{"delete old audit entries", "audit_deleted", r.deleteOldAuditEntries},
	}

	var errs []error
	for _, step := range steps {
		count, err := step.fn(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
		}
		if count > 0 {
			r.logger.InfoContext(ctx, step.label, "count", count)
		}
		if r.deps.Sink != nil {
			r.deps.Sink.Count("reaper."+step.metric, count, nil)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if r.deps.Sink != nil {
		r.deps.Sink.Timing("reaper.sweep_duration", r.now().Sub(start), nil)
	}
	return errors.Join(errs...)
}

func (r *Reaper) requeueLapsedLeases(ctx context.Context) (int64, error) {
	return r.deps.Batches.RequeueExpiredLeases(ctx, r.now())
}

func (r *Reaper) deleteOldBatchJobs(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := r.deps.Batches.DeleteOldJobs(ctx, r.cfg.BatchRetention, r.cfg.BatchSize)
		total += count
		if err != nil {
			return total, err
		}
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (r *Reaper) deleteOldAuditEntries(ctx context.Context) (int64, error) {
	if r.deps.Audit == nil {
		return 0, nil
	}
	var total int64
	for {
		count, err := r.deps.Audit.DeleteOld(ctx, r.cfg.AuditRetention, r.cfg.BatchSize)
		total += count
		if err != nil {
			return total, err
		}
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (r *Reaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.cfg.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/domain/batch"
	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/observability/metrics"
	"github.com/punchd-io/punchd/internal/observability/statsd"
)

// BatchDeps groups the collaborator ports of the batch queue service.
type BatchDeps struct {
	Batches      core.BatchRepository
	Accounts     core.AccountRepository
	Audit        core.AuditRepository
	Orchestrator *Orchestrator
	Sink         statsd.Sink
}

// BatchOptions configures the batch queue service.
type BatchOptions struct {
	Deps   BatchDeps
	Config config.BatchConfig
	Logger *slog.Logger
}

// BatchQueue manages on-demand bulk runs: enqueueing, claiming under the
// per-job concurrency ceiling, retry with capped exponential backoff, and
// cooperative pause/resume/cancel.
type BatchQueue struct {
	deps    BatchDeps
	cfg     config.BatchConfig
	backoff batch.BackoffPolicy
	logger  *slog.Logger
	now     func() time.Time
}

// NewBatchQueue constructs the batch queue service.
func NewBatchQueue(opts BatchOptions) *BatchQueue {
	if opts.Deps.Batches == nil {
		panic("BatchRepository is required")
	}
	if opts.Deps.Accounts == nil {
		panic("AccountRepository is required")
	}
	if opts.Deps.Orchestrator == nil {
		panic("Orchestrator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "batch_queue")
	}
	return &BatchQueue{
		deps:    opts.Deps,
		cfg:     opts.Config,
		backoff: batch.BackoffPolicy{Base: opts.Config.BackoffBase, Cap: opts.Config.BackoffCap},
		logger:  logger,
		now:     time.Now,
	}
}

// EnqueueBatch creates a bulk run over the given accounts. Concurrency is
// clamped to the runner's worker ceiling.
func (q *BatchQueue) EnqueueBatch(ctx context.Context, accountIDs []string, concurrency int, createdBy string) (*model.BatchJob, error) {
	job, err := q.deps.Batches.Enqueue(ctx, core.EnqueueBatchParams{
		AccountIDs:  accountIDs,
		Concurrency: batch.ClampConcurrency(concurrency, q.cfg.MaxWorkers),
		MaxAttempts: q.cfg.MaxAttempts,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue batch: %w", err)
	}

	q.logger.Info("batch enqueued",
		"job_id", job.ID, "accounts", job.Total, "concurrency", job.Concurrency)
	q.audit(ctx, "", fmt.Sprintf("batch %s enqueued with %d accounts", job.ID, job.Total))
	return job, nil
}

// BatchStatus is a job row plus its live item counters.
type BatchStatus struct {
	Job   *model.BatchJob   `json:"job"`
	Stats *model.BatchStats `json:"stats"`
}

// GetBatchStatus returns the job and a live per-status item snapshot.
func (q *BatchQueue) GetBatchStatus(ctx context.Context, jobID string) (*BatchStatus, error) {
	job, err := q.deps.Batches.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	stats, err := q.deps.Batches.Stats(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &BatchStatus{Job: job, Stats: stats}, nil
}

// PauseBatch stops new claims for the job. Running items finish normally.
func (q *BatchQueue) PauseBatch(ctx context.Context, jobID string) error {
	if err := q.deps.Batches.SetJobStatus(ctx, jobID, model.BatchJobPaused); err != nil {
		return fmt.Errorf("pause batch: %w", err)
	}
	q.audit(ctx, "", fmt.Sprintf("batch %s paused", jobID))
	return nil
}

// ResumeBatch re-opens the job for claiming.
func (q *BatchQueue) ResumeBatch(ctx context.Context, jobID string) error {
	if err := q.deps.Batches.SetJobStatus(ctx, jobID, model.BatchJobActive); err != nil {
		return fmt.Errorf("resume batch: %w", err)
	}
	q.audit(ctx, "", fmt.Sprintf("batch %s resumed", jobID))
	return nil
}

// CancelBatch discards all still-pending items and marks the job canceled.
// Running items are not interrupted; their results still land in the
// counters when they finish.
func (q *BatchQueue) CancelBatch(ctx context.Context, jobID string) error {
	canceled, err := q.deps.Batches.CancelPendingItems(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cancel batch items: %w", err)
	}
	if err := q.deps.Batches.SetJobStatus(ctx, jobID, model.BatchJobCanceled); err != nil {
		return fmt.Errorf("cancel batch: %w", err)
	}

	q.logger.Info("batch canceled", "job_id", jobID, "discarded_items", canceled)
	q.audit(ctx, "", fmt.Sprintf("batch %s canceled, %d pending items discarded", jobID, canceled))
	return nil
}

// ClaimDue claims due items across all active jobs, each job bounded by its
// own concurrency ceiling. Returns the claimed items for execution.
func (q *BatchQueue) ClaimDue(ctx context.Context) ([]*model.BatchJobItem, error) {
	jobs, err := q.deps.Batches.ListOpenJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}

	var claimed []*model.BatchJobItem
	for _, job := range jobs {
		if job.Status != model.BatchJobActive {
			continue
		}
		running, err := q.deps.Batches.RunningCount(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("count running items: %w", err)
		}
		capacity := batch.ClaimCapacity(job.Concurrency, running)
		if capacity == 0 {
			continue
		}

		items, err := q.deps.Batches.ClaimNext(ctx, core.ClaimParams{
			JobID:    job.ID,
			Capacity: capacity,
			Lease:    q.cfg.ClaimLease,
		})
		if errors.Is(err, model.ErrNoItemsAvailable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claim items of job %s: %w", job.ID, err)
		}
		claimed = append(claimed, items...)
	}
	return claimed, nil
}

// ExecuteItem runs one claimed item to a terminal or requeued state. The
// per-account advisory lock keeps a scheduled run and a batch run of the
// same account from overlapping; a busy account is requeued without
// consuming an attempt.
func (q *BatchQueue) ExecuteItem(ctx context.Context, item *model.BatchJobItem) {
	locked, release, err := q.deps.Accounts.TryAccountLock(ctx, item.AccountID)
	if err != nil {
		q.logger.Error("account lock error", "item_id", item.ID, "error", err)
		q.requeue(ctx, item, q.cfg.BackoffBase, fmt.Sprintf("account lock: %v", err))
		return
	}
	if !locked {
		q.logger.Info("account busy, requeueing item",
			"item_id", item.ID, "account_id", item.AccountID)
		q.requeue(ctx, item, q.cfg.BackoffBase, "account busy with another run")
		return
	}
	defer release()

	attempts, err := q.deps.Batches.BumpAttempt(ctx, item.ID)
	if err != nil {
		q.logger.Error("attempt bump failed", "item_id", item.ID, "error", err)
		return
	}

	report, runErr := q.deps.Orchestrator.RunAccount(ctx, item.AccountID, RunOptions{Source: "batch"})

	switch {
	case runErr != nil:
		q.settleFailure(ctx, item, attempts, runErr.Error())
	case report.Status == model.RunAllFail || report.Status == model.RunPartialFail:
		// A partial failure still means some task did not land; retry the
		// whole account, the per-task dedupe skips what already succeeded.
		q.settleFailure(ctx, item, attempts, firstFailureMessage(report))
	default:
		q.finalize(ctx, item, model.BatchItemSuccess, string(report.Status))
		metrics.EmitBatchItem(q.deps.Sink, metrics.BatchMetric{
			Result:   metrics.ResultSuccess,
			Attempts: attempts,
		})
	}
}

// settleFailure either requeues with backoff or lands the item as failed
// when the attempt budget is spent.
func (q *BatchQueue) settleFailure(ctx context.Context, item *model.BatchJobItem, attempts int, message string) {
	if attempts >= item.MaxAttempts {
		q.finalize(ctx, item, model.BatchItemFail, message)
		metrics.EmitBatchItem(q.deps.Sink, metrics.BatchMetric{
			Result:   metrics.ResultError,
			Attempts: attempts,
			Err:      errors.New(message),
		})
		return
	}

	delay := q.backoff.Delay(attempts)
	q.logger.Warn("batch item failed, retrying",
		"item_id", item.ID, "attempt", attempts, "max_attempts", item.MaxAttempts,
		"delay", delay, "error", message)
	q.requeue(ctx, item, delay, message)
}

func (q *BatchQueue) requeue(ctx context.Context, item *model.BatchJobItem, delay time.Duration, lastError string) {
	err := q.deps.Batches.Requeue(ctx, core.RequeueParams{
		ItemID:    item.ID,
		LastError: lastError,
		NextRunAt: q.now().Add(delay),
	})
	if err != nil {
		q.logger.Error("item requeue failed", "item_id", item.ID, "error", err)
	}
}

func (q *BatchQueue) finalize(ctx context.Context, item *model.BatchJobItem, status model.BatchItemStatus, message string) {
	err := q.deps.Batches.Finalize(ctx, core.FinalizeParams{
		ItemID:  item.ID,
		Status:  status,
		Message: message,
	})
	if err != nil {
		q.logger.Error("item finalize failed", "item_id", item.ID, "error", err)
	}
}

func (q *BatchQueue) audit(ctx context.Context, accountID, message string) {
	if q.deps.Audit == nil {
		return
	}
	entry := &model.AuditEntry{AccountID: accountID, Kind: model.AuditBatch, Message: message}
	if err := q.deps.Audit.Append(ctx, entry); err != nil {
		q.logger.Warn("audit append failed", "error", err)
	}
}

// firstFailureMessage pulls the first failing task's message for the item's
// error column.
func firstFailureMessage(report *model.RunReport) string {
	for _, res := range report.Results {
		if res.Status == model.TaskFail {
			return res.Message
		}
	}
	return string(report.Status)
}

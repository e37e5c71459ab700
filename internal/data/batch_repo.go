package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/data/pgxutil"
	"github.com/punchd-io/punchd/internal/domain/model"
)

// BatchRepo is the PostgreSQL implementation of core.BatchRepository. Claims
// use FOR UPDATE SKIP LOCKED so multiple runner processes can poll the same
// job without blocking each other, and counter updates are single atomic
// statements so the job invariants hold under concurrency.
type BatchRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// BatchRepoOptions groups optional dependencies for BatchRepo.
type BatchRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewBatchRepo constructs a BatchRepo backed by the given database.
func NewBatchRepo(db *sql.DB, opts BatchRepoOptions) *BatchRepo {
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &BatchRepo{DB: db, timeProvider: tp, logger: opts.Logger}
}

const batchJobColumns = `id, status, concurrency, total, completed, succeeded,
	failed, canceled, created_by, created_at, finished_at`

const batchItemColumns = `id, job_id, account_id, status, attempts, max_attempts,
	next_run_at, lease_expires_at, last_error, message, created_at, finished_at`

// Enqueue creates a job and one item per account in a single transaction.
// An empty account list yields a job born done.
func (r *BatchRepo) Enqueue(ctx context.Context, params core.EnqueueBatchParams) (*model.BatchJob, error) {
	if params.Concurrency < 1 {
		return nil, errors.New("concurrency must be at least 1")
	}
	if params.MaxAttempts < 1 {
		return nil, errors.New("max attempts must be at least 1")
	}

	var job *model.BatchJob
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
		status := model.BatchJobActive
		var finishedAt *time.Time
		if len(params.AccountIDs) == 0 {
			status = model.BatchJobDone
			now := r.timeProvider.Now().UTC()
			finishedAt = &now
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO batch_jobs (status, concurrency, total, created_by, finished_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+batchJobColumns,
			status, params.Concurrency, len(params.AccountIDs), params.CreatedBy, finishedAt,
		)
		var scanErr error
		job, scanErr = scanBatchJob(row)
		if scanErr != nil {
			return fmt.Errorf("insert batch job: %w", scanErr)
		}

		for _, accountID := range params.AccountIDs {
			if _, execErr := tx.ExecContext(ctx, `
				INSERT INTO batch_job_items (job_id, account_id, max_attempts)
				VALUES ($1, $2, $3)
			`, job.ID, accountID, params.MaxAttempts); execErr != nil {
				return fmt.Errorf("insert batch item: %w", execErr)
			}
		}
		return nil
	}})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns the job with the given id.
func (r *BatchRepo) GetJob(ctx context.Context, id string) (*model.BatchJob, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+batchJobColumns+` FROM batch_jobs WHERE id = $1`, id)
	job, err := scanBatchJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch job: %w", err)
	}
	return job, nil
}

// ListOpenJobs returns active and paused jobs, oldest first. The runner polls
// this to decide which jobs to claim from.
func (r *BatchRepo) ListOpenJobs(ctx context.Context) ([]*model.BatchJob, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+batchJobColumns+` FROM batch_jobs
		WHERE status IN ('active', 'paused')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.BatchJob
	for rows.Next() {
		job, scanErr := scanBatchJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan batch job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListItems returns all items of a job ordered by id.
func (r *BatchRepo) ListItems(ctx context.Context, jobID string) ([]*model.BatchJobItem, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+batchItemColumns+` FROM batch_job_items
		WHERE job_id = $1 ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list batch items: %w", err)
	}
	defer rows.Close()

	var items []*model.BatchJobItem
	for rows.Next() {
		item, scanErr := scanBatchItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan batch item: %w", scanErr)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// claimNextSQL selects due pending items with SKIP LOCKED inside a CTE and
// flips them to running in the enclosing UPDATE, all in one statement.
const claimNextSQL = `
	WITH due AS (
		SELECT id FROM batch_job_items
		WHERE job_id = $1
		  AND status = 'pending'
		  AND next_run_at <= $2
		ORDER BY id ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	UPDATE batch_job_items i
	SET status = 'running', lease_expires_at = $4
	FROM due
	WHERE i.id = due.id
	RETURNING ` + prefixedBatchItemColumns

const prefixedBatchItemColumns = `i.id, i.job_id, i.account_id, i.status,
	i.attempts, i.max_attempts, i.next_run_at, i.lease_expires_at,
	i.last_error, i.message, i.created_at, i.finished_at`

// ClaimNext claims up to Capacity due items of the job. Returns
// model.ErrNoItemsAvailable when nothing is due.
func (r *BatchRepo) ClaimNext(ctx context.Context, params core.ClaimParams) ([]*model.BatchJobItem, error) {
	if params.Capacity < 1 {
		return nil, model.ErrNoItemsAvailable
	}
	now := r.timeProvider.Now().UTC()
	leaseUntil := now.Add(params.Lease)

	rows, err := r.DB.QueryContext(ctx, claimNextSQL,
		params.JobID, now, params.Capacity, leaseUntil)
	if err != nil {
		return nil, fmt.Errorf("claim batch items: %w", err)
	}
	defer rows.Close()

	var items []*model.BatchJobItem
	for rows.Next() {
		item, scanErr := scanBatchItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan claimed item: %w", scanErr)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim batch items: %w", err)
	}
	if len(items) == 0 {
		return nil, model.ErrNoItemsAvailable
	}
	return items, nil
}

// RunningCount returns the number of currently running items of the job.
func (r *BatchRepo) RunningCount(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM batch_job_items
		WHERE job_id = $1 AND status = 'running'
	`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count running items: %w", err)
	}
	return count, nil
}

// BumpAttempt increments the item's attempt counter and returns the new value.
func (r *BatchRepo) BumpAttempt(ctx context.Context, itemID int64) (int, error) {
	var attempts int
	err := r.DB.QueryRowContext(ctx, `
		UPDATE batch_job_items SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, itemID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrItemNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("bump item attempt: %w", err)
	}
	return attempts, nil
}

// Requeue returns a running item to pending with a backoff deadline. The
// attempt counter was already consumed by BumpAttempt.
func (r *BatchRepo) Requeue(ctx context.Context, params core.RequeueParams) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE batch_job_items
		SET status = 'pending', next_run_at = $2, last_error = $3,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'running'
	`, params.ItemID, params.NextRunAt.UTC(), params.LastError)
	if err != nil {
		return fmt.Errorf("requeue batch item: %w", err)
	}
	return requireRowAffected(res, ErrItemNotFound)
}

// finalizeSQL lands the item in a terminal state, then bumps the parent job's
// counters and flips it to done when the last item lands, as one statement so
// crashes cannot leave the counters out of step.
const finalizeSQL = `
	WITH finished AS (
		UPDATE batch_job_items
		SET status = $2, message = $3, finished_at = $4, lease_expires_at = NULL
		WHERE id = $1 AND status = 'running'
		RETURNING job_id
	)
	UPDATE batch_jobs j
	SET completed = j.completed + 1,
	    succeeded = j.succeeded + CASE WHEN $2 = 'success' THEN 1 ELSE 0 END,
	    failed    = j.failed    + CASE WHEN $2 = 'fail'    THEN 1 ELSE 0 END,
	    canceled  = j.canceled  + CASE WHEN $2 = 'canceled' THEN 1 ELSE 0 END,
	    status    = CASE WHEN j.completed + 1 >= j.total AND j.status = 'active'
	                     THEN 'done' ELSE j.status END,
	    finished_at = CASE WHEN j.completed + 1 >= j.total AND j.finished_at IS NULL
	                       THEN $4 ELSE j.finished_at END
	FROM finished
	WHERE j.id = finished.job_id`

// Finalize moves a running item to a terminal state and updates the parent
// job atomically.
func (r *BatchRepo) Finalize(ctx context.Context, params core.FinalizeParams) error {
	if !params.Status.Terminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", params.Status)
	}
	res, err := r.DB.ExecContext(ctx, finalizeSQL,
		params.ItemID, params.Status, params.Message, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("finalize batch item: %w", err)
	}
	return requireRowAffected(res, ErrItemNotFound)
}

// SetJobStatus transitions a job between active, paused, and canceled. Terminal
// jobs are left untouched.
func (r *BatchRepo) SetJobStatus(ctx context.Context, jobID string, status model.BatchJobStatus) error {
	query := `
		UPDATE batch_jobs SET status = $2
		WHERE id = $1 AND status NOT IN ('done', 'canceled')`
	args := []any{jobID, status}
	if status.Terminal() {
		query = `
		UPDATE batch_jobs SET status = $2, finished_at = $3
		WHERE id = $1 AND status NOT IN ('done', 'canceled')`
		args = append(args, r.timeProvider.Now().UTC())
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return requireRowAffected(res, ErrJobNotFound)
}

// CancelPendingItems cancels every still-pending item of the job and folds
// them into the job counters in one statement.
func (r *BatchRepo) CancelPendingItems(ctx context.Context, jobID string) (int64, error) {
	var canceled int64
	err := r.DB.QueryRowContext(ctx, `
		WITH canceled_items AS (
			UPDATE batch_job_items
			SET status = 'canceled', finished_at = $2
			WHERE job_id = $1 AND status = 'pending'
			RETURNING 1
		), n AS (
			SELECT count(*) AS c FROM canceled_items
		), bump AS (
			UPDATE batch_jobs j
			SET completed = j.completed + n.c,
			    canceled  = j.canceled + n.c
			FROM n
			WHERE j.id = $1 AND n.c > 0
		)
		SELECT c FROM n
	`, jobID, r.timeProvider.Now().UTC()).Scan(&canceled)
	if err != nil {
		return 0, fmt.Errorf("cancel pending items: %w", err)
	}
	return canceled, nil
}

// Stats returns a per-status item count snapshot for the job.
func (r *BatchRepo) Stats(ctx context.Context, jobID string) (*model.BatchStats, error) {
	var stats model.BatchStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'running'),
			count(*) FILTER (WHERE status = 'success'),
			count(*) FILTER (WHERE status = 'fail'),
			count(*) FILTER (WHERE status = 'canceled')
		FROM batch_job_items
		WHERE job_id = $1
	`, jobID).Scan(&stats.Pending, &stats.Running, &stats.Success, &stats.Fail, &stats.Canceled)
	if err != nil {
		return nil, fmt.Errorf("batch stats: %w", err)
	}
	return &stats, nil
}

// RequeueExpiredLeases returns crashed running items to pending. The attempt
// consumed at claim time is handed back; a lapsed lease means the runner died,
// not that the account run failed.
func (r *BatchRepo) RequeueExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE batch_job_items
		SET status = 'pending', lease_expires_at = NULL,
		    attempts = CASE WHEN attempts > 0 THEN attempts - 1 ELSE 0 END
		WHERE status = 'running'
		  AND lease_expires_at IS NOT NULL
		  AND lease_expires_at <= $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("requeue expired leases: %w", err)
	}
	requeued, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue expired leases: %w", err)
	}
	if requeued > 0 && r.logger != nil {
		r.logger.Warn("requeued items with lapsed leases", "count", requeued)
	}
	return requeued, nil
}

// DeleteOldJobs removes terminal jobs older than maxAge, batchSize at a time.
// Items cascade with the job.
func (r *BatchRepo) DeleteOldJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := r.timeProvider.Now().UTC().Add(-maxAge)
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM batch_jobs
		WHERE id IN (
			SELECT id FROM batch_jobs
			WHERE status IN ('done', 'canceled') AND created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return deleted, nil
}

func scanBatchJob(scanner accountRowScanner) (*model.BatchJob, error) {
	var (
		job        model.BatchJob
		finishedAt sql.NullTime
	)
	if err := scanner.Scan(
		&job.ID, &job.Status, &job.Concurrency, &job.Total, &job.Completed,
		&job.Succeeded, &job.Failed, &job.Canceled, &job.CreatedBy,
		&job.CreatedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		job.FinishedAt = &t
	}
	return &job, nil
}

func scanBatchItem(scanner accountRowScanner) (*model.BatchJobItem, error) {
	var (
		item                      model.BatchJobItem
		leaseExpiresAt, finishedAt sql.NullTime
	)
	if err := scanner.Scan(
		&item.ID, &item.JobID, &item.AccountID, &item.Status,
		&item.Attempts, &item.MaxAttempts, &item.NextRunAt, &leaseExpiresAt,
		&item.LastError, &item.Message, &item.CreatedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	if leaseExpiresAt.Valid {
		t := leaseExpiresAt.Time.UTC()
		item.LeaseExpiresAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		item.FinishedAt = &t
	}
	return &item, nil
}

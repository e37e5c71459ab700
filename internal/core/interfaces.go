// Package core defines the port interfaces the service layer depends on.
// Data, remote, and adapter packages implement these; services never import
// concrete implementations.
package core

import (
	"context"
	"time"

	"github.com/punchd-io/punchd/internal/domain/model"
)

// AccountRepository is the persistence port for accounts.
type AccountRepository interface {
	Create(ctx context.Context, acct *model.Account) (*model.Account, error)
	GetByID(ctx context.Context, id string) (*model.Account, error)
	List(ctx context.Context, enabledOnly bool) ([]*model.Account, error)
	Update(ctx context.Context, acct *model.Account) error
	Delete(ctx context.Context, id string) error

	// SetEnabled flips the enable flag without touching other config.
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// StampStartDate sets start_date to the given date only when it is
	// currently unset; the first scheduled run anchors the expiry window.
	StampStartDate(ctx context.Context, id string, date time.Time) error

	// RecordRun persists the outcome of an account run on the account row.
	RecordRun(ctx context.Context, id string, report *model.RunReport) error

	// TryAccountLock takes a session-scoped advisory lock for the account so
	// scheduled and batch runs never execute the same account concurrently.
	// The release func must be called when the run finishes.
	TryAccountLock(ctx context.Context, id string) (locked bool, release func(), err error)
}

// EnqueueBatchParams groups inputs for creating a bulk run.
type EnqueueBatchParams struct {
	AccountIDs  []string
	Concurrency int
	MaxAttempts int
	CreatedBy   string
}

// ClaimParams bounds one claim pass for a job.
type ClaimParams struct {
	JobID    string
	Capacity int
	Lease    time.Duration
}

// RequeueParams re-queues a failed item with backoff.
type RequeueParams struct {
	ItemID    int64
	LastError string
	NextRunAt time.Time
}

// FinalizeParams records an item's terminal state and bumps the job counters
// in the same statement.
type FinalizeParams struct {
	ItemID  int64
	Status  model.BatchItemStatus
	Message string
}

// BatchRepository is the persistence port for bulk runs.
type BatchRepository interface {
	Enqueue(ctx context.Context, params EnqueueBatchParams) (*model.BatchJob, error)
	GetJob(ctx context.Context, id string) (*model.BatchJob, error)
	ListOpenJobs(ctx context.Context) ([]*model.BatchJob, error)
	ListItems(ctx context.Context, jobID string) ([]*model.BatchJobItem, error)

	// ClaimNext atomically claims up to Capacity due pending items of the job,
	// marks them running with a claim lease, and returns them oldest-first.
	ClaimNext(ctx context.Context, params ClaimParams) ([]*model.BatchJobItem, error)

	// RunningCount returns how many items of the job are currently running.
	RunningCount(ctx context.Context, jobID string) (int, error)

	// BumpAttempt increments the item's attempt counter; the returned count
	// is the number of executions consumed so far.
	BumpAttempt(ctx context.Context, itemID int64) (int, error)

	Requeue(ctx context.Context, params RequeueParams) error

	// Finalize moves the item to a terminal state and updates the parent
	// job's counters atomically, flipping the job to done when the last item
	// lands.
	Finalize(ctx context.Context, params FinalizeParams) error

	SetJobStatus(ctx context.Context, jobID string, status model.BatchJobStatus) error

	// CancelPendingItems marks all still-pending items of the job canceled
	// and folds them into the counters; returns how many were canceled.
	CancelPendingItems(ctx context.Context, jobID string) (int64, error)

	Stats(ctx context.Context, jobID string) (*model.BatchStats, error)

	// RequeueExpiredLeases returns crashed running items (lease lapsed) to
	// pending without consuming an attempt.
	RequeueExpiredLeases(ctx context.Context, now time.Time) (int64, error)

	// DeleteOldJobs removes terminal jobs (and their items) older than maxAge,
	// at most batchSize jobs per call.
	DeleteOldJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// AuditRepository is the append-only audit log port.
type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*model.AuditEntry, error)
	DeleteOld(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// CaptchaSolver solves the platform's two captcha styles. Implementations are
// black boxes (an external solver endpoint in production, stubs in tests).
type CaptchaSolver interface {
	// SolveSlider returns the point JSON ({"x":...,"y":5}) for a jigsaw
	// slider challenge given the piece and background images (base64).
	SolveSlider(ctx context.Context, jigsawB64, backgroundB64 string) (string, error)
	// SolveClickWords returns the point-list JSON for a click-word challenge.
	SolveClickWords(ctx context.Context, imageB64 string, words []string) (string, error)
}

// GenerateParams steers one content generation request.
type GenerateParams struct {
	Prompt  string
	Period  model.ReportPeriod
	JobInfo string
	Extra   map[string]string
}

// ContentGenerator produces report body text.
type ContentGenerator interface {
	Generate(ctx context.Context, params GenerateParams) (string, error)
}

// UploadParams groups inputs for one report image upload batch.
type UploadParams struct {
	Token  string
	UserID string
	OrgID  string
	Count  int
}

// ImageUploader pushes report images to object storage and returns the
// comma-joined attachment keys.
type ImageUploader interface {
	Upload(ctx context.Context, params UploadParams) (string, error)
}

// TokenCache persists remote session tokens between runs so every run does
// not re-login (and re-solve a captcha).
type TokenCache interface {
	Get(ctx context.Context, accountID string) (string, error)
	Set(ctx context.Context, accountID, sessionJSON string, ttl time.Duration) error
	Delete(ctx context.Context, accountID string) error
}

// HolidayCache persists fetched year calendars so restarts and other
// processes do not re-download them.
type HolidayCache interface {
	// GetYear returns the cached calendar JSON for the year, or "" when absent.
	GetYear(ctx context.Context, year int) (string, error)
	SetYear(ctx context.Context, year int, calendarJSON string) error
}

// HolidayLookup answers whether a date is a statutory holiday or swapped
// working day.
type HolidayLookup interface {
	// IsHoliday returns true when date is an off day (holiday, or weekend
	// not swapped into a working day).
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

// Pusher delivers an account run report to one notification target.
type Pusher interface {
	Push(ctx context.Context, target model.NotificationTarget, report *model.RunReport) error
}

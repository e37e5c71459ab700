package model

import (
	"errors"
	"time"
)

// BatchJobStatus is the lifecycle state of a bulk run.
type BatchJobStatus string

const (
	// BatchJobActive means items are eligible for claiming.
	BatchJobActive BatchJobStatus = "active"
	// BatchJobPaused stops new claims; running items finish normally.
	BatchJobPaused BatchJobStatus = "paused"
	// BatchJobCanceled is terminal; pending items were discarded.
	BatchJobCanceled BatchJobStatus = "canceled"
	// BatchJobDone is terminal; every item reached a terminal state.
	BatchJobDone BatchJobStatus = "done"
)

// Terminal reports whether the job can no longer change state.
func (s BatchJobStatus) Terminal() bool {
	return s == BatchJobCanceled || s == BatchJobDone
}

// BatchItemStatus is the lifecycle state of one account within a bulk run.
type BatchItemStatus string

const (
	BatchItemPending  BatchItemStatus = "pending"
	BatchItemRunning  BatchItemStatus = "running"
	BatchItemSuccess  BatchItemStatus = "success"
	BatchItemFail     BatchItemStatus = "fail"
	BatchItemCanceled BatchItemStatus = "canceled"
)

// Terminal reports whether the item can no longer be claimed.
func (s BatchItemStatus) Terminal() bool {
	return s == BatchItemSuccess || s == BatchItemFail || s == BatchItemCanceled
}

// BatchJob is one bulk run over a set of accounts.
type BatchJob struct {
	ID          string         `json:"id"`
	Status      BatchJobStatus `json:"status"`
	Concurrency int            `json:"concurrency"`

	// Counters. completed = succeeded + failed + canceled always holds; they
	// are only mutated by single atomic UPDATEs.
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`

	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BatchJobItem is one account's slot within a bulk run. Items are retained
// after completion as the audit trail of the run.
type BatchJobItem struct {
	ID        int64           `json:"id"`
	JobID     string          `json:"job_id"`
	AccountID string          `json:"account_id"`
	Status    BatchItemStatus `json:"status"`

	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	NextRunAt      time.Time  `json:"next_run_at"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	Message        string     `json:"message,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BatchStats is a point-in-time counter snapshot for one job.
type BatchStats struct {
	Pending  int64
	Running  int64
	Success  int64
	Fail     int64
	Canceled int64
}

// ErrNoItemsAvailable is returned by claim operations when no pending item is
// due under the job's concurrency ceiling.
var ErrNoItemsAvailable = errors.New("no batch items available")

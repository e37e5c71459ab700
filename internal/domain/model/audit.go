package model

import (
	"encoding/json"
	"time"
)

// AuditKind classifies audit log entries.
type AuditKind string

const (
	AuditRun      AuditKind = "run"
	AuditTrigger  AuditKind = "trigger"
	AuditBatch    AuditKind = "batch"
	AuditExpiry   AuditKind = "expiry"
	AuditNotify   AuditKind = "notify"
)

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID        int64           `json:"id"`
	AccountID string          `json:"account_id,omitempty"`
	Kind      AuditKind       `json:"kind"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

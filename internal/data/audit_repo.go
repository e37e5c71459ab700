package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/punchd-io/punchd/internal/domain/model"
)

// AuditRepo is the PostgreSQL implementation of core.AuditRepository.
type AuditRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAuditRepo constructs an AuditRepo backed by the given database.
func NewAuditRepo(db *sql.DB, tp TimeProvider) *AuditRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &AuditRepo{DB: db, timeProvider: tp}
}

// Append writes one audit row. The entry's ID and CreatedAt are filled in.
func (r *AuditRepo) Append(ctx context.Context, entry *model.AuditEntry) error {
	var accountID any
	if entry.AccountID != "" {
		accountID = entry.AccountID
	}
	details := entry.Details
	if len(details) == 0 {
		details = []byte(`{}`)
	}

	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO audit_logs (account_id, kind, message, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, accountID, entry.Kind, entry.Message, []byte(details)).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByAccount returns the newest entries for an account, newest first.
func (r *AuditRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, account_id, kind, message, details, created_at
		FROM audit_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var (
			entry model.AuditEntry
			acct  sql.NullString
		)
		if scanErr := rows.Scan(&entry.ID, &acct, &entry.Kind, &entry.Message,
			(*[]byte)(&entry.Details), &entry.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("scan audit entry: %w", scanErr)
		}
		entry.AccountID = acct.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteOld removes entries older than maxAge, batchSize at a time.
func (r *AuditRepo) DeleteOld(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := r.timeProvider.Now().UTC().Add(-maxAge)
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM audit_logs
		WHERE id IN (
			SELECT id FROM audit_logs
			WHERE created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old audit entries: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old audit entries: %w", err)
	}
	return deleted, nil
}

package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/punchd-io/punchd/internal/data/cryptoutil"
	"github.com/punchd-io/punchd/internal/domain/model"
)

// AccountRepo is the PostgreSQL implementation of core.AccountRepository.
// Passwords are encrypted at rest and transparently decrypted on load.
type AccountRepo struct {
	DB           *sql.DB
	encryptor    cryptoutil.Encryptor
	timeProvider TimeProvider
	logger       *slog.Logger
}

// AccountRepoOptions groups optional dependencies for AccountRepo.
type AccountRepoOptions struct {
	Encryptor    cryptoutil.Encryptor
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewAccountRepo constructs an AccountRepo backed by the given database.
func NewAccountRepo(db *sql.DB, opts AccountRepoOptions) *AccountRepo {
	enc := opts.Encryptor
	if enc == nil {
		enc = &cryptoutil.NoopEncryptor{}
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &AccountRepo{
		DB:           db,
		encryptor:    enc,
		timeProvider: tp,
		logger:       opts.Logger,
	}
}

const accountColumns = `id, phone, password_enc, user_type, device_id, enabled,
	clock_in, reports, notifications, total_days, start_date,
	last_run_at, last_run_status, created_at, updated_at`

// Create inserts a new account. Returns ErrAccountAlreadyExists when the
// phone number is already registered.
func (r *AccountRepo) Create(ctx context.Context, acct *model.Account) (*model.Account, error) {
	if acct == nil {
		return nil, errors.New("account is required")
	}
	if err := acct.Validate(); err != nil {
		return nil, err
	}

	passwordEnc, err := r.encryptor.Encrypt([]byte(acct.Password))
	if err != nil {
		return nil, fmt.Errorf("encrypt password: %w", err)
	}

	clockIn, reports, notifications, err := marshalAccountConfig(acct)
	if err != nil {
		return nil, err
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO accounts (phone, password_enc, user_type, device_id, enabled,
			clock_in, reports, notifications, total_days, start_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+accountColumns,
		acct.Phone, passwordEnc, acct.UserType, acct.DeviceID, acct.Enabled,
		clockIn, reports, notifications, acct.TotalDays, acct.StartDate,
	)

	created, err := r.scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return created, nil
}

// GetByID returns the account with the given id, password decrypted.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	acct, err := r.scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// List returns all accounts, optionally filtered to enabled ones, ordered by
// creation time.
func (r *AccountRepo) List(ctx context.Context, enabledOnly bool) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if enabledOnly {
		query += ` WHERE enabled`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		acct, scanErr := r.scanAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan account: %w", scanErr)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// Update persists configuration changes. The password is re-encrypted only
// when the model carries a non-empty one.
func (r *AccountRepo) Update(ctx context.Context, acct *model.Account) error {
	if acct == nil || acct.ID == "" {
		return errors.New("account with id is required")
	}

	clockIn, reports, notifications, err := marshalAccountConfig(acct)
	if err != nil {
		return err
	}

	args := []any{
		acct.ID, acct.Phone, acct.UserType, acct.DeviceID, acct.Enabled,
		clockIn, reports, notifications, acct.TotalDays, acct.StartDate,
		r.timeProvider.Now().UTC(),
	}
	query := `
		UPDATE accounts SET
			phone = $2, user_type = $3, device_id = $4, enabled = $5,
			clock_in = $6, reports = $7, notifications = $8,
			total_days = $9, start_date = $10, updated_at = $11`

	if acct.Password != "" {
		passwordEnc, encErr := r.encryptor.Encrypt([]byte(acct.Password))
		if encErr != nil {
			return fmt.Errorf("encrypt password: %w", encErr)
		}
		query += `, password_enc = $12`
		args = append(args, passwordEnc)
	}
	query += ` WHERE id = $1`

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireRowAffected(res, ErrAccountNotFound)
}

// Delete removes the account row.
func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireRowAffected(res, ErrAccountNotFound)
}

// SetEnabled flips the enable flag.
func (r *AccountRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts SET enabled = $2, updated_at = $3 WHERE id = $1
	`, id, enabled, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("set account enabled: %w", err)
	}
	return requireRowAffected(res, ErrAccountNotFound)
}

// StampStartDate sets start_date only when unset, anchoring the total-days
// expiry window at the first scheduled run.
func (r *AccountRepo) StampStartDate(ctx context.Context, id string, date time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE accounts SET start_date = $2, updated_at = $3
		WHERE id = $1 AND start_date IS NULL
	`, id, date.UTC(), r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("stamp start date: %w", err)
	}
	return nil
}

// RecordRun persists an account run outcome on the account row.
func (r *AccountRepo) RecordRun(ctx context.Context, id string, report *model.RunReport) error {
	if report == nil {
		return errors.New("run report is required")
	}
	results, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("marshal run results: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE accounts SET
			last_run_at = $2, last_run_status = $3, last_results = $4, updated_at = $5
		WHERE id = $1
	`, id, report.FinishedAt.UTC(), report.Status, results, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return requireRowAffected(res, ErrAccountNotFound)
}

// Advisory lock namespace for per-account run exclusion.
const advisoryLockAccountMajor int32 = 2001

func advisoryLockAccountMinor(accountID string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	v := h.Sum32() & uint32(math.MaxInt32)
	return int32(v)
}

// TryAccountLock takes a session-level advisory lock for the account on a
// dedicated connection. The same connection holds the lock until release is
// called, so scheduled and batch runs never overlap on one account.
func (r *AccountRepo) TryAccountLock(ctx context.Context, id string) (bool, func(), error) {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("get conn from pool: %w", err)
	}

	minor := advisoryLockAccountMinor(id)
	var locked bool
	if err := conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock($1::integer, $2::integer)`,
		advisoryLockAccountMajor, minor,
	).Scan(&locked); err != nil {
		_ = conn.Close()
		return false, nil, fmt.Errorf("acquire account lock: %w", err)
	}

	if !locked {
		_ = conn.Close()
		return false, nil, nil
	}

	release := func() {
		// Unlock on the same connection that took the lock; closing the conn
		// would release it anyway, the explicit unlock keeps it deterministic.
		if _, unlockErr := conn.ExecContext(context.Background(),
			`SELECT pg_advisory_unlock($1::integer, $2::integer)`,
			advisoryLockAccountMajor, minor,
		); unlockErr != nil && r.logger != nil {
			r.logger.Warn("release account lock failed", "account_id", id, "error", unlockErr)
		}
		_ = conn.Close()
	}
	return true, release, nil
}

type accountRowScanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepo) scanAccount(scanner accountRowScanner) (*model.Account, error) {
	var (
		acct                            model.Account
		passwordEnc                     string
		clockIn, reports, notifications []byte
		startDate, lastRunAt            sql.NullTime
	)

	if err := scanner.Scan(
		&acct.ID, &acct.Phone, &passwordEnc, &acct.UserType, &acct.DeviceID, &acct.Enabled,
		&clockIn, &reports, &notifications, &acct.TotalDays, &startDate,
		&lastRunAt, &acct.LastRunStatus, &acct.CreatedAt, &acct.UpdatedAt,
	); err != nil {
		return nil, err
	}

	password, err := r.encryptor.Decrypt(passwordEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt password: %w", err)
	}
	acct.Password = string(password)

	if err := json.Unmarshal(clockIn, &acct.ClockIn); err != nil {
		return nil, fmt.Errorf("unmarshal clock_in: %w", err)
	}
	if err := json.Unmarshal(reports, &acct.Reports); err != nil {
		return nil, fmt.Errorf("unmarshal reports: %w", err)
	}
	if err := json.Unmarshal(notifications, &acct.Notifications); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}

	if startDate.Valid {
		t := startDate.Time.UTC()
		acct.StartDate = &t
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time.UTC()
		acct.LastRunAt = &t
	}

	return &acct, nil
}

func marshalAccountConfig(acct *model.Account) (clockIn, reports, notifications []byte, err error) {
	if clockIn, err = json.Marshal(acct.ClockIn); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal clock_in: %w", err)
	}
	if acct.Reports == nil {
		reports = []byte(`{}`)
	} else if reports, err = json.Marshal(acct.Reports); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal reports: %w", err)
	}
	if acct.Notifications == nil {
		notifications = []byte(`[]`)
	} else if notifications, err = json.Marshal(acct.Notifications); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal notifications: %w", err)
	}
	return clockIn, reports, notifications, nil
}

func requireRowAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

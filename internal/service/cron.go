package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/domain/trigger"
)

// TriggerRegistry is the port the scheduler drives. The adapter owns the
// actual cron engine; Replace swaps an account's full trigger set atomically.
type TriggerRegistry interface {
	Replace(accountID string, specs []trigger.Spec) error
	Remove(accountID string)
	// Registered returns the account ids currently carrying triggers.
	Registered() []string
}

// SchedulerDeps groups the collaborator ports of the scheduler service.
type SchedulerDeps struct {
	Accounts     core.AccountRepository
	Audit        core.AuditRepository
	Registry     TriggerRegistry
	Orchestrator *Orchestrator
}

// SchedulerOptions configures the scheduler service.
type SchedulerOptions struct {
	Deps   SchedulerDeps
	Config config.SchedulerConfig
	Logger *slog.Logger
}

// Scheduler owns per-account cron triggers: it derives them from account
// configuration, registers them with the cron engine, fires account runs
// with jitter, and retires accounts whose automation window has lapsed.
// The registry carries no hidden state; RebuildAll reconstructs everything
// from the database.
type Scheduler struct {
	deps   SchedulerDeps
	cfg    config.SchedulerConfig
	logger *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewScheduler constructs the scheduler service.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Deps.Accounts == nil {
		panic("AccountRepository is required")
	}
	if opts.Deps.Registry == nil {
		panic("TriggerRegistry is required")
	}
	if opts.Deps.Orchestrator == nil {
		panic("Orchestrator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "scheduler")
	}
	return &Scheduler{
		deps:   opts.Deps,
		cfg:    opts.Config,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RegisterAccount derives and installs the account's trigger set, replacing
// whatever was registered before. Disabled and expired accounts are removed
// instead.
func (s *Scheduler) RegisterAccount(ctx context.Context, accountID string) error {
	acct, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account for registration: %w", err)
	}

	if !acct.Enabled {
		s.deps.Registry.Remove(accountID)
		return nil
	}
	if acct.Expired(s.now()) {
		return s.retireAccount(ctx, acct)
	}

	specs, err := trigger.Derive(acct, trigger.Defaults{
		CheckinStart: s.cfg.DefaultCheckinStart,
		CheckinEnd:   s.cfg.DefaultCheckinEnd,
	})
	if err != nil {
		return fmt.Errorf("derive triggers: %w", err)
	}

	if err := s.deps.Registry.Replace(accountID, specs); err != nil {
		return fmt.Errorf("register triggers: %w", err)
	}
	s.logger.Info("account triggers registered",
		"account_id", accountID, "triggers", len(specs))
	return nil
}

// UnregisterAccount removes the account's triggers.
func (s *Scheduler) UnregisterAccount(accountID string) {
	s.deps.Registry.Remove(accountID)
	s.logger.Info("account triggers removed", "account_id", accountID)
}

// RebuildAll reconstructs the whole trigger registry from the database. Run
// at startup and after bulk account changes.
func (s *Scheduler) RebuildAll(ctx context.Context) error {
	accounts, err := s.deps.Accounts.List(ctx, true)
	if err != nil {
		return fmt.Errorf("list accounts for rebuild: %w", err)
	}

	// Drop triggers of accounts that no longer exist or are disabled.
	live := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		live[acct.ID] = true
	}
	for _, id := range s.deps.Registry.Registered() {
		if !live[id] {
			s.deps.Registry.Remove(id)
		}
	}

	var failed int
	for _, acct := range accounts {
		if err := s.RegisterAccount(ctx, acct.ID); err != nil {
			failed++
			s.logger.Error("trigger registration failed during rebuild",
				"account_id", acct.ID, "error", err)
		}
	}
	s.logger.Info("trigger registry rebuilt",
		"accounts", len(accounts), "failed", failed)
	if failed == len(accounts) && failed > 0 {
		return fmt.Errorf("every account failed trigger registration")
	}
	return nil
}

// HandleFire runs when a registered trigger fires: apply jitter, re-check the
// account's eligibility, stamp the automation window anchor, and run the
// triggered task.
func (s *Scheduler) HandleFire(ctx context.Context, accountID string, spec trigger.Spec) {
	if err := s.sleep(ctx, s.jitter(spec)); err != nil {
		return
	}

	acct, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		s.logger.Error("trigger fired for unloadable account",
			"account_id", accountID, "trigger", spec.Name, "error", err)
		return
	}
	if !acct.Enabled {
		s.deps.Registry.Remove(accountID)
		return
	}

	now := s.now()
	if acct.StartDate == nil {
		if err := s.deps.Accounts.StampStartDate(ctx, accountID, now); err != nil {
			s.logger.Warn("start date stamp failed", "account_id", accountID, "error", err)
		}
	} else if acct.Expired(now) {
		if err := s.retireAccount(ctx, acct); err != nil {
			s.logger.Error("account retire failed", "account_id", accountID, "error", err)
		}
		return
	}

	locked, release, err := s.deps.Accounts.TryAccountLock(ctx, accountID)
	if err != nil {
		s.logger.Error("account lock error", "account_id", accountID, "trigger", spec.Name, "error", err)
		return
	}
	if !locked {
		// A batch run (or another trigger) holds the account; its run covers
		// this fire.
		s.logger.Info("account busy, skipping scheduled run",
			"account_id", accountID, "trigger", spec.Name)
		return
	}
	defer release()

	s.auditTrigger(ctx, accountID, spec)

	_, err = s.deps.Orchestrator.RunAccount(ctx, accountID, RunOptions{
		ForcedCheckinType: spec.ForcedCheckinType,
		TaskFilter:        string(spec.Task),
		Source:            "scheduler",
	})
	if err != nil {
		s.logger.Error("scheduled run failed",
			"account_id", accountID, "trigger", spec.Name, "error", err)
	}
}

// retireAccount disables an account whose total-days window lapsed and drops
// its triggers.
func (s *Scheduler) retireAccount(ctx context.Context, acct *model.Account) error {
	s.deps.Registry.Remove(acct.ID)
	if err := s.deps.Accounts.SetEnabled(ctx, acct.ID, false); err != nil {
		return fmt.Errorf("disable expired account: %w", err)
	}

	s.logger.Info("account automation window lapsed, disabled",
		"account_id", acct.ID, "total_days", acct.TotalDays)
	if s.deps.Audit != nil {
		entry := &model.AuditEntry{
			AccountID: acct.ID,
			Kind:      model.AuditExpiry,
			Message:   fmt.Sprintf("automation window of %d days lapsed", acct.TotalDays),
		}
		if err := s.deps.Audit.Append(ctx, entry); err != nil {
			s.logger.Warn("audit append failed", "error", err)
		}
	}
	return nil
}

func (s *Scheduler) auditTrigger(ctx context.Context, accountID string, spec trigger.Spec) {
	if s.deps.Audit == nil {
		return
	}
	entry := &model.AuditEntry{
		AccountID: accountID,
		Kind:      model.AuditTrigger,
		Message:   fmt.Sprintf("trigger %s fired", spec.Kind),
	}
	if err := s.deps.Audit.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed", "error", err)
	}
}

// jitter picks the random pre-run delay for one fired trigger. Check-in
// fires are spread out; report fires run at their configured moment unless a
// report jitter is configured.
func (s *Scheduler) jitter(spec trigger.Spec) time.Duration {
	max := s.cfg.Jitter
	if spec.Task != model.TaskCheckin {
		max = s.cfg.ReportJitter
	}
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

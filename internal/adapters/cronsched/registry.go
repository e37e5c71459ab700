// Package cronsched adapts the cron library to the scheduler service's
// trigger registry port.
package cronsched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/domain/trigger"
)

// FireFunc is invoked when a registered trigger comes due.
type FireFunc func(ctx context.Context, accountID string, spec trigger.Spec)

// RegistryOptions holds the dependencies for creating a Registry.
type RegistryOptions struct {
	Config config.SchedulerConfig
	Fire   FireFunc
	Logger *slog.Logger
}

// Registry keeps one set of cron entries per account and fires them through
// the scheduler service. Replace swaps an account's entries atomically with
// respect to other registry calls.
type Registry struct {
	cron     *cron.Cron
	parser   cron.Parser
	location *time.Location
	fire     FireFunc
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string][]cron.EntryID
	// names tracks the spec names installed per account so Remove can drop
	// their fire history.
	names map[string][]string
	// lastFire records when each trigger last dispatched, normally or via
	// catch-up. Catch-up consults it so a rebuild inside the grace window
	// cannot re-dispatch an occurrence that already ran.
	lastFire map[string]time.Time

	// runCtx is the lifetime context handed to fired triggers. Guarded by mu;
	// nil until Run is called, so triggers registered earlier fire with it
	// once running.
	runCtx context.Context
}

// NewRegistry creates the registry. The cron clock runs in the configured
// scheduler location.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Fire == nil {
		return nil, errors.New("fire callback is required")
	}
	location, err := time.LoadLocation(opts.Config.Location)
	if err != nil {
		return nil, fmt.Errorf("loading scheduler location %q: %w", opts.Config.Location, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "cronsched")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Registry{
		cron:     cron.New(cron.WithLocation(location), cron.WithParser(parser)),
		parser:   parser,
		location: location,
		fire:     opts.Fire,
		logger:   logger,
		entries:  make(map[string][]cron.EntryID),
		names:    make(map[string][]string),
		lastFire: make(map[string]time.Time),
	}, nil
}

// Run starts the cron clock and blocks until the context is cancelled, then
// waits for in-flight trigger callbacks to return.
func (r *Registry) Run(ctx context.Context) error {
	r.mu.Lock()
	r.runCtx = ctx
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "starting trigger registry", "location", r.location.String())
	r.cron.Start()

	<-ctx.Done()
	r.logger.InfoContext(ctx, "trigger registry stopping", "reason", ctx.Err())
	<-r.cron.Stop().Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// Replace installs the account's triggers, dropping any previous set. A spec
// whose scheduled time passed within its misfire grace while the account was
// unregistered fires immediately.
func (r *Registry) Replace(accountID string, specs []trigger.Spec) error {
	schedules := make([]cron.Schedule, len(specs))
	for i, spec := range specs {
		sched, err := r.parser.Parse(spec.Expr)
		if err != nil {
			return fmt.Errorf("parsing trigger %s expr %q: %w", spec.Name, spec.Expr, err)
		}
		schedules[i] = sched
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(accountID)

	ids := make([]cron.EntryID, 0, len(specs))
	names := make([]string, 0, len(specs))
	for i, spec := range specs {
		ids = append(ids, r.cron.Schedule(schedules[i], r.job(accountID, spec)))
		names = append(names, spec.Name)
		r.catchUpLocked(accountID, spec, schedules[i])
	}
	r.entries[accountID] = ids
	r.names[accountID] = names
	return nil
}

// Remove drops all triggers for the account, along with their fire history.
// Safe to call for an account that is not registered.
func (r *Registry) Remove(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(accountID)
	for _, name := range r.names[accountID] {
		delete(r.lastFire, name)
	}
	delete(r.names, accountID)
}

// Registered returns the account ids that currently have triggers installed.
func (r *Registry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) removeLocked(accountID string) {
	for _, id := range r.entries[accountID] {
		r.cron.Remove(id)
	}
	delete(r.entries, accountID)
}

func (r *Registry) job(accountID string, spec trigger.Spec) cron.Job {
	return cron.FuncJob(func() {
		r.dispatch(accountID, spec)
	})
}

// catchUpLocked fires the spec asynchronously when its most recent scheduled
// time fell inside the misfire grace window AND no dispatch covered that
// occurrence yet. Covers triggers missed during a restart: RebuildAll
// re-registers accounts shortly after startup, and any run that should have
// happened in the last grace period still happens, once. Rebuilds that land
// inside the grace of a trigger that fired normally see its fire history and
// do nothing.
func (r *Registry) catchUpLocked(accountID string, spec trigger.Spec, sched cron.Schedule) {
	if spec.MisfireGrace <= 0 {
		return
	}
	now := time.Now().In(r.location)
	missed := sched.Next(now.Add(-spec.MisfireGrace))
	if !missed.Before(now) {
		return
	}
	if last, ok := r.lastFire[spec.Name]; ok && !last.Before(missed) {
		return
	}
	r.lastFire[spec.Name] = now
	r.logger.Info("catching up missed trigger",
		"account_id", accountID, "trigger", spec.Name, "scheduled_at", missed)
	go r.dispatch(accountID, spec)
}

func (r *Registry) dispatch(accountID string, spec trigger.Spec) {
	r.mu.Lock()
	ctx := r.runCtx
	r.lastFire[spec.Name] = time.Now().In(r.location)
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	r.fire(ctx, accountID, spec)
}

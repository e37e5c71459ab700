package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/domain/trigger"
	"github.com/punchd-io/punchd/internal/mocks"
	"github.com/punchd-io/punchd/internal/remote"
)

// fakeRegistry records Replace/Remove calls in memory.
type fakeRegistry struct {
	specs      map[string][]trigger.Spec
	replaceErr error
	removed    []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{specs: map[string][]trigger.Spec{}}
}

func (f *fakeRegistry) Replace(accountID string, specs []trigger.Spec) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.specs[accountID] = specs
	return nil
}

func (f *fakeRegistry) Remove(accountID string) {
	delete(f.specs, accountID)
	f.removed = append(f.removed, accountID)
}

func (f *fakeRegistry) Registered() []string {
	ids := make([]string, 0, len(f.specs))
	for id := range f.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type schedulerHarness struct {
	sched    *Scheduler
	accounts *mocks.MockAccountRepository
	registry *fakeRegistry
	remote   *fakeRemote
}

func newSchedulerHarness(t *testing.T) *schedulerHarness {
	t.Helper()
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountRepository(ctrl)
	registry := newFakeRegistry()
	client := &fakeRemote{
		weeks: []remote.WeekPeriod{{StartTime: "2026-03-02 00:00:00", EndTime: "2026-03-08 00:00:00"}},
	}

	orch := NewOrchestrator(OrchestratorOptions{
		Deps:   OrchestratorDeps{Accounts: accounts},
		Remote: func(remote.Credentials) RemoteAPI { return client },
		Logger: slog.New(slog.DiscardHandler),
	})

	sched := NewScheduler(SchedulerOptions{
		Deps: SchedulerDeps{Accounts: accounts, Registry: registry, Orchestrator: orch},
		Config: config.SchedulerConfig{
			DefaultCheckinStart: "07:30",
			DefaultCheckinEnd:   "18:00",
		},
		Logger: slog.New(slog.DiscardHandler),
	})
	// Deterministic tests: no jitter waits.
	sched.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return &schedulerHarness{sched: sched, accounts: accounts, registry: registry, remote: client}
}

func TestRegisterAccountInstallsTriggers(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	acct := fullyConfiguredAccount()
	acct.Reports[model.ReportDaily] = model.ReportSettings{Enabled: true, SubmitTime: "20:00"}
	acct.Reports[model.ReportWeekly] = model.ReportSettings{Enabled: true, SubmitTime: "21:00", SubmitWeekday: time.Friday}
	acct.Reports[model.ReportMonthly] = model.ReportSettings{Enabled: true, SubmitTime: "09:00", SubmitDay: 1}
	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)

	require.NoError(t, h.sched.RegisterAccount(context.Background(), "acct-1"))

	specs := h.registry.specs["acct-1"]
	// Two check-in triggers plus one per report cadence.
	assert.Len(t, specs, 5)
}

func TestRegisterAccountRemovesDisabled(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	h.registry.specs["acct-1"] = []trigger.Spec{{Name: "stale"}}

	acct := fullyConfiguredAccount()
	acct.Enabled = false
	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)

	require.NoError(t, h.sched.RegisterAccount(context.Background(), "acct-1"))
	assert.NotContains(t, h.registry.specs, "acct-1")
}

func TestRegisterAccountRetiresExpired(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	acct := fullyConfiguredAccount()
	start := time.Now().Add(-40 * 24 * time.Hour)
	acct.StartDate = &start
	acct.TotalDays = 30

	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)
	h.accounts.EXPECT().SetEnabled(gomock.Any(), "acct-1", false).Return(nil)

	require.NoError(t, h.sched.RegisterAccount(context.Background(), "acct-1"))
	assert.Contains(t, h.registry.removed, "acct-1")
}

func TestRebuildAllDropsStaleRegistrations(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	h.registry.specs["gone"] = []trigger.Spec{{Name: "stale"}}

	acct := fullyConfiguredAccount()
	h.accounts.EXPECT().List(gomock.Any(), true).Return([]*model.Account{acct}, nil)
	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)

	require.NoError(t, h.sched.RebuildAll(context.Background()))

	assert.NotContains(t, h.registry.specs, "gone")
	assert.Contains(t, h.registry.specs, "acct-1")
}

func TestRebuildAllReportsTotalFailure(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	acct := fullyConfiguredAccount()
	h.accounts.EXPECT().List(gomock.Any(), true).Return([]*model.Account{acct}, nil)
	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").
		Return(nil, errors.New("row vanished"))

	assert.Error(t, h.sched.RebuildAll(context.Background()))
}

func TestHandleFireStampsStartDate(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	acct := fullyConfiguredAccount()
	acct.StartDate = nil

	spec := trigger.Spec{
		Name:              "acct_acct-1_checkin_start",
		Kind:              trigger.KindCheckinStart,
		Task:              model.TaskCheckin,
		ForcedCheckinType: model.CheckinStart,
	}

	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)
	h.accounts.EXPECT().StampStartDate(gomock.Any(), "acct-1", gomock.Any()).Return(nil)
	h.accounts.EXPECT().TryAccountLock(gomock.Any(), "acct-1").Return(true, func() {}, nil)
	// The triggered run itself.
	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)
	h.accounts.EXPECT().RecordRun(gomock.Any(), "acct-1", gomock.Any()).Return(nil)

	h.sched.HandleFire(context.Background(), "acct-1", spec)

	// The checkin trigger ran only the checkin task.
	require.Len(t, h.remote.clockIns, 1)
	assert.Equal(t, model.CheckinStart, h.remote.clockIns[0].Type)
	assert.Empty(t, h.remote.reports)
}

func TestHandleFireSkipsBusyAccount(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	acct := fullyConfiguredAccount()
	start := time.Now().Add(-24 * time.Hour)
	acct.StartDate = &start

	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)
	h.accounts.EXPECT().TryAccountLock(gomock.Any(), "acct-1").Return(false, nil, nil)

	h.sched.HandleFire(context.Background(), "acct-1", trigger.Spec{
		Name: "acct_acct-1_checkin_start",
		Task: model.TaskCheckin,
	})

	// A concurrent batch run holds the account; the fire backs off.
	assert.Empty(t, h.remote.clockIns)
	assert.Empty(t, h.remote.reports)
}

func TestJitterLeavesReportFiresAlone(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	h.sched.cfg.Jitter = time.Hour

	checkin := trigger.Spec{Task: model.TaskCheckin}
	daily := trigger.Spec{Task: model.TaskDailyReport}

	// Report triggers fire at their configured moment by default, even when
	// check-in fires are spread over a wide window.
	assert.Zero(t, h.sched.jitter(daily))
	assert.Less(t, h.sched.jitter(checkin), time.Hour)

	h.sched.cfg.ReportJitter = time.Minute
	got := h.sched.jitter(daily)
	assert.GreaterOrEqual(t, got, time.Duration(0))
	assert.Less(t, got, time.Minute)
}

func TestHandleFireRetiresExpiredAccount(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	acct := fullyConfiguredAccount()
	start := time.Now().Add(-60 * 24 * time.Hour)
	acct.StartDate = &start
	acct.TotalDays = 30

	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)
	h.accounts.EXPECT().SetEnabled(gomock.Any(), "acct-1", false).Return(nil)

	h.sched.HandleFire(context.Background(), "acct-1", trigger.Spec{Task: model.TaskCheckin})

	assert.Contains(t, h.registry.removed, "acct-1")
	assert.Empty(t, h.remote.clockIns)
}

func TestHandleFireRemovesDisabledAccount(t *testing.T) {
	t.Parallel()

	h := newSchedulerHarness(t)
	acct := fullyConfiguredAccount()
	acct.Enabled = false
	h.registry.specs["acct-1"] = []trigger.Spec{{Name: "live"}}

	h.accounts.EXPECT().GetByID(gomock.Any(), "acct-1").Return(acct, nil)

	h.sched.HandleFire(context.Background(), "acct-1", trigger.Spec{Task: model.TaskCheckin})
	assert.NotContains(t, h.registry.specs, "acct-1")
}

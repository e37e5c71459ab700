// Package service holds the business logic: the per-account task
// orchestrator, the batch queue, the scheduler, and the reaper. Services
// depend on port interfaces only, never on concrete data or adapter types.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/observability/metrics"
	"github.com/punchd-io/punchd/internal/observability/statsd"
	"github.com/punchd-io/punchd/internal/remote"
	"github.com/punchd-io/punchd/internal/service/pushnotifier"
)

// sessionTTL bounds how long a cached platform token is reused before the
// next run logs in afresh.
const sessionTTL = 12 * time.Hour

// RemoteAPI is the slice of the platform client the orchestrator drives.
// Production passes *remote.Client; tests pass stubs.
type RemoteAPI interface {
	Login(ctx context.Context) error
	FetchPlan(ctx context.Context) error
	Session() *remote.SessionState
	GetCheckinInfo(ctx context.Context) (*remote.CheckinRecord, error)
	SubmitClockIn(ctx context.Context, req remote.ClockInRequest) error
	GetSubmittedReports(ctx context.Context, periodType string) (*remote.SubmittedReports, error)
	SubmitReport(ctx context.Context, sub remote.ReportSubmission) error
	GetWeeks(ctx context.Context) ([]remote.WeekPeriod, error)
	GetFormFields(ctx context.Context, formType int) ([]remote.FormField, error)
	GetJobInfo(ctx context.Context) (*remote.JobInfo, error)
	GetUploadToken(ctx context.Context) (string, error)
}

// RemoteFactory builds a fresh platform client for one account run.
type RemoteFactory func(creds remote.Credentials) RemoteAPI

// OrchestratorDeps groups the collaborator ports of the orchestrator.
type OrchestratorDeps struct {
	Accounts   core.AccountRepository
	Audit      core.AuditRepository
	TokenCache core.TokenCache
	Generator  core.ContentGenerator
	Uploader   core.ImageUploader
	Holidays   core.HolidayLookup
	Pusher     *pushnotifier.Service
	Sink       statsd.Sink
}

// OrchestratorOptions configures the orchestrator service.
type OrchestratorOptions struct {
	Deps   OrchestratorDeps
	Remote RemoteFactory
	Logger *slog.Logger
}

// Orchestrator runs the ordered task sequence for one account: check-in,
// then daily, weekly, and monthly report. Task outcomes are isolated; a
// failing task never stops the ones after it, and the run report is always
// pushed and persisted.
type Orchestrator struct {
	deps   OrchestratorDeps
	remote RemoteFactory
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Deps.Accounts == nil {
		panic("AccountRepository is required")
	}
	if opts.Remote == nil {
		panic("RemoteFactory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "orchestrator")
	}
	return &Orchestrator{
		deps:   opts.Deps,
		remote: opts.Remote,
		logger: logger,
		now:    time.Now,
	}
}

// RunOptions narrows one account run.
type RunOptions struct {
	// ForcedCheckinType overrides the hour-of-day punch type derivation.
	ForcedCheckinType model.CheckinType
	// TaskFilter restricts the run to one task type, or to every report task
	// with the value "report". Empty runs everything.
	TaskFilter string
	// Source tags metrics: "scheduler" or "batch".
	Source string
}

// taskSelected applies the run filter to one task.
func taskSelected(filter string, t model.TaskType) bool {
	switch filter {
	case "":
		return true
	case "report":
		return t.IsReport()
	default:
		return filter == string(t)
	}
}

// RunAccount executes the task sequence for one account and returns the run
// report. The report is persisted on the account row, appended to the audit
// log, and pushed to the account's notification targets before returning,
// whatever the task outcomes were.
func (o *Orchestrator) RunAccount(ctx context.Context, accountID string, opts RunOptions) (*model.RunReport, error) {
	acct, err := o.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	started := o.now()
	report := &model.RunReport{
		AccountID:   acct.ID,
		MaskedPhone: model.MaskedPhone(acct.Phone),
		StartedAt:   started,
	}
	logger := o.logger.With("account", report.MaskedPhone)

	client, err := o.openSession(ctx, acct)
	if err != nil {
		logger.Error("session setup failed", "error", err)
		report.Results = append(report.Results, model.TaskResult{
			Task:    model.TaskType("session"),
			Status:  model.TaskFail,
			Message: fmt.Sprintf("session setup failed: %v", err),
		})
	} else {
		for _, task := range model.AllTasks() {
			if !taskSelected(opts.TaskFilter, task) {
				continue
			}
			report.Results = append(report.Results, o.runTask(ctx, client, acct, task, opts))
		}
		o.persistSession(ctx, acct.ID, client)
	}

	report.FinishedAt = o.now()
	report.Status = model.SummarizeRun(report.Results)
	logger.Info("account run finished",
		"status", report.Status, "tasks", len(report.Results),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	o.finishRun(ctx, acct, report)
	return report, nil
}

// runTask executes one task with panic-free error isolation and emits its
// lifecycle metric.
func (o *Orchestrator) runTask(ctx context.Context, client RemoteAPI, acct *model.Account, task model.TaskType, opts RunOptions) model.TaskResult {
	taskStart := o.now()

	result := o.performTask(ctx, client, acct, task, opts)
	result.Task = task

	metricResult := metrics.ResultSuccess
	var metricErr error
	switch result.Status {
	case model.TaskFail:
		metricResult = metrics.ResultError
		metricErr = fmt.Errorf("%s", result.Message)
	case model.TaskSkip:
		metricResult = metrics.ResultSkip
	}
	metrics.EmitTaskLifecycle(o.deps.Sink, metrics.TaskMetric{
		TaskType: string(task),
		Source:   opts.Source,
		Result:   metricResult,
		Duration: o.now().Sub(taskStart),
		Err:      metricErr,
	})
	return result
}

// performTask dispatches to the task implementation. A panicking task is
// converted into a fail result so the remaining tasks of the run still
// execute.
func (o *Orchestrator) performTask(ctx context.Context, client RemoteAPI, acct *model.Account, task model.TaskType, opts RunOptions) (result model.TaskResult) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("task panicked", "task", task, "panic", rec)
			result = model.TaskResult{
				Status:  model.TaskFail,
				Message: fmt.Sprintf("task panicked: %v", rec),
			}
		}
	}()

	switch task {
	case model.TaskCheckin:
		return o.performCheckin(ctx, client, acct, opts.ForcedCheckinType)
	default:
		return o.performReport(ctx, client, acct, task)
	}
}

// openSession builds the platform client, seeds it from the token cache, and
// makes sure it is authenticated with an active plan.
func (o *Orchestrator) openSession(ctx context.Context, acct *model.Account) (RemoteAPI, error) {
	if acct.Phone == "" || acct.Password == "" {
		return nil, errors.New("account has no usable credentials")
	}
	client := o.remote(remote.Credentials{
		Phone:    acct.Phone,
		Password: acct.Password,
		Device:   acct.DeviceID,
		UserType: acct.UserType,
	})

	if o.deps.TokenCache != nil {
		if cached, err := o.deps.TokenCache.Get(ctx, acct.ID); err == nil && cached != "" {
			if err := json.Unmarshal([]byte(cached), client.Session()); err != nil {
				o.logger.Warn("discarding malformed cached session", "error", err)
				*client.Session() = remote.SessionState{}
			}
		}
	}

	if !client.Session().Authenticated() {
		if err := client.Login(ctx); err != nil {
			return nil, err
		}
	}

	if acct.UserType != model.UserTypeTeacher && client.Session().PlanID == "" {
		if err := client.FetchPlan(ctx); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// persistSession caches the authenticated state so the next run skips the
// login captcha.
func (o *Orchestrator) persistSession(ctx context.Context, accountID string, client RemoteAPI) {
	if o.deps.TokenCache == nil || !client.Session().Authenticated() {
		return
	}
	raw, err := json.Marshal(client.Session())
	if err != nil {
		return
	}
	if err := o.deps.TokenCache.Set(ctx, accountID, string(raw), sessionTTL); err != nil {
		o.logger.Warn("session cache write failed", "error", err)
	}
}

// finishRun records the outcome and pushes notifications. Best effort on
// every leg: a dead database row or push channel never fails the run.
func (o *Orchestrator) finishRun(ctx context.Context, acct *model.Account, report *model.RunReport) {
	if err := o.deps.Accounts.RecordRun(ctx, acct.ID, report); err != nil {
		o.logger.Error("record run failed", "account_id", acct.ID, "error", err)
	}

	if o.deps.Audit != nil {
		details, _ := json.Marshal(report.Results)
		entry := &model.AuditEntry{
			AccountID: acct.ID,
			Kind:      model.AuditRun,
			Message:   string(report.Status),
			Details:   details,
		}
		if err := o.deps.Audit.Append(ctx, entry); err != nil {
			o.logger.Error("audit append failed", "account_id", acct.ID, "error", err)
		}
	}

	if o.deps.Pusher != nil {
		o.deps.Pusher.PushAll(ctx, acct.Notifications, report)
	}
}

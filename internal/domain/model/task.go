package model

import "time"

// TaskType identifies one unit of account work run by the orchestrator.
type TaskType string

const (
	TaskCheckin       TaskType = "checkin"
	TaskDailyReport   TaskType = "daily_report"
	TaskWeeklyReport  TaskType = "weekly_report"
	TaskMonthlyReport TaskType = "monthly_report"
)

// AllTasks is the fixed execution order for a full account run.
func AllTasks() []TaskType {
	return []TaskType{TaskCheckin, TaskDailyReport, TaskWeeklyReport, TaskMonthlyReport}
}

// IsReport reports whether the task type is one of the report cadences.
func (t TaskType) IsReport() bool {
	return t == TaskDailyReport || t == TaskWeeklyReport || t == TaskMonthlyReport
}

// ReportPeriod maps a report task type to its cadence.
func (t TaskType) ReportPeriod() (ReportPeriod, bool) {
	switch t {
	case TaskDailyReport:
		return ReportDaily, true
	case TaskWeeklyReport:
		return ReportWeekly, true
	case TaskMonthlyReport:
		return ReportMonthly, true
	}
	return "", false
}

// TaskStatus is the outcome class of one task execution.
type TaskStatus string

const (
	// TaskSuccess means the task performed its remote action.
	TaskSuccess TaskStatus = "success"
	// TaskFail means the task attempted its action and hit an error.
	TaskFail TaskStatus = "fail"
	// TaskSkip means preconditions ruled the task out (disabled, wrong day,
	// already done); no remote mutation was attempted.
	TaskSkip TaskStatus = "skip"
)

// TaskResult records one task execution outcome within an account run.
type TaskResult struct {
	Task    TaskType   `json:"task"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message"`
	// Details carries optional machine-readable context (e.g. the punch type
	// used, the report week window).
	Details map[string]string `json:"details,omitempty"`
	// ReportContent is the submitted body for report tasks, kept so push
	// notifications can include it.
	ReportContent string `json:"report_content,omitempty"`
}

// RunStatus summarises the results of a whole account run.
type RunStatus string

const (
	RunAllSuccess  RunStatus = "success"
	RunPartialFail RunStatus = "partial_fail"
	RunAllFail     RunStatus = "fail"
	RunAllSkipped  RunStatus = "skipped"
)

// SummarizeRun derives the run status from individual task results.
// Skips are neutral: a run with only skips is "skipped", and skips never
// demote an otherwise successful run.
func SummarizeRun(results []TaskResult) RunStatus {
	var success, fail int
	for _, r := range results {
		switch r.Status {
		case TaskSuccess:
			success++
		case TaskFail:
			fail++
		}
	}
	switch {
	case fail == 0 && success == 0:
		return RunAllSkipped
	case fail == 0:
		return RunAllSuccess
	case success == 0:
		return RunAllFail
	default:
		return RunPartialFail
	}
}

// RunReport is the full outcome of one account run, shipped to push sinks and
// persisted on the account row.
type RunReport struct {
	AccountID   string       `json:"account_id"`
	MaskedPhone string       `json:"masked_phone"`
	Status      RunStatus    `json:"status"`
	Results     []TaskResult `json:"results"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/remote"
)

// reportSpec binds one report cadence to its wire values.
type reportSpec struct {
	periodType  string // wire value: day, week, month
	formType    int
	titleFormat string // platform-conventional default title, takes the sequence
}

var reportSpecs = map[model.ReportPeriod]reportSpec{
	model.ReportDaily:   {periodType: "day", formType: remote.FormTypeDaily, titleFormat: "第%d天日报"},
	model.ReportWeekly:  {periodType: "week", formType: remote.FormTypeWeekly, titleFormat: "第%d周周报"},
	model.ReportMonthly: {periodType: "month", formType: remote.FormTypeMonthly, titleFormat: "第%d月月报"},
}

// performReport runs one report cadence: dedupe against what the platform
// already has for the period, produce content, and submit.
func (o *Orchestrator) performReport(ctx context.Context, client RemoteAPI, acct *model.Account, task model.TaskType) model.TaskResult {
	period, ok := task.ReportPeriod()
	if !ok {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("unknown task type %s", task)}
	}
	spec := reportSpecs[period]

	settings, configured := acct.Reports[period]
	if !configured || !settings.Enabled {
		return model.TaskResult{Status: model.TaskSkip, Message: fmt.Sprintf("%s report disabled", period)}
	}

	if open, why := submitWindowOpen(period, settings, o.now()); !open {
		return model.TaskResult{Status: model.TaskSkip, Message: why}
	}

	submitted, err := client.GetSubmittedReports(ctx, spec.periodType)
	if err != nil {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("list submitted reports: %v", err)}
	}

	sequence := submitted.Count + 1
	if skip, why := o.alreadySubmitted(period, submitted, sequence); skip {
		return model.TaskResult{Status: model.TaskSkip, Message: why}
	}

	title := reportTitle(settings.TitlePrefix, spec.titleFormat, sequence)

	content, err := o.reportContent(ctx, client, settings, period, title)
	if err != nil {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("produce content: %v", err)}
	}

	formFields, err := client.GetFormFields(ctx, spec.formType)
	if err != nil {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("fetch form fields: %v", err)}
	}

	job, err := client.GetJobInfo(ctx)
	if err != nil {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("fetch job info: %v", err)}
	}

	now := o.now()
	sub := remote.ReportSubmission{
		Title:       title,
		Content:     content,
		Attachments: o.uploadImages(ctx, client, settings.ImageCount),
		PeriodType:  spec.periodType,
		JobID:       job.JobID,
		ReportTime:  now.Format(timestampLayout),
		FormFields:  formFields,
	}

	details := map[string]string{"title": title, "time": sub.ReportTime}
	switch period {
	case model.ReportWeekly:
		weeks, weekErr := client.GetWeeks(ctx)
		if weekErr != nil {
			return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("fetch week periods: %v", weekErr)}
		}
		if len(weeks) == 0 {
			return model.TaskResult{Status: model.TaskFail, Message: "no week periods on file"}
		}
		sub.StartTime = weeks[0].StartTime
		sub.EndTime = weeks[0].EndTime
		sub.Weeks = weekLabel(sequence)
		details["week_start"] = sub.StartTime
		details["week_end"] = sub.EndTime
	case model.ReportMonthly:
		sub.Yearmonth = now.Format("2006-01")
		details["yearmonth"] = sub.Yearmonth
	}

	if err := client.SubmitReport(ctx, sub); err != nil {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("submit report: %v", err)}
	}

	return model.TaskResult{
		Status:        model.TaskSuccess,
		Message:       fmt.Sprintf("%s submitted", title),
		Details:       details,
		ReportContent: content,
	}
}

// alreadySubmitted checks whether the current period's paper is on file.
func (o *Orchestrator) alreadySubmitted(period model.ReportPeriod, submitted *remote.SubmittedReports, sequence int) (bool, string) {
	if len(submitted.Reports) == 0 {
		return false, ""
	}
	last := submitted.Reports[0]
	now := o.now()

	switch period {
	case model.ReportDaily:
		if strings.HasPrefix(last.CreateTime, now.Format(datestampLayout)) {
			return true, "today's daily report already submitted"
		}
	case model.ReportWeekly:
		if last.Weeks == weekLabel(sequence) {
			return true, "this week's report already submitted"
		}
	case model.ReportMonthly:
		if last.Yearmonth == now.Format("2006-01") {
			return true, "this month's report already submitted"
		}
	}
	return false, ""
}

// reportContent picks a pre-written body when the account carries a pool,
// otherwise asks the content generator.
func (o *Orchestrator) reportContent(ctx context.Context, client RemoteAPI, settings model.ReportSettings, period model.ReportPeriod, title string) (string, error) {
	if body := pickRandom(settings.Descriptions); body != "" {
		return body, nil
	}
	if o.deps.Generator == nil {
		return "", fmt.Errorf("no content pool and no generator configured")
	}

	jobContext := ""
	if job, err := client.GetJobInfo(ctx); err == nil && job != nil {
		jobContext = strings.TrimSpace(job.Company + " " + job.JobName)
	}

	return o.deps.Generator.Generate(ctx, core.GenerateParams{
		Prompt:  settings.GeneratorPrompt,
		Period:  period,
		JobInfo: jobContext,
		Extra:   map[string]string{"title": title},
	})
}

// submitWindowOpen is the per-period submission predicate. A trigger fires at
// the configured moment anyway; this guards batch runs and misfire catch-ups
// from submitting on the wrong day or before the configured time.
func submitWindowOpen(period model.ReportPeriod, settings model.ReportSettings, now time.Time) (bool, string) {
	hour, minute := parseSubmitTime(settings.SubmitTime)

	switch period {
	case model.ReportWeekly:
		if now.Weekday() != settings.SubmitWeekday {
			return false, fmt.Sprintf("weekly report submits on %s", settings.SubmitWeekday)
		}
	case model.ReportMonthly:
		lastDay := lastDayOfMonth(now)
		target := settings.SubmitDay
		if target < 1 {
			target = defaultMonthlySubmitDay
		}
		if target > lastDay {
			target = lastDay
		}
		if now.Day() != target {
			return false, fmt.Sprintf("monthly report submits on day %d", target)
		}
	}

	if now.Hour() < hour || (now.Hour() == hour && now.Minute() < minute) {
		return false, fmt.Sprintf("%s report submits after %02d:%02d", period, hour, minute)
	}
	return true, ""
}

// defaultMonthlySubmitDay matches the platform's conventional month-report
// day when the account leaves it unset.
const defaultMonthlySubmitDay = 20

// parseSubmitTime reads an HH:MM value, falling back to noon the way the
// upstream treats a missing or broken submit time.
func parseSubmitTime(s string) (hour, minute int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 12, 0
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 12, 0
	}
	return h, m
}

func lastDayOfMonth(now time.Time) int {
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// reportTitle renders "第N天日报"-style titles: a configured prefix wins,
// the platform-conventional per-period format otherwise.
func reportTitle(prefix, titleFormat string, sequence int) string {
	if p := strings.TrimSpace(prefix); p != "" {
		return fmt.Sprintf("%s %d", p, sequence)
	}
	return fmt.Sprintf(titleFormat, sequence)
}

// weekLabel is the platform's fixed weekly sequence format.
func weekLabel(sequence int) string {
	return fmt.Sprintf("第%d周", sequence)
}

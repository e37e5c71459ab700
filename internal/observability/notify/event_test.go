package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/punchd-io/punchd/internal/domain/model"
)

func samplePayload() RunPayload {
	return RunPayload{
		AccountID:   "acct-1",
		MaskedPhone: "1*********1",
		Status:      model.RunPartialFail,
		Results: []model.TaskResult{
			{Task: model.TaskCheckin, Status: model.TaskSuccess, Message: "punched START"},
			{Task: model.TaskDailyReport, Status: model.TaskFail, Message: "server error 500"},
			{Task: model.TaskWeeklyReport, Status: model.TaskSkip},
		},
		FinishedAt: time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestPayloadTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Run partial_fail for 1*********1", samplePayload().Title())
	assert.Equal(t, "Run success", RunPayload{Status: model.RunAllSuccess}.Title())
}

func TestPayloadText(t *testing.T) {
	t.Parallel()

	text := samplePayload().Text()
	assert.Contains(t, text, "- checkin: success (punched START)")
	assert.Contains(t, text, "- daily_report: fail (server error 500)")
	assert.Contains(t, text, "- weekly_report: skip\n")
	assert.Contains(t, text, "finished at 2026-03-04T10:00:00Z")
}

func TestFromRunReport(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RunPayload{}, FromRunReport(nil))

	report := &model.RunReport{
		AccountID:   "acct-1",
		MaskedPhone: "1*********1",
		Status:      model.RunAllSuccess,
		Results:     []model.TaskResult{{Task: model.TaskCheckin, Status: model.TaskSuccess}},
	}
	payload := FromRunReport(report)
	assert.Equal(t, report.AccountID, payload.AccountID)
	assert.Equal(t, report.Status, payload.Status)
	assert.Len(t, payload.Results, 1)
}

package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/remote"
)

const (
	datestampLayout = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// performCheckin runs the attendance task: decide the punch type, honor the
// holiday and custom-day rules, skip when today's punch of that type already
// exists, then submit with optional images and a note.
func (o *Orchestrator) performCheckin(ctx context.Context, client RemoteAPI, acct *model.Account, forced model.CheckinType) model.TaskResult {
	if !acct.ClockIn.Enabled {
		return model.TaskResult{Status: model.TaskSkip, Message: "check-in disabled"}
	}
	if acct.ClockIn.Location.Address == "" {
		return model.TaskResult{Status: model.TaskFail, Message: "check-in has no configured address"}
	}

	now := o.now()
	punchType := forced
	if !punchType.Valid() {
		if now.Hour() < 12 {
			punchType = model.CheckinStart
		} else {
			punchType = model.CheckinEnd
		}
	}

	punchType, skipMsg := o.applyDayRules(ctx, acct, now, punchType)
	if skipMsg != "" {
		return model.TaskResult{Status: model.TaskSkip, Message: skipMsg}
	}

	last, err := client.GetCheckinInfo(ctx)
	if err != nil {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("fetch check-in state: %v", err)}
	}
	if alreadyPunched(last, punchType, now) {
		return model.TaskResult{
			Status:  model.TaskSkip,
			Message: fmt.Sprintf("already punched %s today", punchType),
			Details: map[string]string{"last_punch": last.CreateTime},
		}
	}

	attachments := o.uploadImages(ctx, client, acct.ClockIn.ImageCount)

	req := remote.ClockInRequest{
		Type:        punchType,
		Description: pickRandom(acct.ClockIn.Descriptions),
		Attachments: attachments,
		Location:    acct.ClockIn.Location,
	}
	if last != nil {
		req.LastDetailAddress = last.Address
	}

	if err := client.SubmitClockIn(ctx, req); err != nil {
		return model.TaskResult{Status: model.TaskFail, Message: fmt.Sprintf("submit check-in: %v", err)}
	}

	return model.TaskResult{
		Status:  model.TaskSuccess,
		Message: fmt.Sprintf("punched %s", punchType),
		Details: map[string]string{
			"type":    string(punchType),
			"time":    now.Format(timestampLayout),
			"address": acct.ClockIn.Location.Address,
		},
	}
}

// applyDayRules adjusts or vetoes the punch based on the configured clock-in
// mode. A non-empty skip message means no punch today.
func (o *Orchestrator) applyDayRules(ctx context.Context, acct *model.Account, now time.Time, punchType model.CheckinType) (model.CheckinType, string) {
	today := now.Format(datestampLayout)

	if slices.Contains(acct.ClockIn.SpecialDays, today) {
		return model.CheckinHoliday, ""
	}

	switch acct.ClockIn.Mode {
	case model.ClockModeHolidayAware:
		if o.deps.Holidays == nil {
			return punchType, ""
		}
		off, err := o.deps.Holidays.IsHoliday(ctx, now)
		if err != nil {
			o.logger.Warn("holiday lookup failed, punching normally", "error", err)
			return punchType, ""
		}
		if off {
			if !acct.ClockIn.SpecialClockIn {
				return punchType, "today is a rest day, check-in skipped"
			}
			return model.CheckinHoliday, ""
		}
	case model.ClockModeCustom:
		if !slices.Contains(acct.ClockIn.CustomDays, today) {
			if !acct.ClockIn.SpecialClockIn {
				return punchType, "today is not a configured check-in day"
			}
			return model.CheckinHoliday, ""
		}
	}
	return punchType, ""
}

// alreadyPunched reports whether the latest record is today's punch of the
// same type. The platform rejects duplicates with an opaque error, so the
// check keeps runs idempotent per cycle.
func alreadyPunched(last *remote.CheckinRecord, punchType model.CheckinType, now time.Time) bool {
	if last == nil || last.Type != string(punchType) || last.CreateTime == "" {
		return false
	}
	punchedAt, err := time.ParseInLocation(timestampLayout, last.CreateTime, now.Location())
	if err != nil {
		return false
	}
	return punchedAt.Format(datestampLayout) == now.Format(datestampLayout)
}

// uploadImages fetches an upload token and pushes the configured number of
// stock images, returning the comma-joined attachment keys. Upload trouble
// degrades to no attachments rather than failing the task.
func (o *Orchestrator) uploadImages(ctx context.Context, client RemoteAPI, count int) string {
	if count <= 0 || o.deps.Uploader == nil {
		return ""
	}

	token, err := client.GetUploadToken(ctx)
	if err != nil {
		o.logger.Warn("upload token fetch failed, continuing without images", "error", err)
		return ""
	}

	session := client.Session()
	keys, err := o.deps.Uploader.Upload(ctx, core.UploadParams{
		Token:  token,
		UserID: session.UserID,
		OrgID:  session.OrgID,
		Count:  count,
	})
	if err != nil {
		o.logger.Warn("image upload failed, continuing without images", "error", err)
		return ""
	}
	return keys
}

func pickRandom(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}

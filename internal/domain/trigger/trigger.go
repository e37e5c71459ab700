// Package trigger derives cron trigger specs from account configuration.
// Derivation is deterministic and pure so the full trigger set for an account
// can be rebuilt from the database at any time.
package trigger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/punchd-io/punchd/internal/domain/model"
)

// Kind identifies what a trigger fires.
type Kind string

const (
	KindCheckinStart  Kind = "checkin_start"
	KindCheckinEnd    Kind = "checkin_end"
	KindDailyReport   Kind = "daily_report"
	KindWeeklyReport  Kind = "weekly_report"
	KindMonthlyReport Kind = "monthly_report"
)

// Spec is one derived cron trigger for an account.
type Spec struct {
	// Name is unique per account and kind, e.g. "acct_<id>_checkin_start".
	Name string
	Kind Kind
	// Expr is a five-field cron expression (minute hour dom month dow).
	Expr string
	// Task is the orchestrator task this trigger requests.
	Task model.TaskType
	// ForcedCheckinType is set for check-in triggers (START or END); the
	// check-in task may still override it to HOLIDAY per calendar rules.
	ForcedCheckinType model.CheckinType
	// MisfireGrace is how late the trigger may run after its scheduled time.
	MisfireGrace time.Duration
}

// Defaults supplies fallback fire times for accounts with partial config.
type Defaults struct {
	CheckinStart string // HH:MM
	CheckinEnd   string // HH:MM
}

// graces per cadence: a late daily punch is pointless after an hour, a
// monthly report still makes sense a day late.
const (
	graceCheckin = time.Hour
	graceDaily   = time.Hour
	graceWeekly  = 12 * time.Hour
	graceMonthly = 24 * time.Hour
)

// Derive computes the complete trigger set for an account. Disabled tasks
// yield no spec. The result is ordered by kind for stable registration.
func Derive(acct *model.Account, defs Defaults) ([]Spec, error) {
	if acct == nil {
		return nil, fmt.Errorf("account is required")
	}

	var specs []Spec

	if acct.ClockIn.Enabled {
		checkins, err := deriveCheckins(acct, defs)
		if err != nil {
			return nil, err
		}
		specs = append(specs, checkins...)
	}

	reports, err := deriveReports(acct)
	if err != nil {
		return nil, err
	}
	specs = append(specs, reports...)

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

func deriveCheckins(acct *model.Account, defs Defaults) ([]Spec, error) {
	dow, err := weekdayExpr(acct.ClockIn.Weekdays)
	if err != nil {
		return nil, err
	}

	startHM := acct.ClockIn.StartTime
	if startHM == "" {
		startHM = defs.CheckinStart
	}
	endHM := acct.ClockIn.EndTime
	if endHM == "" {
		endHM = defs.CheckinEnd
	}

	startMin, startHour, err := parseHM(startHM)
	if err != nil {
		return nil, fmt.Errorf("check-in start time: %w", err)
	}
	endMin, endHour, err := parseHM(endHM)
	if err != nil {
		return nil, fmt.Errorf("check-in end time: %w", err)
	}

	return []Spec{
		{
			Name:              Name(acct.ID, KindCheckinStart),
			Kind:              KindCheckinStart,
			Expr:              fmt.Sprintf("%d %d * * %s", startMin, startHour, dow),
			Task:              model.TaskCheckin,
			ForcedCheckinType: model.CheckinStart,
			MisfireGrace:      graceCheckin,
		},
		{
			Name:              Name(acct.ID, KindCheckinEnd),
			Kind:              KindCheckinEnd,
			Expr:              fmt.Sprintf("%d %d * * %s", endMin, endHour, dow),
			Task:              model.TaskCheckin,
			ForcedCheckinType: model.CheckinEnd,
			MisfireGrace:      graceCheckin,
		},
	}, nil
}

func deriveReports(acct *model.Account) ([]Spec, error) {
	var specs []Spec
	for _, cadence := range []model.ReportPeriod{model.ReportDaily, model.ReportWeekly, model.ReportMonthly} {
		settings, ok := acct.Reports[cadence]
		if !ok || !settings.Enabled {
			continue
		}
		spec, err := deriveReport(acct.ID, cadence, settings)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func deriveReport(accountID string, cadence model.ReportPeriod, settings model.ReportSettings) (Spec, error) {
	min, hour, err := parseHM(settings.SubmitTime)
	if err != nil {
		return Spec{}, fmt.Errorf("%s report submit time: %w", cadence, err)
	}

	switch cadence {
	case model.ReportDaily:
		return Spec{
			Name:         Name(accountID, KindDailyReport),
			Kind:         KindDailyReport,
			Expr:         fmt.Sprintf("%d %d * * *", min, hour),
			Task:         model.TaskDailyReport,
			MisfireGrace: graceDaily,
		}, nil
	case model.ReportWeekly:
		wd := int(settings.SubmitWeekday)
		if wd < 0 || wd > 6 {
			return Spec{}, fmt.Errorf("weekly report weekday out of range: %d", wd)
		}
		return Spec{
			Name:         Name(accountID, KindWeeklyReport),
			Kind:         KindWeeklyReport,
			Expr:         fmt.Sprintf("%d %d * * %d", min, hour, wd),
			Task:         model.TaskWeeklyReport,
			MisfireGrace: graceWeekly,
		}, nil
	case model.ReportMonthly:
		return Spec{
			Name:         Name(accountID, KindMonthlyReport),
			Kind:         KindMonthlyReport,
			Expr:         fmt.Sprintf("%d %d %s * *", min, hour, monthDayExpr(settings.SubmitDay)),
			Task:         model.TaskMonthlyReport,
			MisfireGrace: graceMonthly,
		}, nil
	}
	return Spec{}, fmt.Errorf("unknown report cadence: %s", cadence)
}

// Name builds the registry key for one account trigger.
func Name(accountID string, kind Kind) string {
	return "acct_" + accountID + "_" + string(kind)
}

// weekdayExpr renders a weekday set as a cron dow field. An empty set means
// every day.
func weekdayExpr(days []time.Weekday) (string, error) {
	if len(days) == 0 {
		return "*", nil
	}
	seen := make(map[int]bool, len(days))
	vals := make([]int, 0, len(days))
	for _, d := range days {
		v := int(d)
		if v < 0 || v > 6 {
			return "", fmt.Errorf("weekday out of range: %d", v)
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		vals = append(vals, v)
	}
	sort.Ints(vals)
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ","), nil
}

// monthDayExpr renders a day-of-month field. Days of 28 or more become the
// 28-31 range so short months still fire on their last days; the scheduler's
// misfire coalescing collapses the extra occurrences.
func monthDayExpr(day int) string {
	switch {
	case day < 1:
		return "1"
	case day >= 28:
		return "28-31"
	default:
		return strconv.Itoa(day)
	}
}

// parseHM parses "HH:MM" into minute and hour components.
func parseHM(s string) (min, hour int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid HH:MM value %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return min, hour, nil
}

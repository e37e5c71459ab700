// Package model defines the core domain types for accounts, tasks, and batch runs.
package model

import (
	"errors"
	"strings"
	"time"
)

// UserType distinguishes the two platform roles. Teachers have no internship
// plan and skip the plan fetch during sign-in.
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeTeacher UserType = "teacher"
)

// Valid reports whether the user type is one of the known roles.
func (t UserType) Valid() bool {
	return t == UserTypeStudent || t == UserTypeTeacher
}

// CheckinType is the attendance punch kind sent to the platform.
type CheckinType string

const (
	CheckinStart   CheckinType = "START"
	CheckinEnd     CheckinType = "END"
	CheckinHoliday CheckinType = "HOLIDAY"
)

// Valid reports whether the check-in type is one the platform accepts.
func (t CheckinType) Valid() bool {
	switch t {
	case CheckinStart, CheckinEnd, CheckinHoliday:
		return true
	}
	return false
}

// ClockInMode controls how non-working days are treated.
type ClockInMode string

const (
	// ClockModeDaily punches every configured weekday regardless of holidays.
	ClockModeDaily ClockInMode = "daily"
	// ClockModeHolidayAware skips statutory holidays and weekends (or, with
	// SpecialClockIn, punches HOLIDAY on them), START/END otherwise.
	ClockModeHolidayAware ClockInMode = "holiday_aware"
	// ClockModeCustom punches only on the explicitly listed dates.
	ClockModeCustom ClockInMode = "custom"
)

// Location is the fixed position reported with each punch.
type Location struct {
	Address   string  `json:"address"`
	Country   string  `json:"country"`
	Province  string  `json:"province"`
	City      string  `json:"city"`
	Area      string  `json:"area"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ClockInSettings configures the attendance task for one account.
type ClockInSettings struct {
	Enabled bool        `json:"enabled"`
	Mode    ClockInMode `json:"mode"`
	// Weekdays is the set of firing weekdays, time.Weekday values 0-6.
	Weekdays []time.Weekday `json:"weekdays"`
	// StartTime and EndTime are HH:MM strings in the scheduler timezone.
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  Location `json:"location"`
	// SpecialClockIn converts days the mode would skip (holidays, days
	// outside the custom list) into HOLIDAY punches instead of skipping.
	SpecialClockIn bool `json:"special_clock_in"`
	// SpecialDays force a HOLIDAY punch on the listed dates (YYYY-MM-DD)
	// even when the mode would punch START/END.
	SpecialDays []string `json:"special_days,omitempty"`
	// CustomDays is the full firing-date list used by ClockModeCustom.
	CustomDays []string `json:"custom_days,omitempty"`
	// ImageCount is how many stock images to attach with each punch.
	ImageCount int `json:"image_count"`
	// Descriptions is an optional pool of punch notes; one is picked at
	// random per punch.
	Descriptions []string `json:"descriptions,omitempty"`
}

// ReportPeriod identifies one recurring report cadence.
type ReportPeriod string

const (
	ReportDaily   ReportPeriod = "daily"
	ReportWeekly  ReportPeriod = "weekly"
	ReportMonthly ReportPeriod = "monthly"
)

// ReportSettings configures one report cadence for an account.
type ReportSettings struct {
	Enabled bool `json:"enabled"`
	// SubmitTime is the HH:MM trigger time.
	SubmitTime string `json:"submit_time"`
	// SubmitWeekday applies to weekly reports (time.Weekday 0-6).
	SubmitWeekday time.Weekday `json:"submit_weekday,omitempty"`
	// SubmitDay applies to monthly reports (day of month, 1-31; values past
	// the end of a month coalesce onto the last days).
	SubmitDay int `json:"submit_day,omitempty"`
	// TitlePrefix seeds the generated title; the server-side sequence number
	// is appended.
	TitlePrefix string `json:"title_prefix"`
	// GeneratorPrompt steers the content generation endpoint.
	GeneratorPrompt string `json:"generator_prompt,omitempty"`
	// ImageCount is how many stock images to attach (0 disables upload).
	ImageCount int `json:"image_count"`
	// Descriptions is an optional pool of pre-written bodies used instead of
	// generated content; one is picked at random per submission.
	Descriptions []string `json:"descriptions,omitempty"`
}

// NotificationTarget is one push destination owned by an account.
type NotificationTarget struct {
	// Kind is "webhook" or "telegram".
	Kind string `json:"kind"`
	// URL is the webhook endpoint (webhook kind).
	URL string `json:"url,omitempty"`
	// ChatID overrides the default Telegram chat (telegram kind).
	ChatID string `json:"chat_id,omitempty"`
}

// Account is one managed platform identity with its full task configuration.
type Account struct {
	ID       string   `json:"id"`
	Phone    string   `json:"phone"`
	Password string   `json:"-"` // decrypted at load, never serialized
	UserType UserType `json:"user_type"`
	DeviceID string   `json:"device_id"`
	Enabled  bool     `json:"enabled"`

	ClockIn       ClockInSettings              `json:"clock_in"`
	Reports       map[ReportPeriod]ReportSettings `json:"reports"`
	Notifications []NotificationTarget         `json:"notifications"`

	// TotalDays bounds the automation window; 0 means unbounded.
	TotalDays int `json:"total_days"`
	// StartDate is stamped on the first scheduled run and anchors the
	// TotalDays expiry check.
	StartDate *time.Time `json:"start_date,omitempty"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the invariants an account must satisfy before any task runs.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Phone) == "" {
		return errors.New("phone is required")
	}
	if a.Password == "" {
		return errors.New("password is required")
	}
	if !a.UserType.Valid() {
		return errors.New("invalid user type")
	}
	if a.ClockIn.Enabled && a.UserType == UserTypeStudent && strings.TrimSpace(a.ClockIn.Location.Address) == "" {
		return errors.New("clock-in requires an address")
	}
	return nil
}

// Expired reports whether the TotalDays automation window has lapsed at now.
func (a *Account) Expired(now time.Time) bool {
	if a.TotalDays <= 0 || a.StartDate == nil {
		return false
	}
	return now.Sub(*a.StartDate) >= time.Duration(a.TotalDays)*24*time.Hour
}

// MaskedPhone returns the phone number with the middle digits starred,
// suitable for logs and notifications.
func MaskedPhone(phone string) string {
	runes := []rune(phone)
	if len(runes) < 3 {
		return phone
	}
	masked := make([]rune, len(runes))
	masked[0] = runes[0]
	for i := 1; i < len(runes)-1; i++ {
		masked[i] = '*'
	}
	masked[len(runes)-1] = runes[len(runes)-1]
	return string(masked)
}

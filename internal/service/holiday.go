package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/core"
)

// HolidayOptions configures the holiday lookup service.
type HolidayOptions struct {
	Config     config.RemoteConfig
	Logger     *slog.Logger
	HTTPClient *http.Client

	// Cache persists fetched year calendars across restarts. Optional.
	Cache core.HolidayCache
}

// HolidayCalendar answers holiday questions from the published year calendar
// (statutory holidays plus swapped working days). Dates absent from the
// calendar fall back to plain weekday/weekend logic.
type HolidayCalendar struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	cache      core.HolidayCache

	mu    sync.Mutex
	years map[int]map[string]bool // date -> isOffDay
}

var _ core.HolidayLookup = (*HolidayCalendar)(nil)

// NewHolidayCalendar constructs the holiday lookup service. An empty calendar
// URL is allowed; lookups then use weekday/weekend logic only.
func NewHolidayCalendar(opts HolidayOptions) *HolidayCalendar {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Config.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "holiday")
	}
	return &HolidayCalendar{
		url:        opts.Config.HolidayURL,
		httpClient: httpClient,
		logger:     logger,
		cache:      opts.Cache,
		years:      make(map[int]map[string]bool),
	}
}

// IsHoliday reports whether date is an off day. Swapped working weekends
// count as working days; weekends absent from the calendar count as off.
func (h *HolidayCalendar) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	days, err := h.yearDays(ctx, date.Year())
	if err != nil {
		return false, err
	}
	if off, ok := days[date.Format("2006-01-02")]; ok {
		return off, nil
	}
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday, nil
}

func (h *HolidayCalendar) yearDays(ctx context.Context, year int) (map[string]bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if days, ok := h.years[year]; ok {
		return days, nil
	}
	if h.url == "" {
		days := map[string]bool{}
		h.years[year] = days
		return days, nil
	}

	if h.cache != nil {
		cached, err := h.cache.GetYear(ctx, year)
		if err != nil {
			h.logger.WarnContext(ctx, "holiday cache read failed", "year", year, "error", err)
		} else if cached != "" {
			days, err := parseCalendar([]byte(cached))
			if err == nil {
				h.years[year] = days
				return days, nil
			}
			h.logger.WarnContext(ctx, "discarding malformed cached calendar", "year", year, "error", err)
		}
	}

	raw, err := h.fetchYear(ctx, year)
	if err != nil {
		return nil, err
	}
	days, err := parseCalendar(raw)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.SetYear(ctx, year, string(raw)); err != nil {
			h.logger.WarnContext(ctx, "holiday cache write failed", "year", year, "error", err)
		}
	}
	h.logger.InfoContext(ctx, "holiday calendar loaded", "year", year, "days", len(days))
	h.years[year] = days
	return days, nil
}

func (h *HolidayCalendar) fetchYear(ctx context.Context, year int) ([]byte, error) {
	url := strings.ReplaceAll(h.url, "{year}", fmt.Sprintf("%d", year))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	rsp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching holiday calendar: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, rsp.Body)
		_ = rsp.Body.Close()
	}()

	if rsp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday calendar returned status %d", rsp.StatusCode)
	}
	raw, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading holiday calendar: %w", err)
	}
	return raw, nil
}

func parseCalendar(raw []byte) (map[string]bool, error) {
	var calendar struct {
		Days []struct {
			Date     string `json:"date"`
			IsOffDay bool   `json:"isOffDay"`
		} `json:"days"`
	}
	if err := json.Unmarshal(raw, &calendar); err != nil {
		return nil, fmt.Errorf("decoding holiday calendar: %w", err)
	}
	days := make(map[string]bool, len(calendar.Days))
	for _, d := range calendar.Days {
		days[d.Date] = d.IsOffDay
	}
	return days, nil
}

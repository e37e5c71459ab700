package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeScheduler runs the per-account cron trigger engine.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeBatchRunner runs the batch queue poller and worker pool.
	ServiceModeBatchRunner ServiceMode = "batch-runner"
	// ServiceModeReaper runs the reaper for lease recovery and retention cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeScheduler,
		ServiceModeBatchRunner,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeScheduler, ServiceModeBatchRunner, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: scheduler, batch-runner, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SchedulerConfig contains cron scheduler service configuration.
type SchedulerConfig struct {
	// Location is the IANA timezone name cron expressions are evaluated in.
	Location string `env:"SCHEDULER_LOCATION" envDefault:"Asia/Shanghai"`

	// Jitter is the maximum random delay applied before a fired check-in
	// trigger runs. Spreads account punches so the upstream platform does
	// not see a burst at the same second every day.
	Jitter time.Duration `env:"SCHEDULER_JITTER" envDefault:"10m"`

	// ReportJitter is the maximum random delay before a fired report trigger
	// runs. Reports fire at their configured moment by default.
	ReportJitter time.Duration `env:"SCHEDULER_REPORT_JITTER" envDefault:"0"`

	// MisfireGrace is how far past its scheduled time a trigger may still run.
	// A trigger that fires later than this (process was down, clock jumped) is
	// coalesced into a single skipped occurrence.
	MisfireGrace time.Duration `env:"SCHEDULER_MISFIRE_GRACE" envDefault:"1h"`

	// DefaultCheckinStart is the fallback morning check-in time (HH:MM).
	DefaultCheckinStart string `env:"SCHEDULER_DEFAULT_CHECKIN_START" envDefault:"07:30"`

	// DefaultCheckinEnd is the fallback evening check-out time (HH:MM).
	DefaultCheckinEnd string `env:"SCHEDULER_DEFAULT_CHECKIN_END" envDefault:"18:00"`

	// RebuildInterval is how often the trigger registry is reconciled against
	// the account table, picking up accounts added or changed out-of-band.
	RebuildInterval time.Duration `env:"SCHEDULER_REBUILD_INTERVAL" envDefault:"5m"`
}

const maxSchedulerJitter = time.Hour

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.Location == "" {
		s.Location = "Asia/Shanghai"
	}
	if s.Jitter < 0 {
		s.Jitter = 0
	}
	if s.Jitter > maxSchedulerJitter {
		s.Jitter = maxSchedulerJitter
	}
	if s.ReportJitter < 0 {
		s.ReportJitter = 0
	}
	if s.ReportJitter > maxSchedulerJitter {
		s.ReportJitter = maxSchedulerJitter
	}
	if s.MisfireGrace < time.Minute {
		s.MisfireGrace = time.Minute
	}
	if s.DefaultCheckinStart == "" {
		s.DefaultCheckinStart = "07:30"
	}
	if s.DefaultCheckinEnd == "" {
		s.DefaultCheckinEnd = "18:00"
	}
	if s.RebuildInterval < time.Minute {
		s.RebuildInterval = time.Minute
	}
}

// BatchConfig contains batch runner service configuration.
type BatchConfig struct {
	// PollInterval is the queue poller tick interval.
	PollInterval time.Duration `env:"BATCH_POLL_INTERVAL" envDefault:"800ms"`

	// MaxWorkers is the process-wide ceiling on concurrently executing items.
	// Per-job concurrency is clamped to this value on enqueue.
	MaxWorkers int `env:"BATCH_MAX_WORKERS" envDefault:"10"`

	// MaxAttempts is the number of executions an item gets before it is
	// finalized as failed.
	MaxAttempts int `env:"BATCH_MAX_ATTEMPTS" envDefault:"3"`

	// BackoffBase is the base delay for exponential re-queue backoff.
	BackoffBase time.Duration `env:"BATCH_BACKOFF_BASE" envDefault:"3s"`

	// BackoffCap is the upper bound on re-queue backoff delay.
	BackoffCap time.Duration `env:"BATCH_BACKOFF_CAP" envDefault:"60s"`

	// ClaimLease is how long a claimed item may stay running before the
	// reaper treats the claim as abandoned.
	ClaimLease time.Duration `env:"BATCH_CLAIM_LEASE" envDefault:"15m"`
}

const maxBatchWorkers = 50

// Sanitize applies guardrails to batch runner configuration values.
func (b *BatchConfig) Sanitize() {
	if b.PollInterval < 100*time.Millisecond {
		b.PollInterval = 100 * time.Millisecond
	}
	if b.MaxWorkers < 1 {
		b.MaxWorkers = 1
	}
	if b.MaxWorkers > maxBatchWorkers {
		b.MaxWorkers = maxBatchWorkers
	}
	if b.MaxAttempts < 1 {
		b.MaxAttempts = 1
	}
	if b.BackoffBase <= 0 {
		b.BackoffBase = 3 * time.Second
	}
	if b.BackoffCap < b.BackoffBase {
		b.BackoffCap = b.BackoffBase
	}
	if b.ClaimLease < time.Minute {
		b.ClaimLease = time.Minute
	}
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"10m"`

	// BatchRetention is how long terminal batch jobs and their items are kept.
	BatchRetention time.Duration `env:"REAPER_BATCH_RETENTION" envDefault:"720h"` // 30 days

	// AuditRetention is how long audit log rows are kept.
	AuditRetention time.Duration `env:"REAPER_AUDIT_RETENTION" envDefault:"2160h"` // 90 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.BatchRetention < time.Hour {
		r.BatchRetention = time.Hour
	}
	if r.AuditRetention < 24*time.Hour {
		r.AuditRetention = 24 * time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}

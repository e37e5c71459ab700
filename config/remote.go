package config

import (
	"strings"
	"time"
)

// RemoteConfig contains configuration for the upstream attendance platform
// client and its collaborator endpoints.
type RemoteConfig struct {
	// BaseURL is the platform API root.
	BaseURL string `env:"REMOTE_BASE_URL" envDefault:"https://api.moguding.net:9000/"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"15s"`

	// MaxAttempts bounds the retry loop for a single logical call.
	MaxAttempts int `env:"REMOTE_MAX_ATTEMPTS" envDefault:"5"`

	// BackoffBase is the base delay for retry backoff (doubles per attempt).
	BackoffBase time.Duration `env:"REMOTE_BACKOFF_BASE" envDefault:"1s"`

	// SolverURL is the captcha solver endpoint. Empty disables captcha
	// solving; logins that hit a captcha challenge then fail.
	SolverURL string `env:"REMOTE_SOLVER_URL"`

	// GeneratorURL is the report content generation endpoint.
	GeneratorURL string `env:"REMOTE_GENERATOR_URL"`

	// GeneratorToken authenticates against the generation endpoint.
	GeneratorToken string `env:"REMOTE_GENERATOR_TOKEN"`

	// UploadHost is the object storage upload endpoint for report images.
	UploadHost string `env:"REMOTE_UPLOAD_HOST" envDefault:"https://up.qiniup.com/"`

	// HolidayURL is the year-calendar JSON endpoint used by holiday-aware
	// check-in modes. The {year} placeholder is substituted per lookup.
	HolidayURL string `env:"REMOTE_HOLIDAY_URL" envDefault:"https://raw.githubusercontent.com/NateScarlet/holiday-cn/master/{year}.json"`
}

// Sanitize normalises remote client configuration values.
func (c *RemoteConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL != "" && !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	c.SolverURL = strings.TrimSpace(c.SolverURL)
	c.GeneratorURL = strings.TrimSpace(c.GeneratorURL)
	c.UploadHost = strings.TrimSpace(c.UploadHost)
	c.HolidayURL = strings.TrimSpace(c.HolidayURL)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemoteConfigSanitize(t *testing.T) {
	t.Parallel()

	cfg := RemoteConfig{
		BaseURL:     "  https://api.example.test ",
		Timeout:     0,
		MaxAttempts: 0,
		BackoffBase: 0,
		SolverURL:   " http://solver.local ",
	}
	cfg.Sanitize()

	// A missing trailing slash would break endpoint concatenation.
	assert.Equal(t, "https://api.example.test/", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, "http://solver.local", cfg.SolverURL)
}

func TestObservabilityNotificationsSanitize(t *testing.T) {
	t.Parallel()

	// Master switch off forces both channels off.
	cfg := ObservabilityNotificationsConfig{
		Webhook:  WebhookNotificationConfig{Enabled: true, URL: "http://hook"},
		Telegram: TelegramNotificationConfig{Enabled: true, BotToken: "t", ChatID: "c"},
	}
	cfg.Sanitize()
	assert.False(t, cfg.Webhook.Enabled)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "punchd", cfg.Webhook.Source)

	// Enabled channels missing required fields are disabled.
	cfg = ObservabilityNotificationsConfig{
		Enabled:  true,
		Webhook:  WebhookNotificationConfig{Enabled: true},
		Telegram: TelegramNotificationConfig{Enabled: true, BotToken: "t"},
	}
	cfg.Sanitize()
	assert.False(t, cfg.Webhook.Enabled)
	assert.False(t, cfg.Telegram.Enabled)

	// Fully configured channels survive.
	cfg = ObservabilityNotificationsConfig{
		Enabled:  true,
		Webhook:  WebhookNotificationConfig{Enabled: true, URL: "http://hook"},
		Telegram: TelegramNotificationConfig{Enabled: true, BotToken: "t", ChatID: "c"},
	}
	cfg.Sanitize()
	assert.True(t, cfg.Webhook.Enabled)
	assert.True(t, cfg.Telegram.Enabled)
}

func TestObservabilityMetricsSanitize(t *testing.T) {
	t.Parallel()

	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "  "}
	cfg.Sanitize()
	assert.False(t, cfg.IsEnabled())

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "127.0.0.1:8125"}
	cfg.Sanitize()
	assert.True(t, cfg.IsEnabled())
}

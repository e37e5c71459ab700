// Package pushnotifier fans account run reports out to notification channels:
// the per-account targets stored with the account, plus the operator-level
// default channels from configuration.
package pushnotifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/observability/notify"
	"github.com/punchd-io/punchd/internal/observability/notify/telegram"
	"github.com/punchd-io/punchd/internal/observability/notify/webhook"
)

// Target kinds understood by the dispatcher.
const (
	KindWebhook  = "webhook"
	KindTelegram = "telegram"
)

// Options configures the push notifier service.
type Options struct {
	Config config.ObservabilityNotificationsConfig
	Logger *slog.Logger
	// HTTPClient is shared by all per-target webhook deliveries.
	HTTPClient *http.Client
}

// Service delivers run reports. Delivery failures are logged, never
// propagated: a failed push must not taint the run result.
type Service struct {
	cfg        config.ObservabilityNotificationsConfig
	logger     *slog.Logger
	httpClient *http.Client

	telegramDefault *telegram.Client
	webhookDefault  *webhook.Client
}

// NewService constructs the push notifier and its configured default sinks.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "push_notifier")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Config.Timeout}
	}

	s := &Service{cfg: opts.Config, logger: logger, httpClient: httpClient}

	if opts.Config.Webhook.Enabled {
		client, err := webhook.NewClient(webhook.Config{
			URL:        opts.Config.Webhook.URL,
			Source:     opts.Config.Webhook.Source,
			Timeout:    opts.Config.Timeout,
			RetryLimit: opts.Config.RetryLimit,
			Client:     httpClient,
		})
		if err != nil {
			logger.Warn("default webhook sink disabled", "error", err)
		} else {
			s.webhookDefault = client
		}
	}
	if opts.Config.Telegram.Enabled {
		client, err := telegram.NewClient(telegram.Config{
			BotToken:   opts.Config.Telegram.BotToken,
			ChatID:     opts.Config.Telegram.ChatID,
			Timeout:    opts.Config.Timeout,
			RetryLimit: opts.Config.RetryLimit,
			Client:     httpClient,
		})
		if err != nil {
			logger.Warn("default telegram sink disabled", "error", err)
		} else {
			s.telegramDefault = client
		}
	}

	return s
}

// Push delivers a run report to one account-level target.
func (s *Service) Push(ctx context.Context, target model.NotificationTarget, report *model.RunReport) error {
	payload := notify.FromRunReport(report)

	switch target.Kind {
	case KindWebhook:
		client, err := webhook.NewClient(webhook.Config{
			URL:        target.URL,
			Source:     s.cfg.Webhook.Source,
			Timeout:    s.cfg.Timeout,
			RetryLimit: s.cfg.RetryLimit,
			Client:     s.httpClient,
		})
		if err != nil {
			return fmt.Errorf("build webhook sink: %w", err)
		}
		return client.SendRunReport(ctx, payload)
	case KindTelegram:
		if s.telegramDefault == nil {
			return fmt.Errorf("telegram target configured but no bot token available")
		}
		chatID := target.ChatID
		if chatID == "" {
			chatID = s.cfg.Telegram.ChatID
		}
		return s.telegramDefault.SendTo(ctx, chatID, payload)
	default:
		return fmt.Errorf("unknown notification target kind %q", target.Kind)
	}
}

// PushAll fans the report out to every account target and the default sinks
// concurrently, waiting for all deliveries.
func (s *Service) PushAll(ctx context.Context, targets []model.NotificationTarget, report *model.RunReport) {
	payload := notify.FromRunReport(report)

	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Push(ctx, target, report); err != nil {
				s.logger.Error("push delivery failed",
					"kind", target.Kind, "account_id", report.AccountID, "error", err)
			}
		}()
	}

	deliver := func(name string, sink notify.Sink) {
		defer wg.Done()
		if err := sink.SendRunReport(ctx, payload); err != nil {
			s.logger.Error("push delivery failed",
				"kind", name, "account_id", report.AccountID, "error", err)
		}
	}
	if s.webhookDefault != nil {
		wg.Add(1)
		go deliver("default_webhook", s.webhookDefault)
	}
	if s.telegramDefault != nil {
		wg.Add(1)
		go deliver("default_telegram", s.telegramDefault)
	}

	wg.Wait()
}

// Enabled reports whether any default sink is active. Per-account targets
// work regardless.
func (s *Service) Enabled() bool {
	return s.webhookDefault != nil || s.telegramDefault != nil
}

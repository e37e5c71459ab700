// Package telegram delivers run notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/punchd-io/punchd/internal/observability/notify"
)

const apiBase = "https://api.telegram.org"

// Config captures Telegram delivery behaviour.
type Config struct {
	BotToken   string
	ChatID     string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// APIBase overrides the Bot API host, for tests and proxies.
	APIBase string
}

// Client posts run notifications via a bot's sendMessage endpoint.
type Client struct {
	sendURL    string
	chatID     string
	retryLimit int
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Telegram client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	chatID := strings.TrimSpace(cfg.ChatID)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	base := strings.TrimSuffix(strings.TrimSpace(cfg.APIBase), "/")
	if base == "" {
		base = apiBase
	}

	return &Client{
		sendURL:    fmt.Sprintf("%s/bot%s/sendMessage", base, token),
		chatID:     chatID,
		retryLimit: retries,
		client:     hc,
	}, nil
}

// SendRunReport posts the rendered report, retrying with linear backoff. The
// payload may carry a per-account chat id overriding the configured default.
func (c *Client) SendRunReport(ctx context.Context, payload notify.RunPayload) error {
	return c.SendTo(ctx, c.chatID, payload)
}

// SendTo delivers the payload to a specific chat.
func (c *Client) SendTo(ctx context.Context, chatID string, payload notify.RunPayload) error {
	if strings.TrimSpace(chatID) == "" {
		return errors.New("telegram chat id is required")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    payload.Text(),
	})
	if err != nil {
		return fmt.Errorf("encode telegram payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err := c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram api %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

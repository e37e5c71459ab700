// Package solver adapts an external captcha recognition endpoint to the
// core solver port.
package solver

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

	"github.com/punchd-io/punchd/internal/core"
)

const defaultTimeout = 20 * time.Second

// Config holds solver endpoint settings.
type Config struct {
	// URL is the solver service root.
	URL string
	// Timeout bounds one recognition request. Defaults to 20s; recognition
	// is slow compared to ordinary API calls.
	Timeout time.Duration
	// Client optionally overrides the HTTP client.
	Client *http.Client
}

// Client calls a recognition service over HTTP. The service receives the
// captcha images and returns the point JSON the platform's check endpoint
// expects verbatim.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ core.CaptchaSolver = (*Client)(nil)

// NewClient creates a solver client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("solver URL is required")
	}
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		httpClient: httpClient,
	}, nil
}

// SolveSlider returns the {"x":...,"y":5} point for a jigsaw slider.
func (c *Client) SolveSlider(ctx context.Context, jigsawB64, backgroundB64 string) (string, error) {
	return c.solve(ctx, "/slider", map[string]any{
		"jigsaw":     jigsawB64,
		"background": backgroundB64,
	})
}

// SolveClickWords returns the point-list JSON for a click-word challenge.
func (c *Client) SolveClickWords(ctx context.Context, imageB64 string, words []string) (string, error) {
	return c.solve(ctx, "/click-words", map[string]any{
		"image": imageB64,
		"words": words,
	})
}

func (c *Client) solve(ctx context.Context, path string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling solver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling solver: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, rsp.Body)
		_ = rsp.Body.Close()
	}()

	if rsp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(rsp.Body, 2048))
		return "", fmt.Errorf("solver returned status %d: %s", rsp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Point string `json:"point"`
	}
	if err := json.NewDecoder(rsp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding solver response: %w", err)
	}
	if result.Point == "" {
		return "", errors.New("solver returned no point")
	}
	return result.Point, nil
}

// Package generator adapts an external text generation endpoint to the core
// content generator port.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/punchd-io/punchd/internal/core"
)

const defaultTimeout = 60 * time.Second

// Config holds generator endpoint settings.
type Config struct {
	// URL is the generation endpoint.
	URL string
	// Token is sent as a bearer credential when set.
	Token string
	// Timeout bounds one generation request. Defaults to 60s; text
	// generation is the slowest call punchd makes.
	Timeout time.Duration
	// Client optionally overrides the HTTP client.
	Client *http.Client
}

// Client produces report body text through an external generation service.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

var _ core.ContentGenerator = (*Client)(nil)

// NewClient creates a generator client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("generator URL is required")
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
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

// Generate returns generated report text for the given parameters.
func (c *Client) Generate(ctx context.Context, params core.GenerateParams) (string, error) {
	body, err := json.Marshal(map[string]any{
		"prompt":   params.Prompt,
		"period":   string(params.Period),
		"job_info": params.JobInfo,
		"extra":    params.Extra,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling generator: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, rsp.Body)
		_ = rsp.Body.Close()
	}()

	if rsp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(rsp.Body, 2048))
		return "", fmt.Errorf("generator returned status %d: %s", rsp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(rsp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding generator response: %w", err)
	}
	content := stripMarkdown(result.Content)
	if content == "" {
		return "", errors.New("generator returned empty content")
	}
	return content, nil
}

var markdownRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?s)<!--.*?-->`), ""},
	{regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n(.*?)\n```"), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`!\[(.*?)\]\(.*?\)`), "$1"},
	{regexp.MustCompile(`\[(.*?)\]\(.*?\)`), "$1"},
	{regexp.MustCompile(`~~(.*?)~~`), "$1"},
	{regexp.MustCompile(`\*\*\*(.*?)\*\*\*`), "$1"},
	{regexp.MustCompile(`\*\*(.*?)\*\*`), "$1"},
	{regexp.MustCompile(`\*(.*?)\*`), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+(.*)$`), "$1"},
	{regexp.MustCompile(`(?m)^(\s*)[-*+]\s+\[.\]\s+`), "$1"},
	{regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`), "$1"},
	{regexp.MustCompile(`(?m)^(\s*)\d+\.\s+`), "$1"},
	{regexp.MustCompile(`(?m)^>\s+`), ""},
	{regexp.MustCompile(`</?[^>]+>`), ""},
	{regexp.MustCompile(`\n\s*\n`), "\n\n"},
}

// stripMarkdown drops formatting markers from generated text. The report
// fields on the platform render plain text, so markup would show verbatim.
func stripMarkdown(text string) string {
	for _, rule := range markdownRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return strings.TrimSpace(text)
}

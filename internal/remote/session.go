// Package remote implements the client protocol for the upstream attendance
// platform: signed calls with retry and token renewal, the two captcha
// handshakes, and thin wrappers over the domain endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/domain/model"
)

const (
	userAgent   = "Dart/2.17 (dart:io)"
	contentType = "application/json; charset=utf-8"
	appVersion  = "5.16.0"
)

// SessionState is one account's authentication state for one run. It is
// populated lazily by Login and FetchPlan and owned exclusively by one Client.
type SessionState struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	RoleKey  string `json:"roleKey"`
	UserType string `json:"userType"`
	Nickname string `json:"nikeName"`
	OrgID    string `json:"orgId"`

	PlanID   string `json:"planId"`
	PlanName string `json:"planName"`

	DayPaperQuota   int `json:"dayPaperNum"`
	WeekPaperQuota  int `json:"weekPaperNum"`
	MonthPaperQuota int `json:"monthPaperNum"`
}

// Authenticated reports whether the state carries a usable token.
func (s *SessionState) Authenticated() bool {
	return s.Token != ""
}

// Credentials identify one account against the platform.
type Credentials struct {
	Phone    string
	Password string
	Device   string
	UserType model.UserType
}

// ClientOptions groups optional collaborators for NewClient.
type ClientOptions struct {
	HTTPClient *http.Client
	Solver     core.CaptchaSolver
	Logger     *slog.Logger
}

// Client issues signed calls for one account. Not safe for concurrent use;
// every account run builds its own Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	solver     core.CaptchaSolver
	logger     *slog.Logger

	maxAttempts int
	backoffBase time.Duration

	// State is exported so callers can seed it from a token cache and read
	// it back for persistence after a successful run.
	State SessionState

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client for one account run.
func NewClient(cfg config.RemoteConfig, creds Credentials, opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     cfg.BaseURL,
		creds:       creds,
		solver:      opts.Solver,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		now:         time.Now,
		sleep:       sleepWithContext,
	}
}

// Session exposes the mutable session state for seeding from a token cache
// and persisting after a run.
func (c *Client) Session() *SessionState {
	return &c.State
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// apiResponse is the platform's envelope. Data is kept raw; each wrapper
// decodes the shape it expects.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
	Flag int             `json:"flag"`
}

// callParams bundles one signed call. SignFields, when set, produce the sign
// header; the field order is per-endpoint contract.
type callParams struct {
	endpoint   string
	payload    map[string]any
	signFields []string
	authed     bool
	// skipRelogin guards the login path itself against recursing.
	skipRelogin bool
}

// call runs the retry state machine: bounded attempts with doubling backoff
// on transport failures, transparent re-login on token expiry within the same
// attempt budget, and immediate surfacing of business rejections and the
// behavioral-verification signal.
func (c *Client) call(ctx context.Context, params callParams) (*apiResponse, error) {
	var (
		lastErr     error
		skipBackoff bool
	)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 && !skipBackoff {
			wait := c.backoffBase << (attempt - 2)
			c.logger.Warn("remote call retrying",
				"endpoint", params.endpoint, "attempt", attempt, "wait", wait, "error", lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
		skipBackoff = false

		rsp, err := c.post(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case rsp.Code == codeOK && rsp.Msg == msgVerificationRequired:
			return nil, ErrVerificationRequired
		case rsp.Code == codeOK:
			return rsp, nil
		case rsp.Code == codeCaptchaFailed:
			// Not an error at this layer: the captcha loops read the code
			// and decide whether to try a fresh challenge.
			return rsp, nil
		case isTokenExpiredMsg(rsp.Msg):
			if params.skipRelogin {
				return nil, fmt.Errorf("%w during login: %s", ErrTokenExpired, rsp.Msg)
			}
			lastErr = fmt.Errorf("%w: %s", ErrTokenExpired, rsp.Msg)
			if attempt == c.maxAttempts {
				return nil, lastErr
			}
			wait := c.backoffBase << (attempt - 1)
			c.logger.Warn("session token expired, re-authenticating",
				"endpoint", params.endpoint, "attempt", attempt, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			if err := c.Login(ctx); err != nil {
				return nil, fmt.Errorf("re-login after token expiry: %w", err)
			}
			skipBackoff = true
			continue
		case isBusinessMessage(rsp.Msg):
			// Definitive rejection from the service; retrying cannot help.
			return nil, &ServerError{Code: rsp.Code, Msg: rsp.Msg}
		default:
			lastErr = &ServerError{Code: rsp.Code, Msg: rsp.Msg}
		}
	}

	return nil, fmt.Errorf("remote call %s failed after %d attempts: %w",
		params.endpoint, c.maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, params callParams) (*apiResponse, error) {
	body, err := json.Marshal(params.payload)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	url := c.baseURL + strings.TrimPrefix(params.endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)
	if params.authed {
		req.Header.Set("Authorization", c.State.Token)
		req.Header.Set("Userid", c.State.UserID)
		req.Header.Set("Rolekey", c.State.RoleKey)
	}
	if len(params.signFields) > 0 {
		req.Header.Set("Sign", Sign(params.signFields...))
	}

	httpRsp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", params.endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpRsp.Body)
		_ = httpRsp.Body.Close()
	}()

	if httpRsp.StatusCode >= 400 {
		return nil, fmt.Errorf("post %s: unexpected status %d", params.endpoint, httpRsp.StatusCode)
	}

	var rsp apiResponse
	if err := json.NewDecoder(httpRsp.Body).Decode(&rsp); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", params.endpoint, err)
	}
	return &rsp, nil
}

// encryptedTimestamp produces the encrypted "t" field every payload carries.
func (c *Client) encryptedTimestamp() (string, error) {
	return EncryptField(strconv.FormatInt(c.now().UnixMilli(), 10))
}

func newClientUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

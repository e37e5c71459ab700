package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/domain/model"
)

// scriptedTransport replays canned responses; a nil entry simulates a
// transport failure.
type scriptedTransport struct {
	responses []*http.Response
	requests  []*http.Request
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	rsp := s.responses[0]
	s.responses = s.responses[1:]
	if rsp == nil {
		return nil, errors.New("connection reset")
	}
	return rsp, nil
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{contentType}},
	}
}

func newTestClient(t *testing.T, transport *scriptedTransport) (*Client, *[]time.Duration) {
	t.Helper()
	cfg := config.RemoteConfig{
		BaseURL:     "https://api.example.test/",
		MaxAttempts: 5,
		BackoffBase: time.Second,
		Timeout:     5 * time.Second,
	}
	creds := Credentials{Phone: "13800001111", Password: "pw", UserType: model.UserTypeStudent}
	client := NewClient(cfg, creds, ClientOptions{
		HTTPClient: &http.Client{Transport: transport},
		Logger:     slog.New(slog.DiscardHandler),
	})

	var sleeps []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return client, &sleeps
}

func TestCallRetriesTransportFailures(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		nil,
		nil,
		jsonResponse(`{"code":200,"msg":"ok","data":"{}"}`),
	}}
	client, sleeps := newTestClient(t, transport)

	rsp, err := client.call(context.Background(), callParams{endpoint: "x/y"})
	require.NoError(t, err)
	assert.Equal(t, 200, rsp.Code)
	// Backoff doubles per retry: 1s before attempt 2, 2s before attempt 3.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestCallExhaustsAttempts(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{}
	client, sleeps := newTestClient(t, transport)

	_, err := client.call(context.Background(), callParams{endpoint: "x/y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 5 attempts")
	assert.Len(t, *sleeps, 4)
	assert.Equal(t, 8*time.Second, (*sleeps)[3])
}

func TestCallBusinessRejectionIsNotRetried(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"code":500,"msg":"今日已打卡","data":null}`),
	}}
	client, sleeps := newTestClient(t, transport)

	_, err := client.call(context.Background(), callParams{endpoint: "x/y"})
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, "今日已打卡", srvErr.Msg)
	assert.Empty(t, *sleeps)
	assert.Len(t, transport.requests, 1)
}

func TestCallSurfacesVerificationSignal(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"code":200,"msg":"302","data":null}`),
	}}
	client, _ := newTestClient(t, transport)

	_, err := client.call(context.Background(), callParams{endpoint: "x/y"})
	assert.ErrorIs(t, err, ErrVerificationRequired)
}

func TestCallPassesCaptchaFailureThrough(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"code":6111,"msg":"验证失败","data":null}`),
	}}
	client, sleeps := newTestClient(t, transport)

	rsp, err := client.call(context.Background(), callParams{endpoint: "x/y"})
	require.NoError(t, err)
	assert.Equal(t, codeCaptchaFailed, rsp.Code)
	assert.Empty(t, *sleeps)
}

func TestCallTokenExpiryDuringLoginFails(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"code":401,"msg":"token失效","data":null}`),
	}}
	client, _ := newTestClient(t, transport)

	_, err := client.call(context.Background(), callParams{endpoint: "x/y", skipRelogin: true})
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Len(t, transport.requests, 1)
}

func TestCallReloginSharesAttemptBudget(t *testing.T) {
	t.Parallel()

	loginData, err := EncryptField(`{"token":"fresh-token","userId":"u-9","roleKey":"student","userType":"student"}`)
	require.NoError(t, err)

	// Two transport failures, then a token rejection that forces a mid-call
	// re-login (captcha get, check, login), then success on the last attempt
	// of the same budget.
	transport := &scriptedTransport{responses: []*http.Response{
		nil,
		nil,
		jsonResponse(`{"code":401,"msg":"token失效","data":null}`),
		jsonResponse(challengeBody),
		jsonResponse(`{"code":200,"msg":"ok","data":null}`),
		jsonResponse(fmt.Sprintf(`{"code":200,"msg":"ok","data":%q}`, loginData)),
		jsonResponse(`{"code":200,"msg":"ok","data":null}`),
	}}
	client, sleeps := newTestClient(t, transport)
	client.solver = &fakeSolver{sliderPoint: `{"x":9,"y":3}`}
	client.State = SessionState{Token: "stale-token", UserID: "u-9", RoleKey: "student"}

	rsp, err := client.call(context.Background(), callParams{endpoint: "x/y", authed: true})
	require.NoError(t, err)
	assert.Equal(t, 200, rsp.Code)

	// Re-login refreshed the session and the retried request carries it.
	assert.Equal(t, "fresh-token", client.State.Token)
	require.Len(t, transport.requests, 7)
	assert.Equal(t, "fresh-token", transport.requests[6].Header.Get("Authorization"))

	// One shared budget: backoffs before attempts 2 and 3, the token-expiry
	// wait before re-login, no extra backoff before the final attempt.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestCallSendsAuthHeaders(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"code":200,"msg":"ok","data":null}`),
	}}
	client, _ := newTestClient(t, transport)
	client.State = SessionState{Token: "tok-1", UserID: "u-1", RoleKey: "student"}

	_, err := client.call(context.Background(), callParams{
		endpoint:   "a/b",
		authed:     true,
		signFields: []string{"u-1", "student"},
	})
	require.NoError(t, err)

	req := transport.requests[0]
	assert.Equal(t, "tok-1", req.Header.Get("Authorization"))
	assert.Equal(t, "u-1", req.Header.Get("Userid"))
	assert.Equal(t, "student", req.Header.Get("Rolekey"))
	assert.Equal(t, Sign("u-1", "student"), req.Header.Get("Sign"))
	assert.Equal(t, userAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "https://api.example.test/a/b", req.URL.String())
}

func TestCallHTTPStatusIsRetried(t *testing.T) {
	t.Parallel()

	bad := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(bytes.NewBufferString("gateway error")),
	}
	transport := &scriptedTransport{responses: []*http.Response{
		bad,
		jsonResponse(`{"code":200,"msg":"ok","data":null}`),
	}}
	client, sleeps := newTestClient(t, transport)

	_, err := client.call(context.Background(), callParams{endpoint: "x/y"})
	require.NoError(t, err)
	assert.Len(t, *sleeps, 1)
}

func TestMonthBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.February, 14, 10, 30, 0, 0, time.UTC)
	start, end := monthBounds(now)
	assert.Equal(t, "2026-02-01 00:00:00", start)
	assert.Equal(t, "2026-02-28 00:00:00Z", end)
}

func TestSessionStateAuthenticated(t *testing.T) {
	t.Parallel()

	var s SessionState
	assert.False(t, s.Authenticated())
	s.Token = "tok"
	assert.True(t, s.Authenticated())
}

func TestServerErrorFormat(t *testing.T) {
	t.Parallel()

	err := &ServerError{Code: 500, Msg: "boom"}
	assert.Equal(t, fmt.Sprintf("server error %d: %s", 500, "boom"), err.Error())
}

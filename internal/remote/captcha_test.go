package remote

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSolver struct {
	sliderPoint string
	wordPoints  string
	err         error
	calls       int
}

func (f *fakeSolver) SolveSlider(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.sliderPoint, f.err
}

func (f *fakeSolver) SolveClickWords(_ context.Context, _ string, _ []string) (string, error) {
	f.calls++
	return f.wordPoints, f.err
}

const challengeBody = `{"code":200,"msg":"ok","data":{"token":"ch-token","secretKey":"0123456789abcdef","originalImageBase64":"bg","jigsawImageBase64":"jig","wordList":["一","二","三"]}}`

func TestPassSliderCaptcha(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(challengeBody),
		jsonResponse(`{"code":200,"msg":"ok","data":null}`),
	}}
	client, _ := newTestClient(t, transport)
	solver := &fakeSolver{sliderPoint: `{"x":120,"y":5}`}
	client.solver = solver

	assertion, err := client.passSliderCaptcha(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, solver.calls)

	// The login assertion is token + "---" + point encrypted under the
	// challenge secret.
	want, err := EncryptWithKeyB64("ch-token---"+solver.sliderPoint, "0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, want, assertion)
	assert.Len(t, transport.requests, 2)
}

func TestPassSliderCaptchaRetriesRejection(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(challengeBody),
		jsonResponse(`{"code":6111,"msg":"验证失败","data":null}`),
		jsonResponse(challengeBody),
		jsonResponse(`{"code":200,"msg":"ok","data":null}`),
	}}
	client, sleeps := newTestClient(t, transport)
	client.solver = &fakeSolver{sliderPoint: `{"x":1,"y":1}`}

	_, err := client.passSliderCaptcha(context.Background())
	require.NoError(t, err)
	// One jitter sleep between the rejected pass and the fresh challenge.
	assert.Len(t, *sleeps, 1)
}

func TestPassSliderCaptchaExhausted(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{}
	client, _ := newTestClient(t, transport)
	client.solver = &fakeSolver{err: errors.New("solver down")}
	// Every challenge fetch fails too; either way the loop must terminate.
	_, err := client.passSliderCaptcha(context.Background())
	assert.ErrorIs(t, err, ErrCaptchaSolveFailed)
}

func TestPassSliderCaptchaWithoutSolver(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, &scriptedTransport{})
	_, err := client.passSliderCaptcha(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no captcha solver")
}

func TestSolveClickWordCaptcha(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(challengeBody),
		jsonResponse(`{"code":200,"msg":"ok","data":null}`),
	}}
	client, _ := newTestClient(t, transport)
	client.State = SessionState{Token: "tok", UserID: "u-1", RoleKey: "student"}
	solver := &fakeSolver{wordPoints: `[{"x":10,"y":20},{"x":30,"y":40}]`}
	client.solver = solver

	assertion, err := client.solveClickWordCaptcha(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, assertion)

	// Both legs of the behavioral handshake are authenticated.
	for _, req := range transport.requests {
		assert.Equal(t, "tok", req.Header.Get("Authorization"))
	}
}

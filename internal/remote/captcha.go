package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// captchaAttempts bounds one whole challenge loop: fetch, solve, verify.
const captchaAttempts = 5

// captchaChallenge is the payload of a captcha get endpoint.
type captchaChallenge struct {
	Token               string   `json:"token"`
	SecretKey           string   `json:"secretKey"`
	OriginalImageBase64 string   `json:"originalImageBase64"`
	JigsawImageBase64   string   `json:"jigsawImageBase64"`
	WordList            []string `json:"wordList"`
}

// passSliderCaptcha runs the jigsaw-slider handshake gating login. Each pass
// fetches a fresh challenge, solves it, AES-encrypts the point under the
// challenge secret, and verifies server-side. On acceptance it returns the
// login captcha assertion enc(token + "---" + point).
func (c *Client) passSliderCaptcha(ctx context.Context) (string, error) {
	if c.solver == nil {
		return "", errors.New("no captcha solver configured")
	}

	var lastErr error
	for attempt := 1; attempt <= captchaAttempts; attempt++ {
		assertion, err := c.sliderChallenge(ctx)
		if err == nil {
			return assertion, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		c.logger.Warn("slider captcha attempt failed", "attempt", attempt, "error", err)
		if err := c.sleep(ctx, captchaJitter()); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: slider: %w", ErrCaptchaSolveFailed, lastErr)
}

func (c *Client) sliderChallenge(ctx context.Context) (string, error) {
	rsp, err := c.call(ctx, callParams{
		endpoint: "session/captcha/v1/get",
		payload: map[string]any{
			"clientUid":   newClientUID(),
			"captchaType": "blockPuzzle",
		},
	})
	if err != nil {
		return "", fmt.Errorf("fetch slider challenge: %w", err)
	}

	var challenge captchaChallenge
	if err := json.Unmarshal(rsp.Data, &challenge); err != nil {
		return "", fmt.Errorf("decode slider challenge: %w", err)
	}

	point, err := c.solver.SolveSlider(ctx, challenge.JigsawImageBase64, challenge.OriginalImageBase64)
	if err != nil {
		return "", fmt.Errorf("solve slider: %w", err)
	}

	pointEnc, err := EncryptWithKeyB64(point, challenge.SecretKey)
	if err != nil {
		return "", fmt.Errorf("encrypt slider point: %w", err)
	}

	check, err := c.call(ctx, callParams{
		endpoint: "session/captcha/v1/check",
		payload: map[string]any{
			"pointJson":   pointEnc,
			"token":       challenge.Token,
			"captchaType": "blockPuzzle",
		},
	})
	if err != nil {
		return "", fmt.Errorf("verify slider point: %w", err)
	}
	if check.Code == codeCaptchaFailed {
		return "", fmt.Errorf("server rejected slider point")
	}

	return EncryptWithKeyB64(challenge.Token+"---"+point, challenge.SecretKey)
}

// solveClickWordCaptcha runs the behavioral click-word handshake demanded by
// the check-in endpoint when it answers with the verification-required
// signal. Returns the assertion to attach as the resubmission's captcha field.
func (c *Client) solveClickWordCaptcha(ctx context.Context) (string, error) {
	if c.solver == nil {
		return "", errors.New("no captcha solver configured")
	}

	var lastErr error
	for attempt := 1; attempt <= captchaAttempts; attempt++ {
		assertion, err := c.clickWordChallenge(ctx)
		if err == nil {
			return assertion, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		c.logger.Warn("click-word captcha attempt failed", "attempt", attempt, "error", err)
		if err := c.sleep(ctx, captchaJitter()); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: click-word: %w", ErrCaptchaSolveFailed, lastErr)
}

func (c *Client) clickWordChallenge(ctx context.Context) (string, error) {
	rsp, err := c.call(ctx, callParams{
		endpoint: "attendence/clock/v1/get",
		payload: map[string]any{
			"clientUid":   newClientUID(),
			"captchaType": "clickWord",
		},
		authed: true,
	})
	if err != nil {
		return "", fmt.Errorf("fetch click-word challenge: %w", err)
	}

	var challenge captchaChallenge
	if err := json.Unmarshal(rsp.Data, &challenge); err != nil {
		return "", fmt.Errorf("decode click-word challenge: %w", err)
	}

	points, err := c.solver.SolveClickWords(ctx, challenge.OriginalImageBase64, challenge.WordList)
	if err != nil {
		return "", fmt.Errorf("solve click-word: %w", err)
	}

	pointsEnc, err := EncryptWithKeyB64(points, challenge.SecretKey)
	if err != nil {
		return "", fmt.Errorf("encrypt click-word points: %w", err)
	}

	check, err := c.call(ctx, callParams{
		endpoint: "attendence/clock/v1/check",
		payload: map[string]any{
			"pointJson":   pointsEnc,
			"token":       challenge.Token,
			"captchaType": "clickWord",
		},
		authed: true,
	})
	if err != nil {
		return "", fmt.Errorf("verify click-word points: %w", err)
	}
	if check.Code == codeCaptchaFailed {
		return "", fmt.Errorf("server rejected click-word points")
	}

	return EncryptWithKeyB64(challenge.Token+"---"+points, challenge.SecretKey)
}

// captchaJitter spaces challenge retries like a human would, 1 to 3 seconds.
func captchaJitter() time.Duration {
	return time.Second + time.Duration(rand.Int64N(int64(2*time.Second)))
}

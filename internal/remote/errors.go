package remote

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Response codes and markers of the upstream protocol.
const (
	codeOK            = 200
	codeCaptchaFailed = 6111

	msgVerificationRequired = "302"
	tokenExpiredMarker      = "token失效"
)

// ErrVerificationRequired signals that the server demands a behavioral
// (click-word) captcha before accepting the submission. Callers that can
// solve it catch this, solve, and resubmit once.
var ErrVerificationRequired = errors.New("behavioral verification required")

// ErrCaptchaSolveFailed is returned when a whole captcha challenge loop is
// exhausted without the server accepting a solution.
var ErrCaptchaSolveFailed = errors.New("captcha solve attempts exhausted")

// ErrTokenExpired marks a server response reporting a stale session token.
// The call loop handles it internally by re-authenticating; it only escapes
// when re-login keeps producing it.
var ErrTokenExpired = errors.New("session token expired")

// ServerError is a business-level rejection from the platform. It is not
// retried; the message is surfaced to the task result as-is.
type ServerError struct {
	Code int
	Msg  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Msg)
}

// isTokenExpiredMsg reports whether a server message announces token expiry.
func isTokenExpiredMsg(msg string) bool {
	return strings.Contains(msg, tokenExpiredMarker)
}

// isBusinessMessage applies the upstream client's heuristic: the platform
// writes business rejections in Chinese, while transport-level noise
// (gateway errors, JSON parse garbage) stays ASCII. CJK text in the message
// means a definitive answer from the service, so retrying is pointless.
func isBusinessMessage(msg string) bool {
	for _, r := range msg {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

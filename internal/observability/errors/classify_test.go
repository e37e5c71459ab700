package errors

import (
	goerrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type customError struct{}

func (customError) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Classify(nil))
	assert.Equal(t, "errors_errorstring", Classify(goerrors.New("plain")))
	assert.Equal(t, "errors_customerror", Classify(customError{}))
	assert.Equal(t, "errors_customerror", Classify(&customError{}))
	assert.Equal(t, "net_dnserror", Classify(&net.DNSError{Err: "no such host"}))
}

func TestClassifyUnwrapsToInnermost(t *testing.T) {
	t.Parallel()

	inner := customError{}
	wrapped := fmt.Errorf("outer: %w", fmt.Errorf("middle: %w", inner))
	assert.Equal(t, "errors_customerror", Classify(wrapped))
}

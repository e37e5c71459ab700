package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicyDelay(t *testing.T) {
	t.Parallel()

	policy := BackoffPolicy{Base: 3 * time.Second, Cap: 60 * time.Second}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 3 * time.Second}, // clamped to 1
		{1, 3 * time.Second},
		{2, 6 * time.Second},
		{3, 12 * time.Second},
		{4, 24 * time.Second},
		{5, 48 * time.Second},
		{6, 60 * time.Second},
		{20, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.Delay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestBackoffPolicyDefaults(t *testing.T) {
	t.Parallel()

	// Zero-valued policy still produces a sane delay.
	var policy BackoffPolicy
	assert.Equal(t, time.Second, policy.Delay(1))
	assert.Equal(t, time.Second, policy.Delay(5))
}

func TestClaimCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, ClaimCapacity(5, 0))
	assert.Equal(t, 2, ClaimCapacity(5, 3))
	assert.Equal(t, 0, ClaimCapacity(5, 5))
	assert.Equal(t, 0, ClaimCapacity(5, 9))
	assert.Equal(t, 1, ClaimCapacity(0, 0)) // concurrency floor of 1
}

func TestClampConcurrency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, ClampConcurrency(0, 10))
	assert.Equal(t, 1, ClampConcurrency(-3, 10))
	assert.Equal(t, 7, ClampConcurrency(7, 10))
	assert.Equal(t, 10, ClampConcurrency(25, 10))
	assert.Equal(t, 1, ClampConcurrency(5, 0)) // maxWorkers floor of 1
}

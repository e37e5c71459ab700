// Package batch holds pure batch-queue policy: retry backoff and claim
// capacity arithmetic. No I/O lives here.
package batch

import "time"

// BackoffPolicy computes the re-queue delay after a failed attempt.
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before attempt k+1, where attempts is the number of
// executions already consumed (1-based). The delay doubles per attempt and is
// clamped at Cap: min(Cap, Base<<(attempts-1)).
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	capv := p.Cap
	if capv < base {
		capv = base
	}

	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= capv {
			return capv
		}
	}
	if d > capv {
		return capv
	}
	return d
}

// ClaimCapacity returns how many items a job may claim this tick given its
// configured concurrency and the number of its items currently running.
func ClaimCapacity(concurrency, running int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	capacity := concurrency - running
	if capacity < 0 {
		return 0
	}
	return capacity
}

// ClampConcurrency bounds a requested per-job concurrency to [1, maxWorkers].
func ClampConcurrency(requested, maxWorkers int) int {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if requested < 1 {
		return 1
	}
	if requested > maxWorkers {
		return maxWorkers
	}
	return requested
}

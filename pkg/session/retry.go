package session

import (
	"math"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 5 * time.Second
)

// RetryPolicy computes reconnect delays: base * 2^(attempt-1), no jitter
// and no cap.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait before reconnect number attempt. Attempts below 1
// are treated as 1. The result saturates at the largest Duration.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt has gone past the allowed number of
// reconnects.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}

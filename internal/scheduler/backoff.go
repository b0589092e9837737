package scheduler

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// ExponentialBackoff computes jittered delays between job retry attempts.
type ExponentialBackoff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewExponentialBackoff builds a policy; attempts are spaced base*2^(n-1)
// with half-window jitter, capped at max.
func NewExponentialBackoff(base, max time.Duration) *ExponentialBackoff {
	if base <= 0 {
		base = 2 * time.Second
	}
	if max <= 0 {
		max = time.Minute
	}
	return &ExponentialBackoff{baseDelay: base, maxDelay: max}
}

// Delay returns the wait duration before the next attempt. attempt is the
// 1-based number of the attempt that just failed.
func (p *ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

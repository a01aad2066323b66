package dispatch

import (
	"math"
	"math/rand"
	"time"
)

type BackoffType string

const (
	BackoffExp       BackoffType = "exp"
	BackoffExpJitter BackoffType = "exp-jitter"
	BackoffFixed     BackoffType = "fixed"
	BackoffNone      BackoffType = "none"
)

// RetryPolicy shapes redelivery of a failed batch. MaxAttempts counts the
// first delivery, so MaxAttempts=1 means no retries.
type RetryPolicy struct {
	Type        BackoffType
	Base        time.Duration
	Cap         time.Duration
	Factor      float64
	MaxAttempts int
}

// DefaultRetryPolicy is used when a group has no explicit policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Type:        BackoffExpJitter,
		Base:        100 * time.Millisecond,
		Cap:         5 * time.Second,
		Factor:      2.0,
		MaxAttempts: 5,
	}
}

// ComputeBackoff returns the delay before the given attempt (1-based, so
// attempt 1 is the delay after the first failure).
func ComputeBackoff(pol RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch pol.Type {
	case BackoffNone:
		return 0
	case BackoffFixed:
		if pol.Base <= 0 {
			return 0
		}
		if pol.Cap > 0 && pol.Base > pol.Cap {
			return pol.Cap
		}
		return pol.Base
	case BackoffExp, BackoffExpJitter:
		base := pol.Base
		if base <= 0 {
			base = 200 * time.Millisecond
		}
		factor := pol.Factor
		if factor <= 0 {
			factor = 2.0
		}
		d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
		if pol.Cap > 0 && d > pol.Cap {
			d = pol.Cap
		}
		if pol.Type == BackoffExpJitter {
			if d <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(d)))
		}
		return d
	default:
		return 0
	}
}

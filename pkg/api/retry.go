package api

import (
	"math"
	"time"
)

// RetryPolicy controls how a stage is retried on a retryable failure.
//
// MaxAttempts includes the first invocation:
//
//	MaxAttempts = 1 => never retried (steps whose external side effects are
//	                   not safely repeatable may choose this)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// Backoff grows exponentially from Base by Factor per attempt and is capped
// at Cap. The delay is a pure function of the attempt count, never of
// wall-clock elapsed time, so a crashed-and-resumed orchestrator recomputes
// the same schedule deterministically.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
}

// Delay returns the backoff before the next invocation, given the number of
// failed attempts so far (1 after the first failure). Factor <= 0 defaults
// to 2.0; Cap <= 0 means uncapped.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if p.Base <= 0 || attempts <= 0 {
		return 0
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2.0
	}
	d := time.Duration(float64(p.Base) * math.Pow(factor, float64(attempts-1)))
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

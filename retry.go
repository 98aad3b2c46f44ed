package sagaflow

import "time"

// RetryBuilder provides a fluent way to construct RetryPolicy values for
// stage bindings.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry creates a RetryBuilder with the given maxAttempts.
//
// maxAttempts <= 0 is treated as 1 (no retries).
func Retry(maxAttempts int) RetryBuilder {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return RetryBuilder{
		policy: RetryPolicy{
			MaxAttempts: maxAttempts,
		},
	}
}

// WithExponentialBackoff configures exponential backoff:
//
//   - base is the delay before the first retry.
//   - factor > 1 grows the delay each attempt (default 2.0 if <= 0).
//   - cap bounds the delay; if <= 0, there is no cap.
//
// Example:
//
//	Retry(3).WithExponentialBackoff(100*time.Millisecond, 2.0, 2*time.Second)
func (r RetryBuilder) WithExponentialBackoff(base time.Duration, factor float64, cap time.Duration) RetryBuilder {
	p := r.policy
	p.Base = base
	p.Cap = cap
	if factor <= 0 {
		factor = 2.0
	}
	p.Factor = factor
	return RetryBuilder{policy: p}
}

// WithConstantBackoff configures a constant backoff between retries.
//
// This is equivalent to an exponential backoff with factor 1.0 and no cap.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	p := r.policy
	p.Base = delay
	p.Cap = 0
	p.Factor = 1.0
	return RetryBuilder{policy: p}
}

// Immediate disables any sleep between retries.
// Retries will still respect MaxAttempts.
func (r RetryBuilder) Immediate() RetryBuilder {
	p := r.policy
	p.Base = 0
	p.Cap = 0
	p.Factor = 0
	return RetryBuilder{policy: p}
}

// Policy returns the underlying RetryPolicy to be used in a StageBinding.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}

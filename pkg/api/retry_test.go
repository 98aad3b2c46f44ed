package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Base: 100 * time.Millisecond, Factor: 2, Cap: 2 * time.Second}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))

	// Capped.
	assert.Equal(t, 2*time.Second, p.Delay(8))
}

func TestRetryPolicyDelayDefaults(t *testing.T) {
	// No base means no backoff at all.
	assert.Equal(t, time.Duration(0), RetryPolicy{MaxAttempts: 3}.Delay(2))

	// Factor defaults to 2.
	p := RetryPolicy{MaxAttempts: 3, Base: 50 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Delay(2))

	// No cap means unbounded growth.
	assert.Equal(t, 1600*time.Millisecond, p.Delay(6))
}

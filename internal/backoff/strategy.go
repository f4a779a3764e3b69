package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before retry attempt n (0-based).
type Strategy interface {
	Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration
}

// ConstantStrategy waits initialBackoff before every retry, ignoring the
// multiplier and jitter.
type ConstantStrategy struct{}

// Calculate implements Strategy.
func (ConstantStrategy) Calculate(_ int, initialBackoff, maxBackoff time.Duration, _, _ float64) time.Duration {
	if maxBackoff > 0 && initialBackoff > maxBackoff {
		return maxBackoff
	}
	if initialBackoff < 0 {
		return 0
	}
	return initialBackoff
}

// ExponentialJitterStrategy implements exponential backoff with uniform jitter.
type ExponentialJitterStrategy struct{}

// Calculate implements Strategy.
func (ExponentialJitterStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	backoff := time.Duration(float64(initialBackoff) * Pow(multiplier, attempt))
	if backoff < 0 || backoff > maxBackoff {
		backoff = maxBackoff
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		jitterAmount := time.Duration(float64(backoff) * jitter * rand.Float64())
		if backoff+jitterAmount > maxBackoff {
			backoff = maxBackoff
		} else {
			backoff += jitterAmount
		}
	}
	return backoff
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow calculates base^exponent for a non-negative integer exponent.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

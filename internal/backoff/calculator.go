package backoff

import (
	"time"
)

// Calculator binds a Strategy to a fixed set of parameters so callers only
// pass the attempt number.
type Calculator struct {
	strategy   Strategy
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
}

// NewCalculator creates a calculator for strategy with the given parameters.
func NewCalculator(strategy Strategy, initial, max time.Duration, multiplier, jitter float64) *Calculator {
	if strategy == nil {
		strategy = ConstantStrategy{}
	}
	return &Calculator{
		strategy:   strategy,
		initial:    initial,
		max:        max,
		multiplier: multiplier,
		jitter:     jitter,
	}
}

// Constant returns a calculator that always yields d.
func Constant(d time.Duration) *Calculator {
	return NewCalculator(ConstantStrategy{}, d, d, 1, 0)
}

// Exponential returns a calculator doubling from initial up to max with the
// given jitter fraction.
func Exponential(initial, max time.Duration, jitter float64) *Calculator {
	return NewCalculator(ExponentialJitterStrategy{}, initial, max, 2.0, jitter)
}

// Next returns the delay before retry attempt (0-based).
func (c *Calculator) Next(attempt int) time.Duration {
	return c.strategy.Calculate(attempt, c.initial, c.max, c.multiplier, c.jitter)
}

// Strategy returns the strategy in use.
func (c *Calculator) Strategy() Strategy {
	return c.strategy
}

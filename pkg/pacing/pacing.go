// Package pacing provides the randomized waits used to make request timing
// look less mechanical to upstream anti-bot defences.
package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Delay yields the next wait duration
type Delay interface {
	Next() time.Duration
}

// Uniform draws a delay uniformly from [Min, Max]
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

// DefaultUniform is the pre-extraction delay of one to three seconds
func DefaultUniform() Uniform {
	return Uniform{Min: 1000 * time.Millisecond, Max: 3000 * time.Millisecond}
}

// Next returns a random duration in [Min, Max]. Negative bounds count as zero.
func (u Uniform) Next() time.Duration {
	u.Min = max(u.Min, 0)
	u.Max = max(u.Max, 0)
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + time.Duration(rand.Int63n(int64(u.Max-u.Min)+1))
}

// Constant always returns the same delay
type Constant time.Duration

// Next returns the fixed delay
func (c Constant) Next() time.Duration {
	return time.Duration(c)
}

// None disables pacing
var None Delay = Constant(0)

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sleep draws the next duration from d and waits for it
func Sleep(ctx context.Context, d Delay) error {
	if d == nil {
		return ctx.Err()
	}
	return Wait(ctx, d.Next())
}

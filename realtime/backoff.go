// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"math"
	"time"
)

// Backoff bounds reconnection. The wait before retry n (1-based) is
// min(Initial * Multiplier^(n-1), Max). After MaxAttempts consecutive
// failures the manager stops trying.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultBackoff is 1s doubling to 30s, ten attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     time.Second,
		Max:         30 * time.Second,
		Multiplier:  2,
		MaxAttempts: 10,
	}
}

// Delay returns the wait before retry attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	scaled := float64(b.Initial) * math.Pow(multiplier, float64(attempt-1))
	if b.Max > 0 && (scaled > float64(b.Max) || math.IsInf(scaled, 1)) {
		return b.Max
	}
	return time.Duration(scaled)
}

// Exhausted reports whether failures consecutive failures reach the
// ceiling. A zero MaxAttempts retries forever.
func (b Backoff) Exhausted(failures int) bool {
	return b.MaxAttempts > 0 && failures >= b.MaxAttempts
}

func (b Backoff) withDefaults() Backoff {
	defaults := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = defaults.Initial
	}
	if b.Max <= 0 {
		b.Max = defaults.Max
	}
	if b.Multiplier <= 0 {
		b.Multiplier = defaults.Multiplier
	}
	return b
}

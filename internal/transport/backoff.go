package transport

import (
	"time"
)

// Backoff describes the retry schedule of a fetch.
type Backoff struct {
	MaxRetries int
	Base       time.Duration
	Ceiling    time.Duration
	// Jitter is the fraction of the exponential delay added at random.
	Jitter float64
}

// RetryState is the position of a fetch in its retry schedule, Attempt is the number
// of retries already scheduled and Delay the wait before the latest one.
type RetryState struct {
	Attempt int
	Delay   time.Duration
}

// Next returns the state for the next retry, false once retries are exhausted.
// r must be in [0, 1).
func (b Backoff) Next(state RetryState, r float64) (RetryState, bool) {
	if state.Attempt >= b.MaxRetries {
		return state, false
	}

	delay := b.Base << state.Attempt
	if delay <= 0 || (b.Ceiling > 0 && delay > b.Ceiling) {
		delay = b.Ceiling
	}
	delay += time.Duration(float64(delay) * b.Jitter * r)
	if b.Ceiling > 0 && delay > b.Ceiling {
		delay = b.Ceiling
	}

	return RetryState{Attempt: state.Attempt + 1, Delay: delay}, true
}

// DelayRange is the range a pre-request delay is drawn from.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

func (d DelayRange) Pick(r float64) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(float64(d.Max-d.Min)*r)
}

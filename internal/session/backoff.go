package session

import (
	"math/rand/v2"
	"time"
)

// backoff produces capped exponential reconnect delays with jitter.
// Each Next doubles the base delay up to max and returns a jittered value
// in [base/2, base]. Reset restores the initial delay after a healthy
// streaming period.
type backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	if initial <= 0 {
		initial = time.Millisecond
	}
	if max < initial {
		max = initial
	}
	return &backoff{initial: initial, max: max, next: initial}
}

// Next returns the delay to wait before the next reconnect attempt.
func (b *backoff) Next() time.Duration {
	base := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	half := base / 2
	return half + rand.N(half+1)
}

// Reset restores the initial delay.
func (b *backoff) Reset() {
	b.next = b.initial
}

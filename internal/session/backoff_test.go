package session

import (
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, time.Second)
	prevBase := time.Duration(0)
	for i := 0; i < 8; i++ {
		d := b.Next()
		// jitter keeps the delay within [base/2, base]
		if d > time.Second {
			t.Fatalf("attempt %d: delay %s above cap", i, d)
		}
		if d < 50*time.Millisecond {
			t.Fatalf("attempt %d: delay %s below initial/2", i, d)
		}
		if d < prevBase/2 {
			t.Fatalf("attempt %d: delay %s shrank unexpectedly", i, d)
		}
		prevBase = d
	}
	// after many attempts the delay must sit in the cap's jitter window
	d := b.Next()
	if d < 500*time.Millisecond || d > time.Second {
		t.Fatalf("capped delay = %s, want within [500ms, 1s]", d)
	}
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff(100*time.Millisecond, time.Second)
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()
	if d := b.Next(); d > 100*time.Millisecond {
		t.Fatalf("delay after reset = %s, want at most the initial delay", d)
	}
}

func TestBackoffDegenerateInputs(t *testing.T) {
	b := newBackoff(0, 0)
	if d := b.Next(); d <= 0 {
		t.Fatalf("delay = %s, want positive", d)
	}
}

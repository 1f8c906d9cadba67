package backoff

import (
	"math/rand"
	"testing"
	"time"
)

func TestFixedIgnoresAttempt(t *testing.T) {
	for attempt := 0; attempt < 5; attempt++ {
		d := Delay(Fixed, 2*time.Second, 30*time.Second, attempt, nil)
		if d != 2*time.Second {
			t.Errorf("attempt %d: delay = %v, want 2s", attempt, d)
		}
	}
}

func TestExponentialDoublesAndCaps(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 10 * time.Second}, // capped
	}
	for _, tt := range tests {
		d := Delay(Exponential, time.Second, 10*time.Second, tt.attempt, nil)
		if d != tt.want {
			t.Errorf("attempt %d: delay = %v, want %v", tt.attempt, d, tt.want)
		}
	}
}

func TestFullJitterStaysWithinCeiling(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for attempt := 0; attempt < 8; attempt++ {
		ceiling := Delay(Exponential, time.Second, 30*time.Second, attempt, nil)
		for i := 0; i < 50; i++ {
			d := Delay(FullJitter, time.Second, 30*time.Second, attempt, rng)
			if d < 0 || d > ceiling {
				t.Fatalf("attempt %d: jittered delay %v outside [0, %v]", attempt, d, ceiling)
			}
		}
	}
}

func TestDefaultsForBadInputs(t *testing.T) {
	d := Delay(Fixed, 0, 0, -3, nil)
	if d != time.Second {
		t.Errorf("delay = %v, want 1s default", d)
	}
}

func TestUnknownPolicyFallsBackToJitter(t *testing.T) {
	d := Delay(Policy("bogus"), time.Second, 4*time.Second, 2, rand.New(rand.NewSource(7)))
	if d < 0 || d > 4*time.Second {
		t.Errorf("delay = %v outside cap", d)
	}
}

package backoff

import (
	"math"
	"math/rand"
	"time"
)

type Policy string

const (
	Fixed       Policy = "fixed"
	Exponential Policy = "exponential"
	// FullJitter is exponential with the delay drawn uniformly from
	// [0, computed]. Default when the policy string is unknown.
	FullJitter Policy = "exp_full_jitter"
)

// Delay returns the wait before retry number attempt (attempt >= 0),
// capped at max.
func Delay(policy Policy, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	switch policy {
	case Fixed:
		return minDur(base, max)
	case Exponential:
		return minDur(scale(base, attempt), max)
	default: // FullJitter
		ceiling := minDur(scale(base, attempt), max)
		if ceiling <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(ceiling) + 1))
	}
}

func scale(base time.Duration, attempt int) time.Duration {
	f := float64(base) * math.Pow(2, float64(attempt))
	if f > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

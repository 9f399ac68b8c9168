package resilience

import (
	"testing"
	"time"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	got := Config{RetryInitialBackoff: 2 * time.Second, RetryMaxBackoff: time.Second, BreakerFailureRatio: 3}.normalize()
	def := DefaultConfig()

	if got.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("RetryMaxAttempts = %d, want %d", got.RetryMaxAttempts, def.RetryMaxAttempts)
	}
	if got.RetryMaxBackoff != 2*time.Second {
		t.Fatalf("max backoff must not be below initial backoff, got %v", got.RetryMaxBackoff)
	}
	if got.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("BreakerFailureRatio = %v, want %v", got.BreakerFailureRatio, def.BreakerFailureRatio)
	}
	if got.RetryMultiplier != def.RetryMultiplier || got.BreakerHalfOpenMaxCalls != 1 {
		t.Fatalf("unexpected normalized config: %+v", got)
	}
}

func TestDerivedProfiles(t *testing.T) {
	base := DefaultConfig()

	oracle := base.ForOracle()
	if oracle.BreakerMinRequests != 3 || oracle.BreakerOpenTimeout != 2*base.BreakerOpenTimeout {
		t.Fatalf("unexpected oracle profile: %+v", oracle)
	}
	queue := base.ForQueue()
	if queue.RetryMaxAttempts != base.RetryMaxAttempts+1 {
		t.Fatalf("unexpected queue profile: %+v", queue)
	}
	if base.BreakerMinRequests != 5 {
		t.Fatalf("base config mutated: %+v", base)
	}
}

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroInterval(t *testing.T) {
	limiter := NewInterval(0, 0.5)

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("limiter with zero interval should not block")
	}
}

func TestLimiter_FirstCallNeverBlocks(t *testing.T) {
	limiter := NewInterval(time.Second, 0)

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("first wait should be immediate, took %v", time.Since(start))
	}
}

func TestLimiter_EnforcesSpacing(t *testing.T) {
	limiter := NewInterval(100*time.Millisecond, 0)
	ctx := context.Background()

	_ = limiter.Wait(ctx)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Errorf("expected wait around 100ms, took %v", elapsed)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewInterval(time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())

	_ = limiter.Wait(ctx)
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestLimiter_Jitter(t *testing.T) {
	limiter := NewInterval(50*time.Millisecond, 0.5)
	ctx := context.Background()

	_ = limiter.Wait(ctx)

	start := time.Now()
	_ = limiter.Wait(ctx)
	elapsed := time.Since(start)

	// Interval 50ms plus up to 25ms jitter; allow scheduling slack.
	if elapsed < 25*time.Millisecond || elapsed > 300*time.Millisecond {
		t.Errorf("expected jittered wait roughly 50-75ms, took %v", elapsed)
	}
}

func TestNewPerSecond(t *testing.T) {
	limiter := NewPerSecond(4, 0)
	if limiter.Interval() != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", limiter.Interval())
	}

	unbounded := NewPerSecond(0, 0)
	if unbounded.Interval() != 0 {
		t.Errorf("rps<=0 should never block")
	}
}

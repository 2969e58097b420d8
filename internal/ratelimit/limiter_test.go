package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestNewRateLimiterStartsFull verifies the bucket starts at full capacity.
func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := NewRateLimiter(1.0, 10.0)
	if tokens := rl.GetCurrentTokens(); tokens < 9.9 {
		t.Errorf("expected ~10 tokens, got %.2f", tokens)
	}
}

// TestTryAcquireConsumesToken verifies token consumption.
func TestTryAcquireConsumesToken(t *testing.T) {
	rl := NewRateLimiter(0.001, 5.0)

	for i := 0; i < 5; i++ {
		if !rl.tryAcquire() {
			t.Fatalf("tryAcquire() failed on attempt %d", i+1)
		}
	}

	if rl.tryAcquire() {
		t.Error("tryAcquire() should fail when bucket is empty")
	}
}

// TestTokenRefill verifies tokens refill over time.
func TestTokenRefill(t *testing.T) {
	rl := NewRateLimiter(10.0, 10.0)
	for i := 0; i < 10; i++ {
		rl.tryAcquire()
	}

	time.Sleep(200 * time.Millisecond)

	tokens := rl.GetCurrentTokens()
	if tokens < 1.5 || tokens > 3.5 {
		t.Errorf("expected ~2 tokens after 200ms at 10/sec, got %.2f", tokens)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(0.01, 1.0)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait did not return promptly after context expiry")
	}
}

func TestNewAPIRateLimiter(t *testing.T) {
	rl := NewAPIRateLimiter()
	for i := 0; i < 20; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}

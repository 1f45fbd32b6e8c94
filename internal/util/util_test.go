package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestFetchGuardInterval(t *testing.T) {
	g := NewFetchGuard(3 * time.Second)
	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	g.SetClock(func() time.Time { return now })

	if !g.Acquire() {
		t.Fatal("first Acquire should succeed")
	}
	g.Release()

	// Within the interval — suppressed.
	now = now.Add(1 * time.Second)
	if g.Acquire() {
		t.Fatal("Acquire within interval should be suppressed")
	}

	// After the interval — allowed again.
	now = now.Add(3 * time.Second)
	if !g.Acquire() {
		t.Fatal("Acquire after interval should succeed")
	}
	g.Release()
}

func TestFetchGuardSingleFlight(t *testing.T) {
	g := NewFetchGuard(0)

	if !g.Acquire() {
		t.Fatal("first Acquire should succeed")
	}
	// Second caller while first is in flight.
	if g.Acquire() {
		t.Fatal("concurrent Acquire should be suppressed while in flight")
	}
	g.Release()

	if !g.Acquire() {
		t.Fatal("Acquire after Release should succeed")
	}
	g.Release()
}

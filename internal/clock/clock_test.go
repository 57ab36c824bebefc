package clock

import (
	"context"
	"testing"
	"time"
)

func TestManualSleepAdvances(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	m := NewManual(start)

	if err := m.Sleep(context.Background(), 1500*time.Millisecond); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := m.Now().Sub(start); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s elapsed, got %v", got)
	}
}

func TestManualSleepCancelled(t *testing.T) {
	m := NewManual(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := m.Now()
	if err := m.Sleep(ctx, time.Second); err == nil {
		t.Error("Expected context error, got nil")
	}
	if !m.Now().Equal(before) {
		t.Error("Expected clock not to move after cancellation")
	}
}

func TestRealSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := (Real{}).Sleep(ctx, time.Minute); err == nil {
		t.Error("Expected context error, got nil")
	}
	if time.Since(start) > time.Second {
		t.Error("Expected cancelled sleep to return immediately")
	}
}

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPacerSpacesCalls(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Expected first call to start immediately, blocked %v", elapsed)
	}

	start = time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Expected Wait to block roughly one interval, blocked %v", elapsed)
	}
}

func TestPacerWaitCancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Error("Expected Wait to fail on a cancelled context")
	}
}

func TestUnlimited(t *testing.T) {
	l := Unlimited()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("call %d: Wait() error = %v", i+1, err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected unlimited calls not to wait, took %v", elapsed)
	}
}

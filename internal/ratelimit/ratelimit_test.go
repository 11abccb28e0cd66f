package ratelimit

import (
	"testing"
	"time"
)

func TestAllowRejectsAfterNInWindow(t *testing.T) {
	l := New(4, 2*time.Minute)
	base := time.Unix(0, 0)

	for i := 0; i < 4; i++ {
		if !l.Allow(base) {
			t.Fatalf("expected call %d within budget to be allowed", i)
		}
	}
	if l.Allow(base) {
		t.Fatal("expected the 5th call in the same window to be rejected")
	}
}

func TestAllowRecoversAfterWindowElapses(t *testing.T) {
	l := New(4, 2*time.Minute)
	base := time.Unix(0, 0)

	for i := 0; i < 4; i++ {
		l.Allow(base)
	}
	if l.Allow(base) {
		t.Fatal("expected rejection before window elapses")
	}

	later := base.Add(2 * time.Minute)
	if !l.Allow(later) {
		t.Fatal("expected at least one Allow to succeed once the window has elapsed")
	}
}

func TestResetClearsState(t *testing.T) {
	l := New(1, time.Minute)
	base := time.Unix(0, 0)
	l.Allow(base)
	if l.Allow(base) {
		t.Fatal("expected second call to be rejected before reset")
	}
	l.Reset()
	if !l.Allow(base) {
		t.Fatal("expected Allow to succeed after Reset")
	}
}

package advert

import (
	"testing"
	"time"
)

func TestTickNoneBeforeEitherIntervalElapses(t *testing.T) {
	start := time.Unix(0, 0)
	s := New(2, 1, start) // local = 1 minute, flood = 1 hour
	if kind := s.Tick(start.Add(10 * time.Second)); kind != None {
		t.Fatalf("Tick() = %v, want None", kind)
	}
}

func TestTickLocalFiresAlone(t *testing.T) {
	start := time.Unix(0, 0)
	s := New(2, 0, start) // local = 1 minute, flood disabled
	if kind := s.Tick(start.Add(61 * time.Second)); kind != Local {
		t.Fatalf("Tick() = %v, want Local", kind)
	}
}

func TestTickFloodTakesPriorityOnSimultaneousExpiry(t *testing.T) {
	start := time.Unix(0, 0)
	s := New(2, 0, start) // local = 1 minute
	s.floodInterval = 1 * time.Minute
	s.nextFlood = start.Add(1 * time.Minute)
	s.floodArmed = true

	if kind := s.Tick(start.Add(61 * time.Second)); kind != Flood {
		t.Fatalf("Tick() = %v, want Flood when both timers expire together", kind)
	}

	// The local timer must have been re-armed, not left stale.
	if !s.nextLocal.After(start.Add(61 * time.Second)) {
		t.Fatal("expected local timer to be re-armed past the simultaneous expiry")
	}
}

func TestZeroIntervalDisablesTimer(t *testing.T) {
	start := time.Unix(0, 0)
	s := New(0, 0, start)
	if kind := s.Tick(start.Add(24 * time.Hour)); kind != None {
		t.Fatalf("Tick() = %v, want None when both intervals are 0", kind)
	}
}

func TestSetIntervalsArmsNewlyEnabledTimer(t *testing.T) {
	start := time.Unix(0, 0)
	s := New(0, 0, start)
	s.SetIntervals(2, 0, start) // enable local at runtime
	if kind := s.Tick(start.Add(61 * time.Second)); kind != Local {
		t.Fatalf("Tick() = %v, want Local after SetIntervals enables it", kind)
	}
}

package clock

import (
	"testing"
	"time"
)

func TestRealClockUniqueWallSecondsNeverRepeats(t *testing.T) {
	c := NewRealClock()
	seen := make(map[uint32]bool)
	var prev uint32
	for i := 0; i < 1000; i++ {
		v := c.UniqueWallSeconds()
		if seen[v] {
			t.Fatalf("UniqueWallSeconds repeated value %d", v)
		}
		if i > 0 && v <= prev {
			t.Fatalf("UniqueWallSeconds went backwards or stalled: prev=%d got=%d", prev, v)
		}
		seen[v] = true
		prev = v
	}
}

func TestFakeUniqueWallSecondsNeverRepeats(t *testing.T) {
	f := NewFake(time.Unix(1000, 0))
	first := f.UniqueWallSeconds()
	second := f.UniqueWallSeconds()
	if second <= first {
		t.Fatalf("expected strictly increasing values, got %d then %d", first, second)
	}
}

func TestFakeAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	f.Advance(5 * time.Second)
	if f.MonotonicMillis() != 5000 {
		t.Fatalf("MonotonicMillis = %d, want 5000", f.MonotonicMillis())
	}
	if f.WallNow().Unix() != 5 {
		t.Fatalf("WallNow = %v, want unix 5", f.WallNow())
	}
}

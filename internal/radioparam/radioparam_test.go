package radioparam

import (
	"testing"
	"time"
)

func persistedParams() Params {
	return Params{FreqMHz: 868.0, BandwidthKHz: 125, SpreadingFactor: 7, CodingRate: 5}
}

func tempParams() Params {
	return Params{FreqMHz: 868.1, BandwidthKHz: 125, SpreadingFactor: 9, CodingRate: 5}
}

func TestTempRevertSequence(t *testing.T) {
	start := time.Unix(0, 0)
	c := New(persistedParams())
	c.ApplyTemp(tempParams(), start, 1) // timeout_mins = 1

	// spec.md §8 scenario 6: at t=0 nothing fires yet.
	if ev, _ := c.Tick(start); ev != NoEvent {
		t.Fatalf("Tick(t=0) = %v, want NoEvent", ev)
	}

	// At t=2s the radio is set to the new params.
	ev, p := c.Tick(start.Add(2 * time.Second))
	if ev != Apply || p != tempParams() {
		t.Fatalf("Tick(t=2s) = %v, %+v, want Apply with temp params", ev, p)
	}

	// Between apply and revert, nothing further fires.
	if ev, _ := c.Tick(start.Add(30 * time.Second)); ev != NoEvent {
		t.Fatalf("Tick(t=30s) = %v, want NoEvent", ev)
	}

	// At t=62s it is restored to the original params.
	ev, p = c.Tick(start.Add(62 * time.Second))
	if ev != Revert || p != persistedParams() {
		t.Fatalf("Tick(t=62s) = %v, %+v, want Revert with persisted params", ev, p)
	}

	// At t=70s no further change occurs.
	if ev, _ := c.Tick(start.Add(70 * time.Second)); ev != NoEvent {
		t.Fatalf("Tick(t=70s) = %v, want NoEvent", ev)
	}
	if c.Pending() {
		t.Fatal("expected no pending override after revert fires")
	}
}

func TestCancelBeforeApplyClearsBothTimers(t *testing.T) {
	start := time.Unix(0, 0)
	c := New(persistedParams())
	c.ApplyTemp(tempParams(), start, 1)
	c.Cancel()

	for _, d := range []time.Duration{2 * time.Second, 62 * time.Second} {
		if ev, _ := c.Tick(start.Add(d)); ev != NoEvent {
			t.Fatalf("Tick(t=%v) = %v, want NoEvent after Cancel", d, ev)
		}
	}
	if c.Pending() {
		t.Fatal("expected Cancel to clear pending state")
	}
}

func TestApplyTempDiscardsPreviousPending(t *testing.T) {
	start := time.Unix(0, 0)
	c := New(persistedParams())
	c.ApplyTemp(tempParams(), start, 10)
	secondTemp := Params{FreqMHz: 915.0, BandwidthKHz: 250, SpreadingFactor: 8, CodingRate: 5}
	c.ApplyTemp(secondTemp, start, 1)

	ev, p := c.Tick(start.Add(2 * time.Second))
	if ev != Apply || p != secondTemp {
		t.Fatalf("Tick() = %v, %+v, want Apply with the second override", ev, p)
	}
}

package seen

import "testing"

func fp(b byte) Fingerprint {
	var f Fingerprint
	f[0] = b
	return f
}

func TestCheckAndMarkFirstCallFalse(t *testing.T) {
	tbl := New(4)
	if tbl.CheckAndMark(fp(1)) {
		t.Fatal("first call for a fresh fingerprint must return false")
	}
	if !tbl.CheckAndMark(fp(1)) {
		t.Fatal("second call for the same fingerprint must return true")
	}
}

func TestCheckAndMarkEvictsOldest(t *testing.T) {
	tbl := New(2)
	tbl.CheckAndMark(fp(1))
	tbl.CheckAndMark(fp(2))
	// Table full; inserting a third distinct fingerprint evicts fp(1).
	tbl.CheckAndMark(fp(3))

	// Probe fp(2) first: a miss on fp(1) inserts it and evicts fp(2).
	if !tbl.CheckAndMark(fp(2)) {
		t.Fatal("fp(2) should still be present")
	}
	if tbl.CheckAndMark(fp(1)) {
		t.Fatal("fp(1) should have been evicted and treated as new")
	}
}

func TestCheckAndMarkCapacityInvariant(t *testing.T) {
	const capacity = 8
	tbl := New(capacity)

	for i := 0; i < capacity; i++ {
		if tbl.CheckAndMark(fp(byte(i))) {
			t.Fatalf("fingerprint %d should be new", i)
		}
	}
	// All capacity distinct fingerprints inserted after fp(0) remain
	// present, so fp(0) is now evicted on the next insert.
	if tbl.CheckAndMark(fp(100)) {
		t.Fatal("fp(100) should be new")
	}
	if tbl.CheckAndMark(fp(0)) {
		t.Fatal("fp(0) should have been evicted by the capacity-th new insert")
	}
}

func TestLenAndCapacity(t *testing.T) {
	tbl := New(3)
	if tbl.Capacity() != 3 {
		t.Fatalf("Capacity() = %d, want 3", tbl.Capacity())
	}
	tbl.CheckAndMark(fp(1))
	tbl.CheckAndMark(fp(2))
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity <= 0")
		}
	}()
	New(0)
}

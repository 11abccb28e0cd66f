// Package seen implements a fixed-capacity, insertion-order-evicted set
// of recent packet fingerprints (spec.md §2 component C2, §4.1, §8).
//
// Two independent instances exist in a running core: the mesh ingress
// table (owned by the router) and the bridge's own table (spec.md §5:
// "The bridge SeenTable and the mesh SeenTable are distinct instances").
package seen

import "sync"

// DefaultCapacity is a capacity that comfortably holds a few minutes of
// flood traffic on a constrained device (spec.md §4.1: "a small ring of
// a few hundred entries suffices").
const DefaultCapacity = 256

// Fingerprint is the content hash of a packet's immutable fields
// (spec.md §3: SeenEntry).
type Fingerprint = [8]byte

// Table is a fixed-capacity, FIFO-evicted set of fingerprints.
//
// CheckAndMark is O(1) amortized: membership is a map lookup, eviction
// pops the oldest entry from a ring of indices. Safe for concurrent use,
// though in the core's single-threaded CoreLoop model the lock is
// uncontended (spec.md §5: "mutated only from the main thread").
type Table struct {
	mu       sync.Mutex
	capacity int
	ring     []Fingerprint // ring[i] is valid iff present[ring[i]] points back to i
	present  map[Fingerprint]int
	head     int // next slot to write
	size     int
}

// New returns a Table with the given fixed capacity. capacity <= 0
// panics, since a zero-capacity dedupe table is a configuration error
// the caller must catch before constructing the core (unlike
// NeighbourTable, SeenTable has no "0 disables the feature" mode in the
// spec).
func New(capacity int) *Table {
	if capacity <= 0 {
		panic("seen: capacity must be positive")
	}
	return &Table{
		capacity: capacity,
		ring:     make([]Fingerprint, capacity),
		present:  make(map[Fingerprint]int, capacity),
	}
}

// CheckAndMark returns whether fp was already present. If not, it
// inserts fp, evicting the oldest entry if the table is full
// (spec.md §4.1, §8: "the first call for any x returns false; every
// subsequent call with the same x returns true until at least capacity
// distinct fingerprints have been inserted after it").
func (t *Table) CheckAndMark(fp Fingerprint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.present[fp]; ok {
		return true
	}

	if t.size == t.capacity {
		oldest := t.ring[t.head]
		delete(t.present, oldest)
	} else {
		t.size++
	}

	t.ring[t.head] = fp
	t.present[fp] = t.head
	t.head = (t.head + 1) % t.capacity

	return false
}

// Len returns the number of fingerprints currently held.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// Capacity returns the table's fixed capacity.
func (t *Table) Capacity() int {
	return t.capacity
}

// Package neighbour implements the fixed-capacity table of directly
// heard identities (spec.md §2 component C3, §4.2, §8).
package neighbour

import (
	"sort"
	"sync"
	"time"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// Order selects the sort order for Table.ExportSorted (spec.md §4.2).
type Order uint8

// Orders supported by ExportSorted (spec.md §4.2: "four orderings
// {newest-first, oldest-first, strongest-first, weakest-first}").
const (
	OrderNewestFirst Order = iota
	OrderOldestFirst
	OrderStrongestFirst
	OrderWeakestFirst
)

// Record is a directly-heard neighbour (spec.md §3: NeighbourRecord).
type Record struct {
	Identity        meshcore.Identity
	AdvertTimestamp uint32 // sender-supplied timestamp from the advert
	HeardWallTime   time.Time
	HeardMonoMS     int64
	SNRQ2           int8 // SNR x4, signed
}

// empty reports whether r is an unused slot (spec.md §3: "Empty slot ≡
// first four bytes of public key all zero").
func (r *Record) empty() bool {
	return r.Identity.PubKey[0] == 0 && r.Identity.PubKey[1] == 0 &&
		r.Identity.PubKey[2] == 0 && r.Identity.PubKey[3] == 0
}

// Table is a fixed-capacity, LRU-by-heard-time neighbour table
// (spec.md §4.2). A capacity of 0 disables the feature entirely —
// callers should simply not construct a Table in that configuration
// (spec.md §4.2: "MAX_NEIGHBOURS is a compile-time constant (0 disables
// the feature — the table is absent)").
type Table struct {
	mu       sync.Mutex
	slots    []Record
	capacity int
}

// New returns a Table with the given fixed capacity. capacity must be
// positive; callers implementing the "0 disables the feature" mode
// should not construct a Table at all.
func New(capacity int) *Table {
	if capacity <= 0 {
		panic("neighbour: capacity must be positive")
	}
	return &Table{slots: make([]Record, capacity), capacity: capacity}
}

// Capacity returns the table's fixed capacity.
func (t *Table) Capacity() int { return t.capacity }

// Put updates the record matching id, or — if none exists — overwrites
// the slot with the smallest HeardWallTime (spec.md §4.2: "put(id,
// advert_ts, snr) updates an existing entry matching id; otherwise it
// overwrites the slot with the smallest heard_wall_time").
func (t *Table) Put(id meshcore.Identity, advertTS uint32, snrQ2 int8, heardWall time.Time, heardMonoMS int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx := t.indexOf(id); idx >= 0 {
		t.slots[idx] = Record{
			Identity:        id,
			AdvertTimestamp: advertTS,
			HeardWallTime:   heardWall,
			HeardMonoMS:     heardMonoMS,
			SNRQ2:           snrQ2,
		}
		return
	}

	victim := 0
	victimTime := t.slots[0].HeardWallTime
	for i := 1; i < t.capacity; i++ {
		if t.slots[i].empty() {
			victim = i
			victimTime = time.Time{}
			break
		}
		if t.slots[i].HeardWallTime.Before(victimTime) {
			victim = i
			victimTime = t.slots[i].HeardWallTime
		}
	}
	t.slots[victim] = Record{
		Identity:        id,
		AdvertTimestamp: advertTS,
		HeardWallTime:   heardWall,
		HeardMonoMS:     heardMonoMS,
		SNRQ2:           snrQ2,
	}
}

// indexOf returns the slot index matching id, or -1. Caller must hold t.mu.
func (t *Table) indexOf(id meshcore.Identity) int {
	for i := range t.slots {
		if !t.slots[i].empty() && t.slots[i].Identity.Equal(id) {
			return i
		}
	}
	return -1
}

// Get returns the record for id, if present (spec.md §8: "put(id, t,
// snr) into NeighbourTable: immediately afterwards get(id) returns a
// record with the same advert_timestamp").
func (t *Table) Get(id meshcore.Identity) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx := t.indexOf(id); idx >= 0 {
		return t.slots[idx], true
	}
	return Record{}, false
}

// RemoveByPrefix zeroes every slot whose public key starts with prefix
// (spec.md §4.2: "remove_by_prefix(bytes, len) zeroes every slot whose
// public key starts with bytes").
func (t *Table) RemoveByPrefix(prefix []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for i := range t.slots {
		if t.slots[i].empty() {
			continue
		}
		if t.slots[i].Identity.HasPrefix(prefix) {
			t.slots[i] = Record{}
			removed++
		}
	}
	return removed
}

// ExportEntry is one row of a Table.ExportSorted result (spec.md §4.2:
// "iterable of (prefix, secs_ago, snr_q2)").
type ExportEntry struct {
	Identity meshcore.Identity
	SecsAgo  uint32
	SNRQ2    int8
}

// ExportSorted returns up to limit entries, starting at offset, sorted
// by order, with identity prefixes truncated to prefixLen bytes
// (spec.md §4.2). prefixLen is clamped to meshcore.PubKeySize
// (spec.md §8: "prefix_len > PUB_KEY_SIZE in GetNeighbours is clamped").
func (t *Table) ExportSorted(order Order, limit, offset, prefixLen int, now time.Time) []ExportEntry {
	t.mu.Lock()
	live := make([]Record, 0, t.capacity)
	for i := range t.slots {
		if !t.slots[i].empty() {
			live = append(live, t.slots[i])
		}
	}
	t.mu.Unlock()

	if prefixLen > meshcore.PubKeySize {
		prefixLen = meshcore.PubKeySize
	}
	if prefixLen < 0 {
		prefixLen = 0
	}

	sort.SliceStable(live, func(i, j int) bool {
		switch order {
		case OrderOldestFirst:
			return live[i].HeardWallTime.Before(live[j].HeardWallTime)
		case OrderStrongestFirst:
			return live[i].SNRQ2 > live[j].SNRQ2
		case OrderWeakestFirst:
			return live[i].SNRQ2 < live[j].SNRQ2
		default: // OrderNewestFirst
			return live[i].HeardWallTime.After(live[j].HeardWallTime)
		}
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(live) {
		return nil
	}
	live = live[offset:]
	if limit >= 0 && limit < len(live) {
		live = live[:limit]
	}

	out := make([]ExportEntry, len(live))
	for i, r := range live {
		secsAgo := uint32(0)
		if now.After(r.HeardWallTime) {
			secsAgo = uint32(now.Sub(r.HeardWallTime).Seconds())
		}
		var id meshcore.Identity
		copy(id.PubKey[:prefixLen], r.Identity.PubKey[:prefixLen])
		out[i] = ExportEntry{Identity: id, SecsAgo: secsAgo, SNRQ2: r.SNRQ2}
	}
	return out
}

// Len returns the number of live (non-empty) slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.slots {
		if !t.slots[i].empty() {
			n++
		}
	}
	return n
}

package neighbour

import (
	"testing"
	"time"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

func mkID(b byte) meshcore.Identity {
	var id meshcore.Identity
	id.PubKey[0] = b
	id.PubKey[1] = 1 // keep non-zero prefix distinct from the "empty slot" sentinel
	return id
}

func TestPutThenGetRoundTrips(t *testing.T) {
	tbl := New(4)
	id := mkID(1)
	now := time.Unix(1000, 0)
	tbl.Put(id, 42, 10, now, 1000)

	rec, ok := tbl.Get(id)
	if !ok {
		t.Fatal("expected record to be present")
	}
	if rec.AdvertTimestamp != 42 {
		t.Fatalf("AdvertTimestamp = %d, want 42", rec.AdvertTimestamp)
	}
}

func TestPutNoDuplicateIdentities(t *testing.T) {
	tbl := New(4)
	id := mkID(1)
	tbl.Put(id, 1, 1, time.Unix(1, 0), 1)
	tbl.Put(id, 2, 2, time.Unix(2, 0), 2)

	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (no duplicate identities)", tbl.Len())
	}
	rec, _ := tbl.Get(id)
	if rec.AdvertTimestamp != 2 {
		t.Fatalf("expected second Put to update in place, got ts=%d", rec.AdvertTimestamp)
	}
}

func TestPutEvictsLeastRecentlyHeardWhenFull(t *testing.T) {
	tbl := New(2)
	tbl.Put(mkID(1), 1, 1, time.Unix(100, 0), 100)
	tbl.Put(mkID(2), 2, 2, time.Unix(200, 0), 200)
	// id(1) has the smallest HeardWallTime and should be evicted.
	tbl.Put(mkID(3), 3, 3, time.Unix(300, 0), 300)

	if _, ok := tbl.Get(mkID(1)); ok {
		t.Fatal("expected id(1) to be evicted")
	}
	if _, ok := tbl.Get(mkID(2)); !ok {
		t.Fatal("expected id(2) to remain")
	}
	if _, ok := tbl.Get(mkID(3)); !ok {
		t.Fatal("expected id(3) to be inserted")
	}
}

func TestRemoveByPrefix(t *testing.T) {
	tbl := New(4)
	id := mkID(7)
	tbl.Put(id, 1, 1, time.Unix(1, 0), 1)

	removed := tbl.RemoveByPrefix(id.PubKey[:2])
	if removed != 1 {
		t.Fatalf("RemoveByPrefix removed %d, want 1", removed)
	}
	if _, ok := tbl.Get(id); ok {
		t.Fatal("expected record removed")
	}
}

func TestExportSortedOrdersAndClampsPrefix(t *testing.T) {
	tbl := New(4)
	now := time.Unix(1000, 0)
	tbl.Put(mkID(1), 1, 10, now.Add(-30*time.Second), 0)
	tbl.Put(mkID(2), 2, 20, now.Add(-10*time.Second), 0)

	entries := tbl.ExportSorted(OrderNewestFirst, 10, 0, 9999, now)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SNRQ2 != 20 {
		t.Fatalf("expected newest-first to put the most recently heard entry first, got snr=%d", entries[0].SNRQ2)
	}

	strongest := tbl.ExportSorted(OrderStrongestFirst, 10, 0, meshcore.PubKeySize+50, now)
	if strongest[0].SNRQ2 != 20 {
		t.Fatalf("expected strongest-first, got snr=%d", strongest[0].SNRQ2)
	}
}

func TestExportSortedPaging(t *testing.T) {
	tbl := New(4)
	now := time.Unix(1000, 0)
	tbl.Put(mkID(1), 1, 1, now.Add(-1*time.Second), 0)
	tbl.Put(mkID(2), 2, 2, now.Add(-2*time.Second), 0)
	tbl.Put(mkID(3), 3, 3, now.Add(-3*time.Second), 0)

	page := tbl.ExportSorted(OrderOldestFirst, 1, 1, 4, now)
	if len(page) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(page))
	}
}

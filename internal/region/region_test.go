package region

import "testing"

func TestNewMapHasWildcardRoot(t *testing.T) {
	m := NewMap()
	root, ok := m.FindByID(RootID)
	if !ok || root.Name != "*" {
		t.Fatalf("expected wildcard root, got %+v, %v", root, ok)
	}
}

func TestPutPreservesIDOnRePut(t *testing.T) {
	m := NewMap()
	e1, ok := m.Put("alpha", RootID, nil)
	if !ok {
		t.Fatal("expected Put to succeed")
	}
	e2, ok := m.Put("alpha", RootID, nil)
	if !ok || e2.ID != e1.ID {
		t.Fatalf("expected stable ID across re-Put, got %d then %d", e1.ID, e2.ID)
	}
}

func TestRemoveFailsWithChildren(t *testing.T) {
	m := NewMap()
	parent, _ := m.Put("parent", RootID, nil)
	m.Put("child", parent.ID, nil)

	if m.Remove(parent.ID) {
		t.Fatal("expected Remove to fail when entry has children")
	}
	if _, ok := m.FindByID(parent.ID); !ok {
		t.Fatal("expected map unchanged after failed Remove")
	}
}

func TestRemoveSucceedsLeaf(t *testing.T) {
	m := NewMap()
	e, _ := m.Put("leaf", RootID, nil)
	if !m.Remove(e.ID) {
		t.Fatal("expected Remove to succeed on a leaf")
	}
}

func TestExportNamesMaskAndInvert(t *testing.T) {
	m := NewMap()
	allow, _ := m.Put("allow-flood", RootID, nil)
	m.SetFlags(allow.ID, 0)
	deny, _ := m.Put("deny-flood", RootID, nil)
	m.SetFlags(deny.ID, FlagDenyFlood)

	allowed := m.ExportNames(FlagDenyFlood, false)
	if allowed != "allow-flood" {
		t.Fatalf("ExportNames(mask, false) = %q, want %q", allowed, "allow-flood")
	}

	denied := m.ExportNames(FlagDenyFlood, true)
	if denied != "deny-flood" {
		t.Fatalf("ExportNames(mask, true) = %q, want %q", denied, "deny-flood")
	}
}

func TestReloadRoundTrip(t *testing.T) {
	live := NewMap()
	live.Put("old", RootID, nil)

	r := NewReloader(live)
	r.FeedLine("region-a")
	r.FeedLine(" child-a")
	r.FeedLine("region-b F")
	committed := r.FeedLine("")
	if !committed {
		t.Fatal("expected empty line to commit")
	}

	if _, ok := live.FindByName("old"); !ok {
		t.Fatal("expected an entry not named in the reload to carry over from the live map")
	}
	a, ok := live.FindByName("region-a")
	if !ok {
		t.Fatal("expected region-a present after commit")
	}
	child, ok := live.FindByName("child-a")
	if !ok || child.ParentID != a.ID {
		t.Fatalf("expected child-a to be a child of region-a, got %+v", child)
	}
	b, ok := live.FindByName("region-b")
	if !ok || b.DenyFlood() {
		t.Fatal("expected region-b to have DENY_FLOOD cleared (F flag)")
	}
	if !a.DenyFlood() {
		t.Fatal("expected region-a to deny flood by default (no F flag)")
	}
}

func TestReloadMalformedLineSkipped(t *testing.T) {
	live := NewMap()
	r := NewReloader(live)
	// depth beyond MaxDepth is malformed and skipped.
	deep := ""
	for i := 0; i <= MaxDepth+1; i++ {
		deep += " "
	}
	deep += "toodeep"
	if committed := r.FeedLine(deep); committed {
		t.Fatal("malformed line must not commit")
	}
	r.FeedLine("ok-region")
	r.FeedLine("")

	if _, ok := live.FindByName("toodeep"); ok {
		t.Fatal("expected malformed entry to be skipped")
	}
	if _, ok := live.FindByName("ok-region"); !ok {
		t.Fatal("expected well-formed entry to survive the reload")
	}
}

func TestMapEqualRoundTrip(t *testing.T) {
	live := NewMap()
	live.Put("x", RootID, nil)

	r := NewReloader(live)
	r.FeedLine("x F")
	r.FeedLine("")

	other := NewMap()
	other.Put("x", RootID, nil)
	if !live.Equal(other) {
		t.Fatal("expected round-tripped map to equal the reconstructed map")
	}
}

func TestMatchWildcardWhenNoTransportCodes(t *testing.T) {
	m := NewMap()
	keys := NewKeyStore()
	e, ok := m.Match(keys, false, 0, 0)
	if !ok || e.ID != RootID {
		t.Fatalf("expected wildcard match, got %+v, %v", e, ok)
	}
}

func TestMatchUnknownTransportCodeFails(t *testing.T) {
	m := NewMap()
	keys := NewKeyStore()
	_, ok := m.Match(keys, true, 42, 0)
	if ok {
		t.Fatal("expected unknown transport code to fail to resolve")
	}
}

func TestMatchResolvesDeniedRegion(t *testing.T) {
	m := NewMap()
	keys := NewKeyStore()
	deny, _ := m.Put("restricted", RootID, nil)
	m.SetFlags(deny.ID, FlagDenyFlood)
	keys.Set(42, 0, deny.ID)

	e, ok := m.Match(keys, true, 42, 0)
	if !ok {
		t.Fatal("expected resolved match")
	}
	if !DeniesFlood(e, FlagDenyFlood) {
		t.Fatal("expected resolved region to deny flood")
	}
}

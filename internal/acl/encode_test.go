package acl

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := New(8)
	id1 := mkID(1)
	id2 := mkID(2)
	s.Put(id1, PermAdmin)
	s.Put(id2, PermGuest)
	s.SetOutPath(id2, []byte{0xAA, 0xBB, 0xCC}, 1000)
	s.UpdateLogin(id1, [32]byte{1, 2, 3}, PermAdmin, 42, 500, false)

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, ok := Decode(data, 8)
	if !ok {
		t.Fatal("Decode failed")
	}

	rec1, ok := decoded.GetByPubKey(id1)
	if !ok || rec1.Permissions != PermAdmin || rec1.LastTimestamp != 42 {
		t.Fatalf("id1 round-trip mismatch: %+v, %v", rec1, ok)
	}
	rec2, ok := decoded.GetByPubKey(id2)
	if !ok || rec2.OutPathUnknown || len(rec2.OutPath) != 3 {
		t.Fatalf("id2 round-trip mismatch: %+v, %v", rec2, ok)
	}
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	if _, ok := Decode([]byte{0x01}, 8); ok {
		t.Fatal("expected Decode to reject a truncated count prefix")
	}
	if _, ok := Decode([]byte{0x01, 0x00, 0x02, 0x03}, 8); ok {
		t.Fatal("expected Decode to reject a declared record with no body")
	}
}

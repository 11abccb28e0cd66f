package acl

import (
	"encoding/binary"
	"fmt"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// Encode serialises every non-tombstoned record to a flat little-endian
// byte layout for atomic persistence (spec.md §4.11: "ACL... serialise
// to a temporary file"). Record count is encoded as a uint16 prefix;
// each record follows with a variable-length out_path suffix.
func (s *Store) Encode() ([]byte, error) {
	records := s.All()
	if len(records) > 0xFFFF {
		return nil, fmt.Errorf("acl: %d records exceeds uint16 count prefix", len(records))
	}

	buf := make([]byte, 2, 2+len(records)*64)
	binary.LittleEndian.PutUint16(buf, uint16(len(records)))

	for _, r := range records {
		buf = append(buf, r.Identity.PubKey[:]...)
		buf = append(buf, r.Permissions)
		buf = append(buf, r.SharedSecret[:]...)
		buf = meshcore.PutU32LE(buf, r.LastTimestamp)
		var activity [8]byte
		binary.LittleEndian.PutUint64(activity[:], uint64(r.LastActivity))
		buf = append(buf, activity[:]...)
		if r.OutPathUnknown {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		if len(r.OutPath) > 0xFF {
			return nil, fmt.Errorf("acl: out_path length %d exceeds byte length prefix", len(r.OutPath))
		}
		buf = append(buf, byte(len(r.OutPath)))
		buf = append(buf, r.OutPath...)
	}
	return buf, nil
}

// Decode rebuilds a Store of the given capacity from bytes produced by
// Encode. Returns false on any malformed input rather than panicking
// (spec.md §9: no panics on bad input); a store that fails to decode
// should be treated as absent, per §6's forward-compatible defaulting
// on read.
func Decode(data []byte, capacity int) (*Store, bool) {
	if len(data) < 2 {
		return nil, false
	}
	count := int(binary.LittleEndian.Uint16(data))
	off := 2

	s := New(capacity)
	for i := 0; i < count; i++ {
		if len(data) < off+meshcore.PubKeySize+1+meshcore.SharedSecretSize+4+8+1+1 {
			return nil, false
		}
		var id meshcore.Identity
		copy(id.PubKey[:], data[off:off+meshcore.PubKeySize])
		off += meshcore.PubKeySize

		perms := data[off]
		off++

		var secret [meshcore.SharedSecretSize]byte
		copy(secret[:], data[off:off+meshcore.SharedSecretSize])
		off += meshcore.SharedSecretSize

		ts, ok := meshcore.ReadU32LE(data[off:])
		if !ok {
			return nil, false
		}
		off += 4

		activity := int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8

		pathUnknown := data[off] != 0
		off++

		pathLen := int(data[off])
		off++
		if len(data) < off+pathLen {
			return nil, false
		}
		var outPath []byte
		if pathLen > 0 {
			outPath = append([]byte(nil), data[off:off+pathLen]...)
		}
		off += pathLen

		if len(s.records) >= capacity {
			continue
		}
		s.records = append(s.records, Record{
			Identity:       id,
			Permissions:    perms,
			SharedSecret:   secret,
			LastTimestamp:  ts,
			LastActivity:   activity,
			OutPath:        outPath,
			OutPathUnknown: pathUnknown,
		})
		s.index[id] = len(s.records) - 1
	}
	return s, true
}

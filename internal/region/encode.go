package region

import (
	"encoding/binary"
	"fmt"
)

// Encode serialises every entry except the implicit wildcard root to a
// flat little-endian byte layout for atomic persistence (spec.md §4.11:
// "region map... serialise to a temporary file"). NewMap always
// reconstructs the root, so it is never written out.
func (m *Map) Encode() ([]byte, error) {
	ids := m.sortedIDs()
	n := 0
	for _, id := range ids {
		if id != RootID {
			n++
		}
	}
	if n > 0xFFFF {
		return nil, fmt.Errorf("region: %d entries exceeds uint16 count prefix", n)
	}

	buf := make([]byte, 6, 6+n*(2+2+1+1+MaxNameLen))
	binary.LittleEndian.PutUint16(buf, uint16(n))
	binary.LittleEndian.PutUint16(buf[2:], m.nextID)
	binary.LittleEndian.PutUint16(buf[4:], m.home)

	for _, id := range ids {
		if id == RootID {
			continue
		}
		e := m.entries[id]
		var idBuf, parentBuf [2]byte
		binary.LittleEndian.PutUint16(idBuf[:], e.ID)
		binary.LittleEndian.PutUint16(parentBuf[:], e.ParentID)
		buf = append(buf, idBuf[:]...)
		buf = append(buf, parentBuf[:]...)
		buf = append(buf, e.Flags)
		buf = append(buf, byte(len(e.Name)))
		buf = append(buf, e.Name...)
	}
	return buf, nil
}

// Decode rebuilds a Map from bytes produced by Encode. Returns false on
// any malformed input (spec.md §9: no panics on bad input).
func Decode(data []byte) (*Map, bool) {
	if len(data) < 6 {
		return nil, false
	}
	count := int(binary.LittleEndian.Uint16(data))
	nextID := binary.LittleEndian.Uint16(data[2:])
	home := binary.LittleEndian.Uint16(data[4:])
	off := 6

	m := NewMap()
	for i := 0; i < count; i++ {
		if len(data) < off+6 {
			return nil, false
		}
		id := binary.LittleEndian.Uint16(data[off:])
		parentID := binary.LittleEndian.Uint16(data[off+2:])
		flags := data[off+4]
		nameLen := int(data[off+5])
		off += 6
		if nameLen > MaxNameLen || len(data) < off+nameLen {
			return nil, false
		}
		name := string(data[off : off+nameLen])
		off += nameLen

		m.entries[id] = Entry{ID: id, Name: name, ParentID: parentID, Flags: flags}
	}

	if _, ok := m.entries[home]; ok {
		m.home = home
	}
	if nextID > m.nextID {
		m.nextID = nextID
	}
	return m, true
}

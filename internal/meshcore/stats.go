package meshcore

// RepeaterStatsSize is the fixed wire size of RepeaterStats in bytes
// (spec.md §6).
const RepeaterStatsSize = 44

// RepeaterStats is the fixed, little-endian, packed wire layout reported
// in reply to GetStatus (spec.md §6).
type RepeaterStats struct {
	BattMV             uint16
	TxQueueLen         uint16
	NoiseFloor         int16
	LastRSSI           int16
	NPktsRecv          uint32
	NPktsSent          uint32
	TotalAirTimeSecs   uint32
	TotalUpTimeSecs    uint32
	NSentFlood         uint32
	NSentDirect        uint32
	NRecvFlood         uint32
	NRecvDirect        uint32
	ErrEvents          uint16
	LastSNRQ2          int16
	NDirectDups        uint16
	NFloodDups         uint16
	TotalRxAirTimeSecs uint32
	NRecvErrors        uint32
}

// Encode serializes s into its 44-byte little-endian wire form
// (spec.md §6: "RepeaterStats wire layout").
func (s RepeaterStats) Encode() []byte {
	buf := make([]byte, 0, RepeaterStatsSize)
	buf = PutU16LE(buf, s.BattMV)
	buf = PutU16LE(buf, s.TxQueueLen)
	buf = PutU16LE(buf, uint16(s.NoiseFloor))
	buf = PutU16LE(buf, uint16(s.LastRSSI))
	buf = PutU32LE(buf, s.NPktsRecv)
	buf = PutU32LE(buf, s.NPktsSent)
	buf = PutU32LE(buf, s.TotalAirTimeSecs)
	buf = PutU32LE(buf, s.TotalUpTimeSecs)
	buf = PutU32LE(buf, s.NSentFlood)
	buf = PutU32LE(buf, s.NSentDirect)
	buf = PutU32LE(buf, s.NRecvFlood)
	buf = PutU32LE(buf, s.NRecvDirect)
	buf = PutU16LE(buf, s.ErrEvents)
	buf = PutU16LE(buf, uint16(s.LastSNRQ2))
	buf = PutU16LE(buf, s.NDirectDups)
	buf = PutU16LE(buf, s.NFloodDups)
	buf = PutU32LE(buf, s.TotalRxAirTimeSecs)
	buf = PutU32LE(buf, s.NRecvErrors)
	return buf
}

// BanCommandMagic is the 3-byte magic prefix identifying an in-band ban
// command frame on the backhaul (spec.md §6: "Ban command frame").
var BanCommandMagic = [3]byte{0xBA, 0x4E, 0xED}

// BanCommandSize is the total frame size of a ban command: magic (3) +
// 4-byte target prefix (spec.md §4.10, §6).
const BanCommandSize = 7

// BanPrefixSize is the length of the public-key prefix carried by a ban
// command and stored in the ban list (spec.md GLOSSARY: "Ban list").
const BanPrefixSize = 4

// ParseBanCommand reports whether b is exactly a ban command frame and,
// if so, returns the 4-byte target prefix (spec.md §6).
func ParseBanCommand(b []byte) (prefix [BanPrefixSize]byte, ok bool) {
	if len(b) != BanCommandSize {
		return prefix, false
	}
	if b[0] != BanCommandMagic[0] || b[1] != BanCommandMagic[1] || b[2] != BanCommandMagic[2] {
		return prefix, false
	}
	copy(prefix[:], b[3:])
	return prefix, true
}

// EncodeBanCommand serializes a ban command frame for the given target
// prefix (spec.md §4.10: "ban(prefix): ... publish one ban command
// carrying that prefix").
func EncodeBanCommand(prefix [BanPrefixSize]byte) []byte {
	buf := make([]byte, 0, BanCommandSize)
	buf = append(buf, BanCommandMagic[:]...)
	buf = append(buf, prefix[:]...)
	return buf
}

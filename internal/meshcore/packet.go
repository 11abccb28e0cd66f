package meshcore

import "encoding/binary"

// PayloadType is the upper-byte payload type code carried by every packet
// (spec.md §6, bit-exact).
type PayloadType uint8

// Payload type codes (spec.md §6).
const (
	PayloadReq        PayloadType = 0x00
	PayloadResponse   PayloadType = 0x01
	PayloadTxtMsg     PayloadType = 0x02
	PayloadAck        PayloadType = 0x03
	PayloadAdvert     PayloadType = 0x04
	PayloadGrpTxt     PayloadType = 0x05
	PayloadGrpData    PayloadType = 0x06
	PayloadAnonReq    PayloadType = 0x07
	PayloadPath       PayloadType = 0x08
	PayloadTrace      PayloadType = 0x09
	PayloadMultipart  PayloadType = 0x0A
	PayloadControl    PayloadType = 0x0B
	PayloadRawCustom  PayloadType = 0x0F
)

// String returns a human-readable payload type name, used for metrics
// labels and logging.
func (pt PayloadType) String() string {
	switch pt {
	case PayloadReq:
		return "req"
	case PayloadResponse:
		return "response"
	case PayloadTxtMsg:
		return "txt_msg"
	case PayloadAck:
		return "ack"
	case PayloadAdvert:
		return "advert"
	case PayloadGrpTxt:
		return "grp_txt"
	case PayloadGrpData:
		return "grp_data"
	case PayloadAnonReq:
		return "anon_req"
	case PayloadPath:
		return "path"
	case PayloadTrace:
		return "trace"
	case PayloadMultipart:
		return "multipart"
	case PayloadControl:
		return "control"
	case PayloadRawCustom:
		return "raw_custom"
	default:
		return "unknown"
	}
}

// RouteType distinguishes how a packet is to be delivered across the
// mesh (spec.md §3).
type RouteType uint8

// Route types (spec.md §3, §6).
const (
	RouteDirect RouteType = iota
	RouteFlood
	RouteTransportFlood
	RouteTransportDirect
	RouteControl
)

// String returns a human-readable route type name.
func (rt RouteType) String() string {
	switch rt {
	case RouteDirect:
		return "Direct"
	case RouteFlood:
		return "Flood"
	case RouteTransportFlood:
		return "TransportFlood"
	case RouteTransportDirect:
		return "TransportDirect"
	case RouteControl:
		return "Control"
	default:
		return "Unknown"
	}
}

// IsFlood reports whether rt is one of the two flood-style route types.
func (rt RouteType) IsFlood() bool {
	return rt == RouteFlood || rt == RouteTransportFlood
}

// HasTransportCodes reports whether rt scopes delivery by transport
// codes (spec.md GLOSSARY: "Transport flood/direct").
func (rt RouteType) HasTransportCodes() bool {
	return rt == RouteTransportFlood || rt == RouteTransportDirect
}

// SignalQuality is the measured signal quality stamped on receipt
// (spec.md §3: "measured signal quality (SNR, RSSI) stamped on
// receipt").
type SignalQuality struct {
	SNR  float32 // dB
	RSSI float32 // dBm
}

// TransportCodes is the optional pair of 16-bit values that scope a
// transport flood/direct packet to a region (spec.md §3, §4.5).
type TransportCodes struct {
	Code1 uint16
	Code2 uint16
	Set   bool
}

// Packet is an on-air unit (spec.md §3).
type Packet struct {
	PayloadType PayloadType
	Route       RouteType
	Path        []byte // 0..MaxPathSize
	Transport   TransportCodes
	Payload     []byte // 0..MaxPayloadSize
	Quality     SignalQuality

	// RegionDenied caches the result of RegionMap.Match for flood-class
	// packets so it is computed at most once per packet (spec.md §4.6
	// step 2: "cache the result on the packet").
	RegionDenied    bool
	RegionResolved  bool
}

// PathLen returns the current path length in bytes.
func (p *Packet) PathLen() int {
	return len(p.Path)
}

// Fingerprint computes the dedupe fingerprint over the packet's
// immutable fields: payload type, route flags that affect delivery, and
// payload bytes. Path is excluded because flood packets with different
// already-traversed paths must still dedupe against each other
// (spec.md §4.1).
func (p *Packet) Fingerprint() [8]byte {
	header := []byte{byte(p.PayloadType), byte(p.Route)}
	return Fingerprint(header, p.Payload)
}

// AirtimeEstimator estimates on-air transmission time in milliseconds
// for a packet of the given size. Real radios
// (LoRa) compute this from spreading factor/bandwidth/coding rate; the
// core only needs the *interface* (spec.md §1 scope note: "we assume an
// API that delivers raw frames ... and accepts frames for transmission"),
// so this type exists purely to decouple §4.6's formulas from the radio
// driver.
type AirtimeEstimator interface {
	EstAirtimeMillis(sizeBytes int) float64
}

// ReadU32LE reads a little-endian uint32 from the front of b.
// Returns false if b is too short (spec.md §9: no panics on bad input).
func ReadU32LE(b []byte) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// PutU32LE appends a little-endian uint32 to buf.
func PutU32LE(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// ReadU16LE reads a little-endian uint16 from the front of b.
func ReadU16LE(b []byte) (uint16, bool) {
	if len(b) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

// PutU16LE appends a little-endian uint16 to buf.
func PutU16LE(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

package meshcore

// EncodePacket serializes a packet for the backhaul transport (spec.md
// §4.10: "compute the fingerprint... mark and publish the serialised
// packet"). Measured signal quality is a local receive-time artifact,
// not part of the on-air frame, so it is not serialized (spec.md §3
// lists SignalQuality as "stamped on receipt").
func EncodePacket(p *Packet) []byte {
	buf := make([]byte, 0, 8+len(p.Path)+len(p.Payload))
	buf = append(buf, byte(p.PayloadType), byte(p.Route))
	if p.Transport.Set {
		buf = append(buf, 1)
		buf = PutU16LE(buf, p.Transport.Code1)
		buf = PutU16LE(buf, p.Transport.Code2)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, byte(len(p.Path)))
	buf = append(buf, p.Path...)
	buf = append(buf, byte(len(p.Payload)>>8), byte(len(p.Payload)))
	buf = append(buf, p.Payload...)
	return buf
}

// DecodePacket parses the wire form EncodePacket produces. Returns
// false on any malformed input rather than panicking (spec.md §9: "no
// path in the core may abort on bad input"; §7: MalformedPacket "free
// the packet buffer; bump error counter").
func DecodePacket(b []byte) (*Packet, bool) {
	if len(b) < 3 {
		return nil, false
	}
	p := &Packet{PayloadType: PayloadType(b[0]), Route: RouteType(b[1])}
	hasTransport := b[2] != 0
	off := 3
	if hasTransport {
		if len(b) < off+4 {
			return nil, false
		}
		code1, _ := ReadU16LE(b[off:])
		code2, _ := ReadU16LE(b[off+2:])
		p.Transport = TransportCodes{Code1: code1, Code2: code2, Set: true}
		off += 4
	}
	if len(b) < off+1 {
		return nil, false
	}
	pathLen := int(b[off])
	off++
	if pathLen > MaxPathSize || len(b) < off+pathLen {
		return nil, false
	}
	p.Path = append([]byte(nil), b[off:off+pathLen]...)
	off += pathLen

	if len(b) < off+2 {
		return nil, false
	}
	payloadLen := int(b[off])<<8 | int(b[off+1])
	off += 2
	if payloadLen > MaxPayloadSize || len(b) < off+payloadLen {
		return nil, false
	}
	p.Payload = append([]byte(nil), b[off:off+payloadLen]...)
	off += payloadLen

	return p, true
}

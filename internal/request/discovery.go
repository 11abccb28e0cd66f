package request

import (
	"time"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// nodeDiscoverReqNibble is the upper nibble identifying a
// NODE_DISCOVER_REQ CONTROL packet (spec.md §4.7: "CONTROL packets with
// upper nibble NODE_DISCOVER_REQ (0x80)").
const nodeDiscoverReqNibble = 0x8

// nodeDiscoverRespFamily is the upper nibble used in the response's
// resp_type|role byte (spec.md §4.7: "emit a zero-hop NODE_DISCOVER_RESP
// {resp_type|role(1), ...}"). The response shares the request's family
// nibble; role occupies the low nibble.
const nodeDiscoverRespFamily = 0x8

// HandleDiscovery implements the CONTROL/NODE_DISCOVER_REQ path
// (spec.md §4.7). inboundSNRQ2 is the measured SNR of the request
// itself, echoed back so the requester can judge link quality.
func (h *Handler) HandleDiscovery(payload []byte, inboundSNRQ2 int8, now time.Time) (*Reply, bool) {
	if len(payload) < 6 {
		return nil, false
	}
	if payload[0]>>4 != nodeDiscoverReqNibble {
		return nil, false
	}
	filterMask := payload[1]
	tag, _ := meshcore.ReadU32LE(payload[2:6])

	hasSince := len(payload) >= 10
	var since uint32
	if hasSince {
		since, _ = meshcore.ReadU32LE(payload[6:10])
	}

	if filterMask&h.cfg.NodeTypeBit == 0 {
		return nil, false
	}
	if !h.cfg.ForwardingEnabled {
		return nil, false
	}
	if h.discoverLim != nil && !h.discoverLim.Allow(now) {
		return nil, false
	}
	if hasSince && h.discoveryModTimestamp < since {
		return nil, false
	}

	keyLen := 6
	if h.cfg.FullPubKeyInDiscoveryResp {
		keyLen = meshcore.PubKeySize
	}

	buf := make([]byte, 0, 6+keyLen)
	buf = append(buf, byte(nodeDiscoverRespFamily<<4)|(h.cfg.Role&0x0F))
	buf = append(buf, byte(inboundSNRQ2))
	buf = meshcore.PutU32LE(buf, tag)
	buf = append(buf, h.self.PubKey[:keyLen]...)

	return &Reply{PayloadType: meshcore.PayloadControl, Payload: buf, Route: RouteZeroHop, WidenDelay: true}, true
}

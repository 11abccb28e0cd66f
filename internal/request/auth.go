package request

import (
	"time"

	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/neighbour"
)

// Authenticated REQ opcodes (spec.md §4.7).
const (
	OpGetStatus     byte = 0x01
	OpKeepAlive     byte = 0x02
	OpGetTelemetry  byte = 0x03
	OpGetAccessList byte = 0x05
	OpGetNeighbours byte = 0x06
	OpGetOwnerInfo  byte = 0x07
)

// accessListReplyCap bounds GetAccessList's reply so a full buffer
// truncates on an entry boundary rather than mid-entry (spec.md §8:
// "GetAccessList result truncates without corruption when the reply
// buffer is exactly full after an integral number of entries").
const accessListReplyCap = meshcore.MaxPayloadSize

// accessListEntrySize is 6-byte prefix + 1 permission byte (spec.md
// §4.7).
const accessListEntrySize = 7

// neighboursReplyCap bounds GetNeighbours' reply body (spec.md §4.7:
// "truncated if the result buffer (about 130 bytes) fills").
const neighboursReplyCap = 130

// HandleAuthRequest dispatches a REQ packet from a known client. sender
// must already be present in the ACL; unknown senders get no reply
// (spec.md §4.7 implies requests only come from clients created by
// login).
func (h *Handler) HandleAuthRequest(payload []byte, sender meshcore.Identity, arrivedViaFlood bool, now time.Time) (*Reply, bool) {
	if len(payload) < 5 {
		return nil, false
	}
	ts, _ := meshcore.ReadU32LE(payload[0:4])
	opcode := payload[4]
	rest := payload[5:]

	rec, ok := h.acl.GetByPubKey(sender)
	if !ok {
		return nil, false
	}
	if !h.acl.TryAdvanceTimestamp(sender, ts) {
		return nil, false // ReplayDetected (spec.md §7, §8)
	}

	switch opcode {
	case OpGetStatus:
		return h.handleGetStatus(ts, rec, arrivedViaFlood)
	case OpKeepAlive:
		h.acl.TouchActivity(sender, now.Unix())
		return nil, false // reply optional (spec.md §4.7); this core sends none
	case OpGetTelemetry:
		return h.handleGetTelemetry(ts, rec, arrivedViaFlood)
	case OpGetAccessList:
		if !acl.IsAdmin(rec.Permissions) {
			return nil, false
		}
		return h.handleGetAccessList(ts, rec, arrivedViaFlood)
	case OpGetNeighbours:
		return h.handleGetNeighbours(ts, rest, rec, arrivedViaFlood, now)
	case OpGetOwnerInfo:
		return h.handleGetOwnerInfo(ts, rec, arrivedViaFlood)
	default:
		return nil, false
	}
}

// replyRouteFor applies the general reply-routing rule using the
// client's cached out_path, since authenticated REQ replies rely on a
// previously learned path rather than a per-request supplied one
// (spec.md §4.7: "Otherwise send direct via the supplied reply path or
// the cached out_path").
func replyRouteFor(arrivedViaFlood bool, rec *acl.Record) (RouteDecision, []byte) {
	return decideRoute(arrivedViaFlood, nil, rec.OutPath, rec.OutPathUnknown)
}

func (h *Handler) handleGetStatus(ts uint32, rec *acl.Record, arrivedViaFlood bool) (*Reply, bool) {
	stats := h.stats.Stats()
	buf := make([]byte, 0, 4+meshcore.RepeaterStatsSize)
	buf = meshcore.PutU32LE(buf, ts)
	buf = append(buf, stats.Encode()...)

	route, path := replyRouteFor(arrivedViaFlood, rec)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

func (h *Handler) handleGetTelemetry(ts uint32, rec *acl.Record, arrivedViaFlood bool) (*Reply, bool) {
	blob := h.telemetry.Encode(rec.Permissions)
	buf := make([]byte, 0, 4+len(blob))
	buf = meshcore.PutU32LE(buf, ts)
	buf = append(buf, blob...)

	route, path := replyRouteFor(arrivedViaFlood, rec)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

func (h *Handler) handleGetAccessList(ts uint32, rec *acl.Record, arrivedViaFlood bool) (*Reply, bool) {
	records := h.acl.All()
	buf := make([]byte, 0, accessListReplyCap)
	buf = meshcore.PutU32LE(buf, ts)
	for _, r := range records {
		if len(buf)+accessListEntrySize > accessListReplyCap {
			break
		}
		buf = append(buf, r.Identity.PubKey[:6]...)
		buf = append(buf, r.Permissions)
	}

	route, path := replyRouteFor(arrivedViaFlood, rec)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

func (h *Handler) handleGetOwnerInfo(ts uint32, rec *acl.Record, arrivedViaFlood bool) (*Reply, bool) {
	text := fwString(h.cfg.FirmwareLevel) + "\n" + h.cfg.NodeName + "\n" + h.cfg.OwnerInfo
	buf := make([]byte, 0, 4+len(text))
	buf = meshcore.PutU32LE(buf, ts)
	buf = append(buf, []byte(text)...)

	route, path := replyRouteFor(arrivedViaFlood, rec)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

func fwString(level uint8) string {
	const digits = "0123456789"
	if level < 10 {
		return string(digits[level])
	}
	buf := []byte{}
	for level > 0 {
		buf = append([]byte{digits[level%10]}, buf...)
		level /= 10
	}
	return string(buf)
}

// handleGetNeighbours parses GetNeighbours' parameters and emits a
// paged, possibly-truncated export (spec.md §4.7).
func (h *Handler) handleGetNeighbours(ts uint32, rest []byte, rec *acl.Record, arrivedViaFlood bool, now time.Time) (*Reply, bool) {
	if len(rest) < 9 {
		return nil, false
	}
	count := int(rest[0])
	offset, _ := meshcore.ReadU16LE(rest[1:3])
	orderBy := rest[3]
	prefixLen := int(rest[4])
	// rest[5:9] is an opaque random_blob (spec.md §9 open question:
	// "treat it as opaque").

	if prefixLen > meshcore.PubKeySize {
		prefixLen = meshcore.PubKeySize
	}
	if prefixLen < 0 {
		prefixLen = 0
	}

	var entries []neighbour.ExportEntry
	total := 0
	if h.neighbours != nil {
		entries = h.neighbours.ExportSorted(neighbour.Order(orderBy), count, int(offset), prefixLen, now)
		total = h.neighbours.Len()
	}

	body := make([]byte, 0, neighboursReplyCap)
	returned := 0
	for _, e := range entries {
		entry := make([]byte, 0, prefixLen+5)
		entry = append(entry, e.Identity.PubKey[:prefixLen]...)
		entry = meshcore.PutU32LE(entry, e.SecsAgo)
		entry = append(entry, byte(e.SNRQ2))
		if len(body)+len(entry) > neighboursReplyCap {
			break
		}
		body = append(body, entry...)
		returned++
	}

	buf := make([]byte, 0, 8+len(body))
	buf = meshcore.PutU32LE(buf, ts)
	buf = meshcore.PutU16LE(buf, uint16(total))
	buf = meshcore.PutU16LE(buf, uint16(returned))
	buf = append(buf, body...)

	route, path := replyRouteFor(arrivedViaFlood, rec)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

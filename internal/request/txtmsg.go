package request

import (
	"time"

	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// TXT_MSG sub-types (spec.md §4.7: "the CLI sub-type"; "Sub-type
// PLAIN additionally triggers an ACK"). Exact numeric values are
// implementation-defined, matching SeenEntry's fingerprint and the
// bridge's source-hash extraction elsewhere in this core.
const (
	TxtSubtypePlain   byte = 0x00
	TxtSubtypeCLIData byte = 0x01
)

// TxtMsgResult bundles the CLI reply and, for PLAIN messages, the ACK
// that accompanies it (spec.md §4.7).
type TxtMsgResult struct {
	Reply *Reply
	Ack   *Reply
}

// HandleTxtMsg implements the admin CLI dispatch path. Only admin
// clients may invoke it (spec.md §4.7: "Text from admin clients").
func (h *Handler) HandleTxtMsg(payload []byte, sender meshcore.Identity, arrivedViaFlood bool, now time.Time) (TxtMsgResult, bool) {
	if len(payload) < 5 {
		return TxtMsgResult{}, false
	}
	ts, _ := meshcore.ReadU32LE(payload[0:4])
	subtype := payload[4]
	text := payload[5:]

	rec, ok := h.acl.GetByPubKey(sender)
	if !ok || !acl.IsAdmin(rec.Permissions) {
		return TxtMsgResult{}, false
	}

	route, path := replyRouteFor(arrivedViaFlood, rec)

	if ts <= rec.LastTimestamp {
		// Retry: empty reply, no state change (spec.md §4.7: "replay-
		// check... on retry return an empty reply").
		return TxtMsgResult{Reply: &Reply{PayloadType: meshcore.PayloadTxtMsg, Payload: nil, Route: route, Path: path}}, true
	}
	h.acl.TryAdvanceTimestamp(sender, ts)

	out := h.cli.Execute(string(text), now)

	unique := h.clk.UniqueWallSeconds()
	buf := make([]byte, 0, 4+len(out))
	buf = meshcore.PutU32LE(buf, unique)
	buf = append(buf, []byte(out)...)

	result := TxtMsgResult{Reply: &Reply{PayloadType: meshcore.PayloadTxtMsg, Payload: buf, Route: route, Path: path}}

	if subtype == TxtSubtypePlain {
		hash := meshcore.AckHash(ts, text, sender.PubKey)
		result.Ack = &Reply{PayloadType: meshcore.PayloadAck, Payload: hash[:], Route: route, Path: path}
	}
	return result, true
}

// HandlePath implements path learning: a known peer's PATH packet
// updates its cached out_path (spec.md §4.7: "On PATH from a known
// peer, copy the path into record.out_path and update last_activity.
// Do not echo a reciprocal path.").
func (h *Handler) HandlePath(path []byte, sender meshcore.Identity, now time.Time) bool {
	if _, ok := h.acl.GetByPubKey(sender); !ok {
		return false
	}
	h.acl.SetOutPath(sender, path, now.Unix())
	return true
}

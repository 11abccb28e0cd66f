package bridge

import "github.com/dantte-lp/meshrepd/internal/meshcore"

// ShouldBridgePacket reports whether pkt is eligible to cross onto the
// backhaul at all (spec.md §4.10: "exclude TRACE packets and zero-hop
// ADVERTs (they are only meaningful to direct RF neighbours)").
func ShouldBridgePacket(pkt *meshcore.Packet) bool {
	if pkt.PayloadType == meshcore.PayloadTrace {
		return false
	}
	if pkt.PayloadType == meshcore.PayloadAdvert && pkt.PathLen() == 0 {
		return false
	}
	return true
}

// HandleOutbound consults ShouldBridgePacket, then the bridge's own
// SeenTable to break echo loops, and publishes otherwise (spec.md
// §4.10: "Outbound"). published is false either when the packet is
// excluded, when it already arrived via the backhaul (looped is true in
// that case), or when the publish itself fails.
func (b *Bridge) HandleOutbound(pkt *meshcore.Packet) (published bool, looped bool) {
	if !ShouldBridgePacket(pkt) {
		return false, false
	}

	fp := pkt.Fingerprint()
	if b.seen.CheckAndMark(fp) {
		return false, true // loop break: this packet arrived via the backhaul
	}

	b.mu.Lock()
	transport := b.transport
	b.mu.Unlock()
	if transport == nil {
		return false, false
	}
	if err := transport.Publish(meshcore.EncodePacket(pkt)); err != nil {
		return false, false
	}
	return true, false
}

// HandleIncoming processes a message received from the backhaul
// (spec.md §4.10: "Inbound"). A ban command sets the deferred flag (if
// it targets this node) and is never injected. A malformed payload
// yields (nil, false). A banned source yields (nil, false). Otherwise
// the decoded packet is marked seen (so the bridge's own echo-break
// logic on the way back out does not re-publish it) and returned for
// injection into the local mesh.
func (b *Bridge) HandleIncoming(payload []byte) (*meshcore.Packet, bool) {
	if prefix, ok := meshcore.ParseBanCommand(payload); ok {
		if selfPrefixMatches(b.self, prefix) {
			b.mu.Lock()
			b.selfBanPending = true
			b.mu.Unlock()
		}
		return nil, false
	}

	pkt, ok := meshcore.DecodePacket(payload)
	if !ok {
		return nil, false // MalformedPacket (spec.md §7)
	}
	if b.bans.Denies(pkt) {
		return nil, false
	}

	b.seen.CheckAndMark(pkt.Fingerprint())
	return pkt, true
}

func selfPrefixMatches(self meshcore.Identity, prefix [meshcore.BanPrefixSize]byte) bool {
	return self.HasPrefix(prefix[:])
}

// ExecuteSelfBanIfPending runs the deferred self-ban, if one is armed
// (spec.md §4.10: "Self-ban execution... On the deferred flag the
// bridge stops, wipes mqtt_server/topic/user/pass in prefs, sets
// mqtt_banned = 1, and persists prefs"). Must be called from the main
// loop, never from the transport's own callback goroutine (spec.md §5).
func (b *Bridge) ExecuteSelfBanIfPending() bool {
	b.mu.Lock()
	pending := b.selfBanPending
	b.selfBanPending = false
	if pending {
		b.cfg.Server = ""
		b.cfg.Topic = ""
		b.cfg.User = ""
		b.cfg.Pass = ""
		b.banned = true
	}
	dirty := b.onPrefsDirty
	b.mu.Unlock()

	if !pending {
		return false
	}
	b.Stop()
	if dirty != nil {
		dirty()
	}
	return true
}

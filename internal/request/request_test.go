package request

import (
	"testing"
	"time"

	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/neighbour"
	"github.com/dantte-lp/meshrepd/internal/ratelimit"
	"github.com/dantte-lp/meshrepd/internal/region"
)

type stubStats struct{ s meshcore.RepeaterStats }

func (s stubStats) Stats() meshcore.RepeaterStats { return s.s }

type stubTelemetry struct{}

func (stubTelemetry) Encode(perms uint8) []byte {
	if acl.IsAdmin(perms) {
		return []byte{0xAA, 0xBB, 0xCC}
	}
	return []byte{0xAA}
}

func testIdentity(fill byte) meshcore.Identity {
	var id meshcore.Identity
	for i := range id.PubKey {
		id.PubKey[i] = fill + byte(i)
	}
	return id
}

func newTestHandler(t *testing.T) (*Handler, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	aclStore := acl.New(8)
	neighbours := neighbour.New(4)
	regions := region.NewMap()
	anonLim := ratelimit.New(2, time.Minute)
	discoverLim := ratelimit.New(2, time.Minute)
	self := testIdentity(0x90)
	var localPriv [32]byte
	for i := range localPriv {
		localPriv[i] = byte(0x40 + i)
	}
	cfg := Config{
		AdminPassword:     "password",
		GuestPassword:     "guest",
		NodeName:          "repeater-1",
		OwnerInfo:         "owner@example",
		FirmwareLevel:     2,
		ForwardingEnabled: true,
		NodeTypeBit:       0x01,
		Role:              0x03,
	}
	h := New(cfg, aclStore, neighbours, regions, anonLim, discoverLim, fc, fc, self, localPriv,
		stubStats{s: meshcore.RepeaterStats{TotalUpTimeSecs: 42}}, stubTelemetry{}, BasicExecutor{})
	return h, fc
}

func anonLoginPayload(ts uint32, password string) []byte {
	buf := meshcore.PutU32LE(nil, ts)
	buf = append(buf, 0) // discriminator: login
	buf = append(buf, []byte(password)...)
	buf = append(buf, 0) // null terminator
	return buf
}

func TestLoginThenStatusScenario(t *testing.T) {
	h, fc := newTestHandler(t)
	sender := testIdentity(0x10)

	reply, ok := h.HandleAnonRequest(anonLoginPayload(1000, "password"), sender, false, fc.WallNow())
	if !ok || reply == nil {
		t.Fatalf("login: ok=%v reply=%v", ok, reply)
	}
	if len(reply.Payload) != 13 {
		t.Fatalf("login reply length = %d, want 13", len(reply.Payload))
	}
	if reply.Payload[4] != 0 || reply.Payload[5] != 0 || reply.Payload[6] != 1 {
		t.Fatalf("login reply header = %v, want {RESP_LOGIN_OK=0, 0, is_admin=1, ...}", reply.Payload[4:7])
	}
	if reply.Payload[12] != 2 {
		t.Fatalf("login reply firmware_level = %d, want 2", reply.Payload[12])
	}

	statusPayload := append(meshcore.PutU32LE(nil, 1001), OpGetStatus)
	statusReply, ok := h.HandleAuthRequest(statusPayload, sender, false, fc.WallNow())
	if !ok || statusReply == nil {
		t.Fatalf("status: ok=%v reply=%v", ok, statusReply)
	}
	if len(statusReply.Payload) != 4+meshcore.RepeaterStatsSize {
		t.Fatalf("status reply length = %d, want %d", len(statusReply.Payload), 4+meshcore.RepeaterStatsSize)
	}
	echoed, _ := meshcore.ReadU32LE(statusReply.Payload[0:4])
	if echoed != 1001 {
		t.Fatalf("echoed ts = %d, want 1001", echoed)
	}
}

func TestReplayRejectionScenario(t *testing.T) {
	h, fc := newTestHandler(t)
	sender := testIdentity(0x20)

	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "password"), sender, false, fc.WallNow()); !ok {
		t.Fatal("expected login to succeed")
	}

	first := append(meshcore.PutU32LE(nil, 1001), OpGetStatus)
	if _, ok := h.HandleAuthRequest(first, sender, false, fc.WallNow()); !ok {
		t.Fatal("expected first REQ ts=1001 to succeed")
	}

	replay := append(meshcore.PutU32LE(nil, 1001), OpGetStatus)
	if _, ok := h.HandleAuthRequest(replay, sender, false, fc.WallNow()); ok {
		t.Fatal("expected replayed REQ ts=1001 to be rejected")
	}

	advance := append(meshcore.PutU32LE(nil, 1002), OpGetStatus)
	if _, ok := h.HandleAuthRequest(advance, sender, false, fc.WallNow()); !ok {
		t.Fatal("expected REQ ts=1002 to succeed after the replay was rejected")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h, fc := newTestHandler(t)
	sender := testIdentity(0x30)
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "wrong"), sender, false, fc.WallNow()); ok {
		t.Fatal("expected login with wrong password to fail")
	}
}

func TestLoginBlankPasswordRequiresWhitelist(t *testing.T) {
	h, fc := newTestHandler(t)
	sender := testIdentity(0x40)
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, ""), sender, false, fc.WallNow()); ok {
		t.Fatal("expected blank password to fail for an unknown identity")
	}

	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "guest"), sender, false, fc.WallNow()); !ok {
		t.Fatal("expected guest login to succeed")
	}
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1001, ""), sender, false, fc.WallNow()); !ok {
		t.Fatal("expected blank-password login to succeed once whitelisted")
	}
}

func TestRegionsRequestRateLimited(t *testing.T) {
	h, fc := newTestHandler(t)
	sender := testIdentity(0x50)

	regionPayload := func() []byte {
		buf := meshcore.PutU32LE(nil, 2000)
		buf = append(buf, anonDiscrRegions)
		buf = append(buf, 0) // reply_path_len = 0
		return buf
	}

	for i := 0; i < 2; i++ {
		if _, ok := h.HandleAnonRequest(regionPayload(), sender, false, fc.WallNow()); !ok {
			t.Fatalf("call %d: expected regions reply within rate limit", i)
		}
	}
	if _, ok := h.HandleAnonRequest(regionPayload(), sender, false, fc.WallNow()); ok {
		t.Fatal("expected third regions request in the same window to be rate-limited")
	}
}

func TestTelemetryMasksGuestVsAdmin(t *testing.T) {
	h, fc := newTestHandler(t)
	admin := testIdentity(0x60)
	guest := testIdentity(0x70)

	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "password"), admin, false, fc.WallNow()); !ok {
		t.Fatal("admin login failed")
	}
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "guest"), guest, false, fc.WallNow()); !ok {
		t.Fatal("guest login failed")
	}

	adminReply, _ := h.HandleAuthRequest(append(meshcore.PutU32LE(nil, 1001), OpGetTelemetry), admin, false, fc.WallNow())
	guestReply, _ := h.HandleAuthRequest(append(meshcore.PutU32LE(nil, 1001), OpGetTelemetry), guest, false, fc.WallNow())

	if len(adminReply.Payload)-4 != 3 {
		t.Fatalf("admin telemetry blob length = %d, want 3", len(adminReply.Payload)-4)
	}
	if len(guestReply.Payload)-4 != 1 {
		t.Fatalf("guest telemetry blob length = %d, want 1", len(guestReply.Payload)-4)
	}
}

func TestGetAccessListAdminOnly(t *testing.T) {
	h, fc := newTestHandler(t)
	admin := testIdentity(0x80)
	guest := testIdentity(0x81)

	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "password"), admin, false, fc.WallNow()); !ok {
		t.Fatal("admin login failed")
	}
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "guest"), guest, false, fc.WallNow()); !ok {
		t.Fatal("guest login failed")
	}

	if _, ok := h.HandleAuthRequest(append(meshcore.PutU32LE(nil, 1001), OpGetAccessList), guest, false, fc.WallNow()); ok {
		t.Fatal("expected GetAccessList to be refused for a guest")
	}
	reply, ok := h.HandleAuthRequest(append(meshcore.PutU32LE(nil, 1001), OpGetAccessList), admin, false, fc.WallNow())
	if !ok || reply == nil {
		t.Fatal("expected GetAccessList to succeed for an admin")
	}
	if (len(reply.Payload)-4)%accessListEntrySize != 0 {
		t.Fatalf("access list body length %d is not a multiple of entry size %d", len(reply.Payload)-4, accessListEntrySize)
	}
}

func TestTxtMsgCLIDispatchAndPlainAck(t *testing.T) {
	h, fc := newTestHandler(t)
	admin := testIdentity(0x90)
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "password"), admin, false, fc.WallNow()); !ok {
		t.Fatal("admin login failed")
	}

	payload := meshcore.PutU32LE(nil, 1001)
	payload = append(payload, TxtSubtypePlain)
	payload = append(payload, []byte("time")...)

	result, ok := h.HandleTxtMsg(payload, admin, false, fc.WallNow())
	if !ok || result.Reply == nil {
		t.Fatal("expected a CLI reply")
	}
	if result.Ack == nil {
		t.Fatal("expected a PLAIN ACK alongside the CLI reply")
	}
	if len(result.Ack.Payload) != meshcore.AckHashSize {
		t.Fatalf("ack payload length = %d, want %d", len(result.Ack.Payload), meshcore.AckHashSize)
	}

	// Retrying the same timestamp returns an empty reply and no ACK.
	retry, ok := h.HandleTxtMsg(payload, admin, false, fc.WallNow())
	if !ok {
		t.Fatal("expected retry to be accepted with an empty reply")
	}
	if len(retry.Reply.Payload) != 0 {
		t.Fatalf("retry reply payload length = %d, want 0", len(retry.Reply.Payload))
	}
	if retry.Ack != nil {
		t.Fatal("expected no ACK on a retried TXT_MSG")
	}
}

func TestTxtMsgRejectsNonAdmin(t *testing.T) {
	h, fc := newTestHandler(t)
	guest := testIdentity(0xA0)
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "guest"), guest, false, fc.WallNow()); !ok {
		t.Fatal("guest login failed")
	}
	payload := append(meshcore.PutU32LE(nil, 1001), TxtSubtypeCLIData)
	payload = append(payload, []byte("time")...)
	if _, ok := h.HandleTxtMsg(payload, guest, false, fc.WallNow()); ok {
		t.Fatal("expected TXT_MSG CLI dispatch to be refused for a guest")
	}
}

func TestPathLearningUpdatesOutPath(t *testing.T) {
	h, fc := newTestHandler(t)
	sender := testIdentity(0xB0)
	if _, ok := h.HandleAnonRequest(anonLoginPayload(1000, "guest"), sender, false, fc.WallNow()); !ok {
		t.Fatal("login failed")
	}

	path := []byte{1, 2, 3, 4}
	if !h.HandlePath(path, sender, fc.WallNow()) {
		t.Fatal("expected HandlePath to succeed for a known sender")
	}

	rec, ok := h.acl.GetByPubKey(sender)
	if !ok {
		t.Fatal("expected sender to remain in the ACL")
	}
	if string(rec.OutPath) != string(path) {
		t.Fatalf("out_path = %v, want %v", rec.OutPath, path)
	}
}

func TestPathLearningIgnoresUnknownPeer(t *testing.T) {
	h, fc := newTestHandler(t)
	unknown := testIdentity(0xC0)
	if h.HandlePath([]byte{9, 9}, unknown, fc.WallNow()) {
		t.Fatal("expected HandlePath to fail for an unknown peer")
	}
}

func TestDiscoveryResponse(t *testing.T) {
	h, fc := newTestHandler(t)
	payload := []byte{0x80, 0x01}
	payload = meshcore.PutU32LE(payload, 0xCAFEBABE)

	reply, ok := h.HandleDiscovery(payload, 20, fc.WallNow())
	if !ok || reply == nil {
		t.Fatal("expected a discovery response")
	}
	if reply.Route != RouteZeroHop || !reply.WidenDelay {
		t.Fatalf("discovery reply route = %v widen = %v, want RouteZeroHop/true", reply.Route, reply.WidenDelay)
	}
	echoedTag, _ := meshcore.ReadU32LE(reply.Payload[2:6])
	if echoedTag != 0xCAFEBABE {
		t.Fatalf("echoed tag = %x, want %x", echoedTag, 0xCAFEBABE)
	}
}

func TestDiscoveryDeniedByFilterMask(t *testing.T) {
	h, fc := newTestHandler(t)
	payload := []byte{0x80, 0x02} // filter_mask doesn't include NodeTypeBit=0x01
	payload = meshcore.PutU32LE(payload, 1)
	if _, ok := h.HandleDiscovery(payload, 10, fc.WallNow()); ok {
		t.Fatal("expected discovery request to be denied by filter mask")
	}
}

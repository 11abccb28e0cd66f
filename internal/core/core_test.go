package core

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/config"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/radioparam"
)

type fakeRadio struct {
	sent   []*meshcore.Packet
	inbox  []*meshcore.Packet
	params radioparam.Params
}

func (r *fakeRadio) EstAirtimeMillis(sizeBytes int) float64 { return float64(sizeBytes) }

func (r *fakeRadio) Send(pkt *meshcore.Packet) error {
	r.sent = append(r.sent, pkt)
	return nil
}

func (r *fakeRadio) TryRecv() (*meshcore.Packet, meshcore.SignalQuality, bool) {
	if len(r.inbox) == 0 {
		return nil, meshcore.SignalQuality{}, false
	}
	pkt := r.inbox[0]
	r.inbox = r.inbox[1:]
	return pkt, meshcore.SignalQuality{SNR: 8, RSSI: -80}, true
}

func (r *fakeRadio) SetParams(p radioparam.Params) error {
	r.params = p
	return nil
}

func testIdentity(fill byte) meshcore.Identity {
	var id meshcore.Identity
	for i := range id.PubKey {
		id.PubKey[i] = fill
	}
	return id
}

func newTestCore(t *testing.T, radio *fakeRadio) (*Core, *clock.Fake) {
	t.Helper()
	cfg := *config.DefaultConfig()
	cfg.ACL.PersistPath = t.TempDir() + "/acl.bin"
	cfg.Regions.PersistPath = t.TempDir() + "/regions.bin"

	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	self := testIdentity(0x01)
	signPub, signPriv, err := meshcore.GenerateEd25519KeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair() error = %v", err)
	}

	c, err := New(cfg, Deps{
		Clock:    fc,
		RNG:      fc,
		Radio:    radio,
		Self:     self,
		SignPub:  signPub,
		SignPriv: signPriv,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, fc
}

func TestNewConstructsCore(t *testing.T) {
	c, _ := newTestCore(t, &fakeRadio{})
	if c.sendQueue == nil || c.handler == nil || c.router == nil {
		t.Fatalf("New() left a collaborator nil: %+v", c)
	}
}

func TestTickEmitsLocalAdvertAndTransmitsIt(t *testing.T) {
	radio := &fakeRadio{}
	c, fc := newTestCore(t, radio)
	c.cfg.Node.LocalAdvertMinutes = 1
	c.advertS.SetIntervals(1, 0, fc.WallNow())

	fc.Advance(2 * time.Minute)
	c.Tick(fc.WallNow())
	if c.sendQueue.Len() != 1 {
		t.Fatalf("sendQueue.Len() = %d after advert tick, want 1", c.sendQueue.Len())
	}

	c.Tick(fc.WallNow())
	if len(radio.sent) != 1 {
		t.Fatalf("radio.sent = %d, want 1", len(radio.sent))
	}
	if radio.sent[0].PayloadType != meshcore.PayloadAdvert {
		t.Fatalf("sent payload type = %v, want PayloadAdvert", radio.sent[0].PayloadType)
	}
}

func TestHandlePacketDedupesRepeatedPacket(t *testing.T) {
	radio := &fakeRadio{}
	c, fc := newTestCore(t, radio)

	pkt := &meshcore.Packet{
		PayloadType: meshcore.PayloadTxtMsg,
		Route:       meshcore.RouteFlood,
		Payload:     []byte{0x00, 0x00, 1, 2, 3},
	}
	quality := meshcore.SignalQuality{SNR: 5, RSSI: -70}

	c.handlePacket(pkt, quality, fc.WallNow())
	before := c.sendQueue.Len()

	dup := &meshcore.Packet{
		PayloadType: meshcore.PayloadTxtMsg,
		Route:       meshcore.RouteFlood,
		Payload:     append([]byte(nil), pkt.Payload...),
	}
	c.handlePacket(dup, quality, fc.WallNow())

	if c.sendQueue.Len() != before {
		t.Fatalf("sendQueue.Len() after duplicate = %d, want unchanged %d", c.sendQueue.Len(), before)
	}
}

func TestHandlePacketAdvertUpdatesNeighbourTable(t *testing.T) {
	radio := &fakeRadio{}
	c, fc := newTestCore(t, radio)

	peer := testIdentity(0x02)
	advertPayload := meshcore.EncodeAdvert(peer, c.signPub, c.signPriv, fc.UniqueWallSeconds(), nil)
	pkt := &meshcore.Packet{
		PayloadType: meshcore.PayloadAdvert,
		Route:       meshcore.RouteFlood,
		Payload:     advertPayload,
	}

	c.handlePacket(pkt, meshcore.SignalQuality{SNR: 4, RSSI: -90}, fc.WallNow())

	if c.neighbours.Len() != 1 {
		t.Fatalf("neighbours.Len() = %d, want 1", c.neighbours.Len())
	}
}

func TestHandlePacketAuthRequestQueuesReply(t *testing.T) {
	radio := &fakeRadio{}
	c, fc := newTestCore(t, radio)

	client := testIdentity(0x03)
	rec, ok := c.acl.Put(client, acl.PermGuest)
	if !ok {
		t.Fatalf("acl.Put() = false, want true")
	}
	_ = rec

	inner := meshcore.PutU32LE(nil, 1) // timestamp
	inner = append(inner, 0x01)        // OpGetStatus
	envelope := []byte{0x00, client.HashByte()}
	envelope = append(envelope, inner...)

	pkt := &meshcore.Packet{
		PayloadType: meshcore.PayloadReq,
		Route:       meshcore.RouteDirect,
		Payload:     envelope,
	}

	before := c.sendQueue.Len()
	c.handlePacket(pkt, meshcore.SignalQuality{SNR: 6, RSSI: -60}, fc.WallNow())
	if c.sendQueue.Len() <= before {
		t.Fatalf("sendQueue.Len() = %d after auth request, want > %d", c.sendQueue.Len(), before)
	}
}

func TestHandlePacketUnknownSenderHashIsNotAuthenticated(t *testing.T) {
	radio := &fakeRadio{}
	c, fc := newTestCore(t, radio)

	envelope := []byte{0x00, 0xFF, 0, 0, 0, 0, 0x01}
	pkt := &meshcore.Packet{
		PayloadType: meshcore.PayloadReq,
		Route:       meshcore.RouteDirect,
		Payload:     envelope,
	}

	before := c.sendQueue.Len()
	c.handlePacket(pkt, meshcore.SignalQuality{SNR: 6, RSSI: -60}, fc.WallNow())
	// No reply is produced; the only queued packet is the relayed original.
	if c.sendQueue.Len() != before+1 {
		t.Fatalf("sendQueue.Len() = %d for unauthenticated sender, want %d (relay only)", c.sendQueue.Len(), before+1)
	}
	if c.sendQueue.items[len(c.sendQueue.items)-1].pkt != pkt {
		t.Fatal("queued packet for unauthenticated sender is not the relayed original")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	c, _ := newTestCore(t, &fakeRadio{})
	cfg := c.Config()
	cfg.Node.Name = "renamed"
	c.SetConfig(cfg)
	if c.Config().Node.Name != "renamed" {
		t.Fatalf("Config().Node.Name = %q, want %q", c.Config().Node.Name, "renamed")
	}
}

func TestNodeTelemetryMasksWithoutPermission(t *testing.T) {
	counters := NewCounters(clock.NewFake(time.Unix(0, 0)))
	counters.SetBattMV(4100)
	enc := NewNodeTelemetry(counters)

	full := enc.Encode(acl.PermFeatureTelemetry)
	if len(full) != 44 {
		t.Fatalf("Encode(full perms) length = %d, want 44", len(full))
	}

	masked := enc.Encode(acl.PermGuest)
	if len(masked) != alwaysAllowedMaskSize {
		t.Fatalf("Encode(guest) length = %d, want %d", len(masked), alwaysAllowedMaskSize)
	}
	battMV, _ := meshcore.ReadU16LE(masked[0:2])
	if battMV != 4100 {
		t.Fatalf("masked BattMV = %d, want 4100", battMV)
	}
}

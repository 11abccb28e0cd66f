package router

import (
	"testing"
	"time"

	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/region"
	"github.com/dantte-lp/meshrepd/internal/seen"
)

type fixedAirtime struct{ ms float64 }

func (f fixedAirtime) EstAirtimeMillis(sizeBytes int) float64 { return f.ms }

func newTestRouter(cfg Config) *Router {
	return New(cfg, seen.New(seen.DefaultCapacity), region.NewMap(), region.NewKeyStore(),
		clock.NewFake(time.Unix(0, 0)), clock.NewFake(time.Unix(0, 0)), Hooks{})
}

func defaultConfig() Config {
	return Config{
		ForwardingEnabled:   true,
		FloodMax:            64,
		TxDelayFactor:       1.0,
		DirectTxDelayFactor: 1.0,
		RxDelayBase:         0,
		DenyFloodMask:       region.FlagDenyFlood,
	}
}

func TestDedupeFirstCallFalseSecondTrue(t *testing.T) {
	r := newTestRouter(defaultConfig())
	pkt := &meshcore.Packet{PayloadType: meshcore.PayloadTxtMsg, Route: meshcore.RouteFlood, Payload: []byte("hello")}

	if r.Dedupe(pkt) {
		t.Fatal("expected first Dedupe call to return false")
	}
	if !r.Dedupe(pkt) {
		t.Fatal("expected second Dedupe call with identical fields to return true")
	}
}

func TestClassifyRegionSkipsDirectPackets(t *testing.T) {
	r := newTestRouter(defaultConfig())
	pkt := &meshcore.Packet{Route: meshcore.RouteDirect}
	r.ClassifyRegion(pkt)
	if pkt.RegionResolved {
		t.Fatal("expected Direct packets to be left unresolved by ClassifyRegion")
	}
}

func TestClassifyRegionFloodResolvesWildcard(t *testing.T) {
	r := newTestRouter(defaultConfig())
	pkt := &meshcore.Packet{Route: meshcore.RouteFlood}
	r.ClassifyRegion(pkt)
	if !pkt.RegionResolved {
		t.Fatal("expected flood packet with no transport codes to resolve to the wildcard root")
	}
	if pkt.RegionDenied {
		t.Fatal("expected wildcard root to not deny flood by default")
	}
}

func TestClassifyRegionFloodDeniedByRegion(t *testing.T) {
	cfg := defaultConfig()
	r := newTestRouter(cfg)
	deny, _ := r.regions.Put("restricted", region.RootID, nil)
	r.regions.SetFlags(deny.ID, region.FlagDenyFlood)
	r.keys.Set(7, 0, deny.ID)

	pkt := &meshcore.Packet{
		Route:     meshcore.RouteTransportFlood,
		Transport: meshcore.TransportCodes{Code1: 7, Code2: 0, Set: true},
	}
	r.ClassifyRegion(pkt)
	if !pkt.RegionResolved {
		t.Fatal("expected transport-coded region to resolve")
	}
	if !pkt.RegionDenied {
		t.Fatal("expected resolved region with DENY_FLOOD to deny forwarding")
	}
}

func TestAllowForwardDisabledGlobally(t *testing.T) {
	cfg := defaultConfig()
	cfg.ForwardingEnabled = false
	r := newTestRouter(cfg)
	pkt := &meshcore.Packet{Route: meshcore.RouteDirect}
	if r.AllowForward(pkt) {
		t.Fatal("expected AllowForward to be false when forwarding is globally disabled")
	}
}

func TestAllowForwardFloodMaxBoundary(t *testing.T) {
	cfg := defaultConfig()
	cfg.FloodMax = 4
	r := newTestRouter(cfg)

	atMax := &meshcore.Packet{Route: meshcore.RouteDirect, Path: make([]byte, 4)}
	if r.AllowForward(atMax) {
		t.Fatal("expected path_len == flood_max to not be forwarded")
	}

	belowMax := &meshcore.Packet{Route: meshcore.RouteDirect, Path: make([]byte, 3)}
	if !r.AllowForward(belowMax) {
		t.Fatal("expected path_len == flood_max-1 to be forwarded")
	}
}

func TestAllowForwardDeniedRegion(t *testing.T) {
	cfg := defaultConfig()
	r := newTestRouter(cfg)
	deny, _ := r.regions.Put("restricted", region.RootID, nil)
	r.regions.SetFlags(deny.ID, region.FlagDenyFlood)
	r.keys.Set(1, 0, deny.ID)

	pkt := &meshcore.Packet{
		Route:     meshcore.RouteTransportFlood,
		Transport: meshcore.TransportCodes{Code1: 1, Code2: 0, Set: true},
	}
	r.ClassifyRegion(pkt)
	if r.AllowForward(pkt) {
		t.Fatal("expected AllowForward to be false for a denied region")
	}
}

func TestAllowForwardUnresolvedTransportFlood(t *testing.T) {
	r := newTestRouter(defaultConfig())
	pkt := &meshcore.Packet{
		Route:     meshcore.RouteTransportFlood,
		Transport: meshcore.TransportCodes{Code1: 99, Code2: 0, Set: true},
	}
	r.ClassifyRegion(pkt) // leaves RegionResolved false: unknown transport code
	if r.AllowForward(pkt) {
		t.Fatal("expected AllowForward to be false when the transport-coded region is unknown")
	}
}

func TestAllowForwardDirectIgnoresRegion(t *testing.T) {
	r := newTestRouter(defaultConfig())
	pkt := &meshcore.Packet{Route: meshcore.RouteDirect}
	if !r.AllowForward(pkt) {
		t.Fatal("expected Direct packets to be forwardable without region classification")
	}
}

func TestRetransmitDelayWithinBound(t *testing.T) {
	r := newTestRouter(defaultConfig())
	pkt := &meshcore.Packet{Payload: []byte("01234567890123456789")}
	radio := fixedAirtime{ms: 100}

	for i := 0; i < 50; i++ {
		d := r.RetransmitDelay(pkt, radio)
		upper := 5 * radio.EstAirtimeMillis(pkt.PathLen()+len(pkt.Payload)+2) * defaultConfig().TxDelayFactor
		if d < 0 || d > upper {
			t.Fatalf("RetransmitDelay() = %v, want within [0, %v]", d, upper)
		}
	}
}

func TestDirectRetransmitDelayUsesDirectFactor(t *testing.T) {
	cfg := defaultConfig()
	cfg.DirectTxDelayFactor = 0
	r := newTestRouter(cfg)
	pkt := &meshcore.Packet{Payload: []byte("x")}
	if d := r.DirectRetransmitDelay(pkt, fixedAirtime{ms: 100}); d != 0 {
		t.Fatalf("DirectRetransmitDelay() = %v, want 0 when direct_tx_delay_factor is 0", d)
	}
}

func TestRxDelayDisabledWhenBaseNonPositive(t *testing.T) {
	cfg := defaultConfig()
	cfg.RxDelayBase = 0
	r := newTestRouter(cfg)
	if d := r.RxDelay(0.5, 100); d != 0 {
		t.Fatalf("RxDelay() = %v, want 0 when rx_delay_base <= 0", d)
	}
}

func TestRxDelayPositiveWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.RxDelayBase = 2
	r := newTestRouter(cfg)
	d := r.RxDelay(0.0, 100)
	if d <= 0 {
		t.Fatalf("RxDelay() = %v, want > 0 for a low score with rx_delay_base enabled", d)
	}
}

// Package router implements the ingress dispatcher: dedupe, region/deny
// classification, forward-eligibility decisions, and retransmit-delay
// computation (spec.md §2 component C7, §4.6, §8).
package router

import (
	"math"

	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/region"
	"github.com/dantte-lp/meshrepd/internal/seen"
)

// AirtimeEstimator abstracts the radio driver's airtime model (spec.md
// §4.6: "T = radio.est_airtime(path_len + payload_len + 2) *
// tx_delay_factor"). Supplied by the application, never implemented
// here — the actual propagation-time math is radio-hardware-specific and
// explicitly out of scope (spec.md §1).
type AirtimeEstimator interface {
	EstAirtimeMillis(sizeBytes int) float64
}

// Hooks is the capability struct the application supplies to customize
// logging and forward policy without subclassing (spec.md §9 REDESIGN
// FLAG: "Deep inheritance... Replace with a capability struct: the
// router consumes a small set of named callbacks").
type Hooks struct {
	LogRx func(pkt *meshcore.Packet, score float64)
	LogTx func(pkt *meshcore.Packet)
}

// Config holds the router's policy knobs (spec.md §4.6).
type Config struct {
	ForwardingEnabled    bool
	FloodMax             int // spec.md §4.6: pkt.path_len >= flood_max is not forwarded
	TxDelayFactor        float64
	DirectTxDelayFactor  float64
	RxDelayBase          float64 // <= 0 disables (spec.md §4.6)
	DenyFloodMask        uint8
}

// Router is the ingress classification and forward-decision engine.
type Router struct {
	cfg     Config
	seen    *seen.Table
	regions *region.Map
	keys    *region.KeyStore
	clk     clock.Clock
	rng     clock.RNG
	hooks   Hooks
}

// New returns a Router wired to the given collaborators.
func New(cfg Config, seenTable *seen.Table, regions *region.Map, keys *region.KeyStore, clk clock.Clock, rng clock.RNG, hooks Hooks) *Router {
	return &Router{cfg: cfg, seen: seenTable, regions: regions, keys: keys, clk: clk, rng: rng, hooks: hooks}
}

// SetConfig replaces the router's runtime-tunable configuration (e.g.
// after an admin command changes flood_max or the airtime factor).
func (r *Router) SetConfig(cfg Config) { r.cfg = cfg }

// Dedupe checks and marks a packet against the mesh seen-table (spec.md
// §4.6 step 1: "SeenTable.check_and_mark(pkt); if already seen, drop").
// Returns true if the packet was already seen (should be dropped).
func (r *Router) Dedupe(pkt *meshcore.Packet) bool {
	return r.seen.CheckAndMark(pkt.Fingerprint())
}

// ClassifyRegion resolves and caches the packet's region for flood-class
// route types; Direct packets are left unresolved/unclassified (spec.md
// §4.6 step 2: "For Flood and TransportFlood, call RegionMap.match(pkt,
// DENY_FLOOD); cache the result on the packet. For Direct, skip.").
func (r *Router) ClassifyRegion(pkt *meshcore.Packet) {
	if !pkt.Route.IsFlood() {
		return
	}
	entry, resolved := r.regions.Match(r.keys, pkt.Transport.Set, pkt.Transport.Code1, pkt.Transport.Code2)
	pkt.RegionResolved = resolved
	if resolved {
		pkt.RegionDenied = region.DeniesFlood(entry, r.cfg.DenyFloodMask)
	} else {
		pkt.RegionDenied = false
	}
}

// AllowForward applies the forward-decision rules (spec.md §4.6 step 3:
// "allow_forward(pkt) returns false if repeater forwarding is globally
// disabled, if pkt.path_len >= flood_max, if the resolved region denies
// flooding, or if a TransportFlood packet arrived with transport codes
// whose region is unknown"). ClassifyRegion must be called first for
// flood-class packets.
func (r *Router) AllowForward(pkt *meshcore.Packet) bool {
	if !r.cfg.ForwardingEnabled {
		return false
	}
	if pkt.PathLen() >= r.cfg.FloodMax {
		return false
	}
	if pkt.Route.IsFlood() {
		if !pkt.RegionResolved {
			return false
		}
		if pkt.RegionDenied {
			return false
		}
	}
	return true
}

// RetransmitDelay returns the randomized delay before a flood retransmit
// (spec.md §4.6: "Flood retransmits use delay = uniform(0, 5*T) where T
// = radio.est_airtime(path_len + payload_len + 2) * tx_delay_factor").
func (r *Router) RetransmitDelay(pkt *meshcore.Packet, radio AirtimeEstimator) float64 {
	return r.retransmitDelay(pkt, radio, r.cfg.TxDelayFactor)
}

// DirectRetransmitDelay returns the randomized delay before a direct
// retransmit, using direct_tx_delay_factor in place of tx_delay_factor
// (spec.md §4.6: "Direct retransmits use the same formula with direct_
// tx_delay_factor").
func (r *Router) DirectRetransmitDelay(pkt *meshcore.Packet, radio AirtimeEstimator) float64 {
	return r.retransmitDelay(pkt, radio, r.cfg.DirectTxDelayFactor)
}

func (r *Router) retransmitDelay(pkt *meshcore.Packet, radio AirtimeEstimator, factor float64) float64 {
	size := pkt.PathLen() + len(pkt.Payload) + 2
	t := radio.EstAirtimeMillis(size) * factor
	frac := float64(r.rng.Uint32()) / float64(1<<32)
	return frac * 5 * t
}

// RxDelay returns the optional receive-side processing delay (spec.md
// §4.6: "rx_delay_base... optionally adds (base^(0.85 - score) - 1) *
// air_time to the receive-side processing delay... rx_delay_base <= 0
// disables this").
func (r *Router) RxDelay(score float64, airTimeMillis float64) float64 {
	if r.cfg.RxDelayBase <= 0 {
		return 0
	}
	return (math.Pow(r.cfg.RxDelayBase, 0.85-score) - 1) * airTimeMillis
}

// Package request implements the anonymous-request, login, and
// authenticated admin/guest request/response protocol (spec.md §2
// component C8, §4.7).
package request

import (
	"time"

	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/neighbour"
	"github.com/dantte-lp/meshrepd/internal/ratelimit"
	"github.com/dantte-lp/meshrepd/internal/region"
)

// RouteDecision tells the caller how to schedule a reply for sending
// (spec.md §4.7: "Reply routing").
type RouteDecision int

const (
	// RouteFloodPrime means the request arrived via flood; the reply is
	// sent as a flood-and-path-prime frame that teaches the requester a
	// path back (spec.md §4.7: "If the request arrived via flood, return
	// via a flood-and-path-prime frame").
	RouteFloodPrime RouteDecision = iota
	// RouteDirect means the reply is sent direct via Reply.Path (either
	// an explicitly supplied reply path or a cached out_path).
	RouteDirect
	// RouteFloodDefault means the request arrived direct with no usable
	// reply path, so the reply is sent flood (spec.md §4.7: "If the
	// request arrived direct and no explicit reply path was supplied,
	// send flood").
	RouteFloodDefault
	// RouteZeroHop means the reply must not be forwarded by any
	// receiver (used for discovery responses).
	RouteZeroHop
)

// Reply is an outbound packet produced by the handler. The caller
// (CoreLoop) is responsible for actually enqueuing it on the router's
// send queue with the configured server_response_delay (spec.md §4.7:
// "All replies are queued with a fixed server_response_delay").
type Reply struct {
	PayloadType meshcore.PayloadType
	Payload     []byte
	Route       RouteDecision
	Path        []byte
	// WidenDelay requests an enlarged random jitter window so multiple
	// responders scatter (spec.md §4.7: discovery "widened random
	// delay").
	WidenDelay bool
}

// decideRoute implements the shared reply-routing rule used by every
// request path (spec.md §4.7: "Reply routing").
func decideRoute(arrivedViaFlood bool, suppliedPath []byte, cachedPath []byte, cachedUnknown bool) (RouteDecision, []byte) {
	if arrivedViaFlood {
		return RouteFloodPrime, nil
	}
	if len(suppliedPath) > 0 {
		return RouteDirect, suppliedPath
	}
	if !cachedUnknown && len(cachedPath) > 0 {
		return RouteDirect, cachedPath
	}
	return RouteFloodDefault, nil
}

// TelemetryEncoder produces the node's telemetry blob, masked by the
// requester's permissions (spec.md §4.7: "GetTelemetry... guests
// receive only the always-allowed mask").
type TelemetryEncoder interface {
	Encode(perms uint8) []byte
}

// StatsProvider supplies the current repeater statistics snapshot for
// GetStatus (spec.md §4.7, §6: RepeaterStats).
type StatsProvider interface {
	Stats() meshcore.RepeaterStats
}

// Config holds the handler's policy knobs, sourced from node
// configuration (spec.md §4.7, §6).
type Config struct {
	AdminPassword string
	GuestPassword string
	NodeName      string
	OwnerInfo     string
	FirmwareLevel uint8

	// BridgePresent and BridgeBanned feed the anonymous clock request's
	// feature_bits reply (spec.md §4.7: "Feature bits encode bridge
	// presence and disabled state").
	BridgePresent bool
	BridgeBanned  bool

	ForwardingEnabled bool

	// NodeTypeBit and Role are consulted by discovery (spec.md §4.7:
	// "If the node type bit for this node is set in filter_mask").
	NodeTypeBit uint8
	Role        uint8
	// FullPubKeyInDiscoveryResp selects the 32-byte key form instead of
	// the 6-byte prefix (spec.md §4.7: "self_pubkey(6 or 32)").
	FullPubKeyInDiscoveryResp bool
}

// Feature bits for the anonymous clock request (spec.md §4.7).
const (
	FeatureBitBridgePresent uint8 = 1 << 0
	FeatureBitBridgeBanned  uint8 = 1 << 1
)

// featureBits encodes cfg's bridge state into the single feature_bits
// reply byte.
func (cfg Config) featureBits() uint8 {
	var b uint8
	if cfg.BridgePresent {
		b |= FeatureBitBridgePresent
	}
	if cfg.BridgeBanned {
		b |= FeatureBitBridgeBanned
	}
	return b
}

// Handler implements the RequestHandler component. It owns no tables;
// all collaborators are injected, per the no-global-singletons redesign
// (spec.md §9).
type Handler struct {
	cfg Config

	acl         *acl.Store
	neighbours  *neighbour.Table
	regions     *region.Map
	anonLimiter *ratelimit.Limiter
	discoverLim *ratelimit.Limiter

	clk clock.Clock
	rng clock.RNG

	self      meshcore.Identity
	localPriv [32]byte

	stats     StatsProvider
	telemetry TelemetryEncoder
	cli       CLIExecutor

	// discoveryModTimestamp is bumped whenever node-type/role/filter
	// configuration changes; discovery requests carrying a since cursor
	// newer than this are ignored (spec.md §4.7: "discovery_mod_
	// timestamp >= since").
	discoveryModTimestamp uint32
}

// New returns a Handler wired to its collaborators. anonLimiter and
// discoverLim are independent RateLimiter instances (spec.md §4.4,
// §4.7).
func New(cfg Config, aclStore *acl.Store, neighbours *neighbour.Table, regions *region.Map, anonLimiter, discoverLim *ratelimit.Limiter, clk clock.Clock, rng clock.RNG, self meshcore.Identity, localPriv [32]byte, stats StatsProvider, telemetry TelemetryEncoder, cli CLIExecutor) *Handler {
	if cli == nil {
		cli = NullExecutor{}
	}
	return &Handler{
		cfg:         cfg,
		acl:         aclStore,
		neighbours:  neighbours,
		regions:     regions,
		anonLimiter: anonLimiter,
		discoverLim: discoverLim,
		clk:         clk,
		rng:         rng,
		self:        self,
		localPriv:   localPriv,
		stats:       stats,
		telemetry:   telemetry,
		cli:         cli,
	}
}

// SetConfig replaces the handler's runtime-tunable configuration.
func (h *Handler) SetConfig(cfg Config) { h.cfg = cfg }

// TouchDiscoveryModTimestamp bumps the discovery cursor to now, e.g.
// after node-type or role configuration changes.
func (h *Handler) TouchDiscoveryModTimestamp(now time.Time) {
	h.discoveryModTimestamp = uint32(now.Unix())
}

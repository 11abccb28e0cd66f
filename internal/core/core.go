package core

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/advert"
	"github.com/dantte-lp/meshrepd/internal/bridge"
	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/config"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/neighbour"
	"github.com/dantte-lp/meshrepd/internal/persist"
	"github.com/dantte-lp/meshrepd/internal/radioparam"
	"github.com/dantte-lp/meshrepd/internal/ratelimit"
	"github.com/dantte-lp/meshrepd/internal/region"
	"github.com/dantte-lp/meshrepd/internal/request"
	"github.com/dantte-lp/meshrepd/internal/router"
	"github.com/dantte-lp/meshrepd/internal/seen"
	"github.com/dantte-lp/meshrepd/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// Core owns every table and collaborator and drives them from a single
// cooperative loop (spec.md §4.12, §5). There is exactly one Core per
// process; nothing outside it holds package-level mutable state
// (REDESIGN FLAG, spec.md §9: replaces the original's `the_mesh`/
// `bridge` globals with an explicit aggregate constructed at startup).
type Core struct {
	clk   clock.Clock
	rng   clock.RNG
	radio Radio
	log   *slog.Logger

	self      meshcore.Identity
	localPriv [32]byte
	signPub   ed25519.PublicKey
	signPriv  ed25519.PrivateKey

	acl         *acl.Store
	neighbours  *neighbour.Table
	regions     *region.Map
	keys        *region.KeyStore
	meshSeen    *seen.Table
	anonLimiter *ratelimit.Limiter
	discoverLim *ratelimit.Limiter

	router  *router.Router
	handler *request.Handler
	advertS *advert.Scheduler
	radioC  *radioparam.Controller
	bridge  *bridge.Bridge
	persist *persist.Store
	packets *persist.PacketLog

	sendQueue *SendQueue
	counters  *Counters
	metrics   *telemetry.Collector

	cfgMu sync.RWMutex
	cfg   config.Config

	adminQueue     chan adminJob
	bridgeIncoming chan []byte
}

// bridgeIncomingCapacity bounds the buffered channel the bridge
// transport's onIncoming callback (running on the MQTT client's own
// goroutine) writes to; CoreLoop drains it from Tick. A full channel
// drops the message rather than blocking the transport goroutine
// (spec.md §1, §5: "no blocking operations" applies transitively to
// anything CoreLoop depends on draining).
const bridgeIncomingCapacity = 64

// Deps bundles the platform-supplied collaborators Core cannot construct
// for itself: the radio driver, the CLI executor behind admin TXT_MSG
// dispatch, and this node's cryptographic identity.
type Deps struct {
	Clock clock.Clock
	RNG   clock.RNG
	Radio Radio
	CLI   request.CLIExecutor

	Self      meshcore.Identity
	LocalPriv [32]byte
	SignPub   ed25519.PublicKey
	SignPriv  ed25519.PrivateKey

	MetricsRegisterer prometheus.Registerer
	Logger            *slog.Logger
}

// New builds a Core from cfg and deps. All tables start empty; callers
// that need to restore persisted state should call LoadPersisted after
// New returns.
func New(cfg config.Config, deps Deps) (*Core, error) {
	if deps.Clock == nil || deps.RNG == nil || deps.Radio == nil {
		return nil, fmt.Errorf("core: Clock, RNG, and Radio are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meshSeen := seen.New(cfg.Node.SeenCapacity)
	neighbours := neighbour.New(cfg.Node.NeighbourCapacity)
	aclStore := acl.New(cfg.Node.ACLCapacity)
	regions := region.NewMap()
	keys := region.NewKeyStore()
	anonLimiter := ratelimit.New(cfg.Node.AnonRateLimitPerMinute, time.Minute)
	discoverLim := ratelimit.New(cfg.Node.DiscoverRateLimitPerMinute, time.Minute)

	counters := NewCounters(deps.Clock)

	now := deps.Clock.WallNow()
	advertS := advert.New(cfg.Node.LocalAdvertMinutes*2, cfg.Node.FloodAdvertHours, now)
	radioC := radioparam.New(radioparam.Params{
		FreqMHz:         cfg.Radio.FreqMHz,
		BandwidthKHz:    cfg.Radio.BandwidthKHz,
		SpreadingFactor: cfg.Radio.SpreadingFactor,
		CodingRate:      cfg.Radio.CodingRate,
	})

	persistDir := filepath.Dir(cfg.ACL.PersistPath)
	persistStore := persist.New(persistDir, deps.Clock)
	persistStore.SetEncoder(persist.KindACL, func() ([]byte, error) { return aclStore.Encode() })
	persistStore.SetEncoder(persist.KindRegions, func() ([]byte, error) { return regions.Encode() })

	rtr := router.New(router.Config{
		ForwardingEnabled:   cfg.Node.ForwardingEnabled,
		FloodMax:            cfg.Node.FloodMax,
		TxDelayFactor:       cfg.Node.TxDelayFactor,
		DirectTxDelayFactor: cfg.Node.DirectTxDelayFactor,
		RxDelayBase:         cfg.Node.RxDelayBase,
		DenyFloodMask:       region.FlagDenyFlood,
	}, meshSeen, regions, keys, deps.Clock, deps.RNG, router.Hooks{
		LogRx: func(pkt *meshcore.Packet, score float64) {
			logger.Debug("rx", "payload_type", pkt.PayloadType.String(), "route", pkt.Route.String(), "score", score)
		},
		LogTx: func(pkt *meshcore.Packet) {
			logger.Debug("tx", "payload_type", pkt.PayloadType.String(), "route", pkt.Route.String())
		},
	})

	br := bridge.New(cfg.Bridge, deps.Self, cfg.Node.SeenCapacity, func() {
		persistStore.MarkDirty(persist.KindPrefs)
	})

	bridgeIncoming := make(chan []byte, bridgeIncomingCapacity)
	if cfg.Bridge.Enabled {
		clientID := "meshrepd-" + fmt.Sprintf("%x", deps.Self.PubKey[:4])
		transport := bridge.NewMQTTTransport(cfg.Bridge.Server, clientID, cfg.Bridge.User, cfg.Bridge.Pass, cfg.Bridge.Topic,
			func(payload []byte) {
				select {
				case bridgeIncoming <- payload:
				default:
				}
			})
		br.SetTransport(transport)
	}

	c := &Core{
		clk:         deps.Clock,
		rng:         deps.RNG,
		radio:       deps.Radio,
		log:         logger,
		self:        deps.Self,
		localPriv:   deps.LocalPriv,
		signPub:     deps.SignPub,
		signPriv:    deps.SignPriv,
		acl:         aclStore,
		neighbours:  neighbours,
		regions:     regions,
		keys:        keys,
		meshSeen:    meshSeen,
		anonLimiter: anonLimiter,
		discoverLim: discoverLim,
		router:      rtr,
		advertS:     advertS,
		radioC:      radioC,
		bridge:      br,
		persist:     persistStore,
		sendQueue:   NewSendQueue(),
		counters:    counters,
		cfg:            cfg,
		adminQueue:     make(chan adminJob, adminQueueCapacity),
		bridgeIncoming: bridgeIncoming,
	}

	telemetryEnc := NewNodeTelemetry(counters)
	c.handler = request.New(c.requestConfig(cfg), aclStore, neighbours, regions, anonLimiter, discoverLim,
		deps.Clock, deps.RNG, deps.Self, deps.LocalPriv, counters, telemetryEnc, deps.CLI)

	if cfg.Node.PacketLogPath != "" {
		pl, err := persist.OpenPacketLog(cfg.Node.PacketLogPath, cfg.Node.PacketLogMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("core: open packet log: %w", err)
		}
		c.packets = pl
	}

	if deps.MetricsRegisterer != nil {
		c.metrics = telemetry.NewCollector(deps.MetricsRegisterer)
	}

	return c, nil
}

// requestConfig projects cfg into the request.Config shape the handler
// consumes (spec.md §4.7).
func (c *Core) requestConfig(cfg config.Config) request.Config {
	return request.Config{
		AdminPassword:             cfg.Node.AdminPassword,
		GuestPassword:             cfg.Node.GuestPassword,
		NodeName:                  cfg.Node.Name,
		OwnerInfo:                 cfg.Node.OwnerInfo,
		FirmwareLevel:             cfg.Node.FirmwareLevel,
		BridgePresent:             cfg.Bridge.Enabled,
		BridgeBanned:              c.bridge != nil && c.bridge.Banned(),
		ForwardingEnabled:         cfg.Node.ForwardingEnabled,
		NodeTypeBit:               cfg.Node.NodeTypeBit,
		Role:                      cfg.Node.Role,
		FullPubKeyInDiscoveryResp: cfg.Node.FullPubKeyInDiscoveryResp,
	}
}

// LoadPersisted restores the ACL and region map from disk, if present
// (spec.md §4.11, §6: "forward-compatible defaulting on read").
func (c *Core) LoadPersisted() error {
	aclPath := c.cfg.ACL.PersistPath
	if data, ok, err := persist.ReadFile(aclPath); err != nil {
		return fmt.Errorf("core: load acl: %w", err)
	} else if ok {
		if restored, ok := acl.Decode(data, c.cfg.Node.ACLCapacity); ok {
			c.acl = restored
		} else {
			c.log.Warn("acl persist file malformed, starting empty", "path", aclPath)
		}
	}

	regionsPath := c.cfg.Regions.PersistPath
	if data, ok, err := persist.ReadFile(regionsPath); err != nil {
		return fmt.Errorf("core: load regions: %w", err)
	} else if ok {
		if restored, ok := region.Decode(data); ok {
			c.regions = restored
		} else {
			c.log.Warn("regions persist file malformed, starting empty", "path", regionsPath)
		}
	}
	return nil
}

// SetConfig atomically replaces the node's runtime-tunable
// configuration and propagates it to the router, the request handler
// and the advert scheduler. Must be
// called from the CoreLoop goroutine (spec.md §5: mutated only from
// the main thread).
func (c *Core) SetConfig(cfg config.Config) {
	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()

	c.router.SetConfig(router.Config{
		ForwardingEnabled:   cfg.Node.ForwardingEnabled,
		FloodMax:            cfg.Node.FloodMax,
		TxDelayFactor:       cfg.Node.TxDelayFactor,
		DirectTxDelayFactor: cfg.Node.DirectTxDelayFactor,
		RxDelayBase:         cfg.Node.RxDelayBase,
		DenyFloodMask:       region.FlagDenyFlood,
	})
	c.handler.SetConfig(c.requestConfig(cfg))
	c.advertS.SetIntervals(cfg.Node.LocalAdvertMinutes*2, cfg.Node.FloodAdvertHours, c.clk.WallNow())
	c.handler.TouchDiscoveryModTimestamp(c.clk.WallNow())
}

// Config returns a snapshot copy of the current configuration, safe to
// call from any goroutine (spec.md §5: "the read must be done under a
// lightweight critical section ... around a snapshot copy").
func (c *Core) Config() config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// AttachMetrics wires a Prometheus collector for this Core's gauges and
// counters. Normally set once via Deps.MetricsRegisterer in New; exposed
// separately for tests that want to attach metrics after construction.
func (c *Core) AttachMetrics(collector *telemetry.Collector) {
	c.metrics = collector
}

// Tick runs one CoreLoop iteration (spec.md §4.12: "drive the bridge,
// drain one pending send, call the mesh ingress pump, check each timer
// ..., and update the uptime counter").
func (c *Core) Tick(now time.Time) {
	c.drainAdminQueue()
	c.driveBridge(now)

	if pkt, ok := c.sendQueue.PopReady(now); ok {
		c.transmit(pkt, now)
	}
	c.counters.SetTxQueueLen(c.sendQueue.Len())

	if pkt, quality, ok := c.radio.TryRecv(); ok {
		c.handlePacket(pkt, quality, now)
	}
	c.drainBridgeIncoming(now)

	c.tickAdvert(now)
	c.tickRadioParam(now)
	c.tickPersist(now)

	if c.metrics != nil {
		c.metrics.ACLSize.Set(float64(len(c.acl.All())))
		c.metrics.NeighbourCount.Set(float64(c.neighbours.Len()))
		c.metrics.SendQueueLen.Set(float64(c.sendQueue.Len()))
		c.metrics.UptimeSeconds.Set(float64(c.counters.Stats().TotalUpTimeSecs))
	}
}

// driveBridge executes any pending deferred self-ban and attempts a
// (re)connect when the bridge is enabled but idle (spec.md §4.10).
func (c *Core) driveBridge(now time.Time) {
	if c.bridge.ExecuteSelfBanIfPending() {
		c.log.Warn("bridge self-banned", "time", now)
	}
	if c.cfg.Bridge.Enabled && !c.bridge.Connected() && !c.bridge.Banned() {
		if err := c.bridge.Start(); err != nil {
			c.log.Debug("bridge connect attempt failed", "err", err)
		}
	}
}

// drainBridgeIncoming pumps every message the transport's onIncoming
// callback queued since the last tick through the bridge's inbound
// policy, injecting any resulting packet into the local mesh exactly
// like a radio reception (spec.md §4.10: "Inbound... returned for
// injection into the local mesh").
func (c *Core) drainBridgeIncoming(now time.Time) {
	for {
		select {
		case payload := <-c.bridgeIncoming:
			if pkt, ok := c.bridge.HandleIncoming(payload); ok {
				c.handlePacket(pkt, meshcore.SignalQuality{}, now)
			}
		default:
			return
		}
	}
}

// tickAdvert emits a self-advert when a local or flood timer expires
// (spec.md §4.8).
func (c *Core) tickAdvert(now time.Time) {
	kind := c.advertS.Tick(now)
	if kind == advert.None {
		return
	}

	route := meshcore.RouteDirect
	if kind == advert.Flood {
		route = meshcore.RouteFlood
	}

	payload := meshcore.EncodeAdvert(c.self, c.signPub, c.signPriv, c.clk.UniqueWallSeconds(), nil)
	pkt := &meshcore.Packet{PayloadType: meshcore.PayloadAdvert, Route: route, Payload: payload}
	c.sendQueue.Enqueue(pkt, now)
}

// tickRadioParam applies or reverts a temporary radio parameter change
// (spec.md §4.9).
func (c *Core) tickRadioParam(now time.Time) {
	event, params := c.radioC.Tick(now)
	switch event {
	case radioparam.Apply, radioparam.Revert:
		if err := c.radio.SetParams(params); err != nil {
			c.log.Error("radio set params failed", "err", err)
			c.counters.IncErr()
		}
	}
}

// tickPersist flushes any dirty persisted store whose coalescing
// deadline has expired (spec.md §4.11).
func (c *Core) tickPersist(now time.Time) {
	if _, err := c.persist.Tick(now); err != nil {
		c.log.Error("persist flush failed", "err", err)
		c.counters.IncErr()
	}
}

// transmit hands a queued packet to the radio and to the bridge's
// outbound loop-suppression check (spec.md §4.10, §4.12).
func (c *Core) transmit(pkt *meshcore.Packet, now time.Time) {
	size := pkt.PathLen() + len(pkt.Payload) + 2
	airtime := c.radio.EstAirtimeMillis(size)

	if err := c.radio.Send(pkt); err != nil {
		c.log.Error("radio send failed", "err", err)
		c.counters.IncErr()
		return
	}
	c.counters.RecordTx(pkt.Route, airtime)
	if c.metrics != nil {
		c.metrics.IncPacketsOut(pkt.Route.String())
	}

	if c.cfg.Bridge.Enabled {
		if _, looped := c.bridge.HandleOutbound(pkt); looped && c.metrics != nil {
			c.metrics.BridgeLoopBreak.Inc()
		}
	}
	if c.packets != nil {
		_ = c.packets.Append(fmt.Sprintf("TX %s %s len=%d", pkt.PayloadType, pkt.Route, len(pkt.Payload)))
	}
}

// Run drives Tick on a fixed-period ticker until ctx is cancelled,
// following the teacher's select/ticker idiom for its own watchdog loop
// (cmd/gobfd/main.go's runWatchdog).
func (c *Core) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick(c.clk.WallNow())
		}
	}
}

package core

import (
	"sync/atomic"
	"time"

	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// Counters accumulates the fields backing RepeaterStats (spec.md §6),
// updated from the single-threaded CoreLoop but exposed via Stats() for
// GetStatus (request.StatsProvider) and the Prometheus collector, both
// of which may be read from other goroutines (an admin HTTP handler,
// a scrape). atomic fields avoid needing a mutex for what is otherwise
// main-thread-only state (spec.md §5: ACL/NeighbourTable/RegionMap are
// mutated only from the main thread; counters are a narrower case that
// fits atomics cleanly instead).
type Counters struct {
	start time.Time
	clk   clock.Clock

	battMV     atomic.Int32
	noiseFloor atomic.Int32
	lastRSSI   atomic.Int32
	lastSNRQ2  atomic.Int32
	txQueueLen atomic.Int32

	nPktsRecv          atomic.Uint32
	nPktsSent          atomic.Uint32
	totalAirTimeSecs   atomic.Uint32
	nSentFlood         atomic.Uint32
	nSentDirect        atomic.Uint32
	nRecvFlood         atomic.Uint32
	nRecvDirect        atomic.Uint32
	errEvents          atomic.Uint32
	nDirectDups        atomic.Uint32
	nFloodDups         atomic.Uint32
	totalRxAirTimeSecs atomic.Uint32
	nRecvErrors        atomic.Uint32
}

// NewCounters returns a zeroed Counters with uptime measured from now.
func NewCounters(clk clock.Clock) *Counters {
	return &Counters{start: clk.WallNow(), clk: clk}
}

// Stats implements request.StatsProvider.
func (c *Counters) Stats() meshcore.RepeaterStats {
	uptime := uint32(c.clk.WallNow().Sub(c.start) / time.Second)
	return meshcore.RepeaterStats{
		BattMV:             uint16(c.battMV.Load()),
		TxQueueLen:         uint16(c.txQueueLen.Load()),
		NoiseFloor:         int16(c.noiseFloor.Load()),
		LastRSSI:           int16(c.lastRSSI.Load()),
		NPktsRecv:          c.nPktsRecv.Load(),
		NPktsSent:          c.nPktsSent.Load(),
		TotalAirTimeSecs:   c.totalAirTimeSecs.Load(),
		TotalUpTimeSecs:    uptime,
		NSentFlood:         c.nSentFlood.Load(),
		NSentDirect:        c.nSentDirect.Load(),
		NRecvFlood:         c.nRecvFlood.Load(),
		NRecvDirect:        c.nRecvDirect.Load(),
		ErrEvents:          uint16(c.errEvents.Load()),
		LastSNRQ2:          int16(c.lastSNRQ2.Load()),
		NDirectDups:        uint16(c.nDirectDups.Load()),
		NFloodDups:         uint16(c.nFloodDups.Load()),
		TotalRxAirTimeSecs: c.totalRxAirTimeSecs.Load(),
		NRecvErrors:        c.nRecvErrors.Load(),
	}
}

// SetBattMV records the last-read battery voltage.
func (c *Counters) SetBattMV(v uint16) { c.battMV.Store(int32(v)) }

// SetTxQueueLen records the current send queue depth.
func (c *Counters) SetTxQueueLen(n int) { c.txQueueLen.Store(int32(n)) }

// RecordRx updates signal-quality counters and per-route receive
// counters for an inbound packet.
func (c *Counters) RecordRx(route meshcore.RouteType, quality meshcore.SignalQuality, airtimeMillis float64) {
	c.nPktsRecv.Add(1)
	c.lastRSSI.Store(int32(quality.RSSI))
	c.lastSNRQ2.Store(int32(quality.SNR * 4))
	c.totalRxAirTimeSecs.Add(uint32(airtimeMillis / 1000))
	if route.IsFlood() {
		c.nRecvFlood.Add(1)
	} else {
		c.nRecvDirect.Add(1)
	}
}

// RecordTx updates per-route transmit counters for an outbound packet.
func (c *Counters) RecordTx(route meshcore.RouteType, airtimeMillis float64) {
	c.nPktsSent.Add(1)
	c.totalAirTimeSecs.Add(uint32(airtimeMillis / 1000))
	if route.IsFlood() {
		c.nSentFlood.Add(1)
	} else {
		c.nSentDirect.Add(1)
	}
}

// IncDedupe records a duplicate drop, split by whether the duplicate
// arrived via flood or direct delivery.
func (c *Counters) IncDedupe(route meshcore.RouteType) {
	if route.IsFlood() {
		c.nFloodDups.Add(1)
	} else {
		c.nDirectDups.Add(1)
	}
}

// IncErr records a generic processing error (spec.md §7: "bump error
// counter").
func (c *Counters) IncErr() { c.errEvents.Add(1) }

// IncRecvError records a malformed/undecodable inbound frame.
func (c *Counters) IncRecvError() { c.nRecvErrors.Add(1) }

// Package telemetry exposes the node's Prometheus metrics (SPEC_FULL.md's
// DOMAIN STACK table: "packets in/out, dedupe hits, denied-flood counter,
// rate-limit rejections, bridge loop-breaks, session uptime gauge").
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "meshrepd"
	subsystem = "core"
)

// Collector holds all meshrepd Prometheus metrics.
type Collector struct {
	PacketsIn  *prometheus.CounterVec
	PacketsOut *prometheus.CounterVec

	DedupeHits      prometheus.Counter
	DeniedFlood     prometheus.Counter
	RateLimitReject *prometheus.CounterVec
	BridgeLoopBreak prometheus.Counter

	ACLSize        prometheus.Gauge
	NeighbourCount prometheus.Gauge
	SendQueueLen   prometheus.Gauge
	UptimeSeconds  prometheus.Gauge
}

// NewCollector creates a Collector with all metrics registered against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsIn,
		c.PacketsOut,
		c.DedupeHits,
		c.DeniedFlood,
		c.RateLimitReject,
		c.BridgeLoopBreak,
		c.ACLSize,
		c.NeighbourCount,
		c.SendQueueLen,
		c.UptimeSeconds,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		PacketsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_in_total",
			Help:      "Total packets received from the radio, by payload type.",
		}, []string{"payload_type"}),

		PacketsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_out_total",
			Help:      "Total packets handed to the radio, by route type.",
		}, []string{"route_type"}),

		DedupeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dedupe_hits_total",
			Help:      "Total packets dropped because SeenTable already held their fingerprint.",
		}),

		DeniedFlood: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "denied_flood_total",
			Help:      "Total flood packets dropped because the resolved region denies flooding.",
		}),

		RateLimitReject: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limit_reject_total",
			Help:      "Total requests rejected by a rate limiter, by limiter name.",
		}, []string{"limiter"}),

		BridgeLoopBreak: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bridge_loop_break_total",
			Help:      "Total packets suppressed by the bridge to prevent a radio/backhaul echo loop.",
		}),

		ACLSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "acl_size",
			Help:      "Current number of non-tombstoned ACL records.",
		}),

		NeighbourCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "neighbour_count",
			Help:      "Current number of non-empty neighbour table slots.",
		}),

		SendQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_queue_len",
			Help:      "Current number of packets waiting in the send queue.",
		}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "uptime_seconds",
			Help:      "Seconds since the core loop started.",
		}),
	}
}

// IncPacketsIn increments the inbound packet counter for a payload type.
func (c *Collector) IncPacketsIn(payloadType string) {
	c.PacketsIn.WithLabelValues(payloadType).Inc()
}

// IncPacketsOut increments the outbound packet counter for a route type.
func (c *Collector) IncPacketsOut(routeType string) {
	c.PacketsOut.WithLabelValues(routeType).Inc()
}

// IncRateLimitReject increments the rejection counter for a named limiter
// (e.g. "anon", "discovery").
func (c *Collector) IncRateLimitReject(limiter string) {
	c.RateLimitReject.WithLabelValues(limiter).Inc()
}

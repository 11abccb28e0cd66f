package core

import (
	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// alwaysAllowedMaskSize is the length of the reduced telemetry blob
// returned to callers lacking PermFeatureTelemetry: battery, tx queue
// length and uptime only (spec.md §4.7: "guests receive only the
// always-allowed mask").
const alwaysAllowedMaskSize = 2 + 2 + 4

// NodeTelemetry implements request.TelemetryEncoder, masking the full
// RepeaterStats blob down to a fixed always-allowed subset for callers
// without PermFeatureTelemetry.
type NodeTelemetry struct {
	stats *Counters
}

// NewNodeTelemetry returns a TelemetryEncoder backed by stats.
func NewNodeTelemetry(stats *Counters) *NodeTelemetry {
	return &NodeTelemetry{stats: stats}
}

// Encode implements request.TelemetryEncoder.
func (t *NodeTelemetry) Encode(perms uint8) []byte {
	full := t.stats.Stats().Encode()
	if perms&acl.PermFeatureTelemetry != 0 {
		return full
	}

	// BattMV(2) + TxQueueLen(2) + TotalUpTimeSecs at offset 20(4), per
	// RepeaterStats' field layout in meshcore/stats.go.
	masked := make([]byte, 0, alwaysAllowedMaskSize)
	masked = append(masked, full[0:4]...)
	masked = append(masked, full[20:24]...)
	return masked
}

// Package core implements the CoreLoop and the Core aggregate that owns
// every table and drives the rest of the components from a single
// cooperative loop (spec.md §2 component C13, §4.12, §5; REDESIGN FLAG:
// replaces the original's `the_mesh`/`bridge` global singletons with an
// explicit aggregate constructed at startup).
package core

import (
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/radioparam"
)

// Radio abstracts the physical radio driver (spec.md §1 scope note: "we
// assume an API that delivers raw frames... and accepts frames for
// transmission"; the propagation-time and register-level details are
// explicitly out of scope). TryRecv is non-blocking, matching the
// CoreLoop's "no blocking operations" rule (spec.md §4.12, §5).
type Radio interface {
	// EstAirtimeMillis implements router.AirtimeEstimator.
	EstAirtimeMillis(sizeBytes int) float64

	// Send transmits a packet. Errors are logged and counted, never
	// fatal (spec.md §7).
	Send(pkt *meshcore.Packet) error

	// TryRecv returns the next received packet and its signal quality,
	// if one is pending, without blocking.
	TryRecv() (pkt *meshcore.Packet, quality meshcore.SignalQuality, ok bool)

	// SetParams pushes radio parameters to the hardware, for both the
	// persisted baseline and RadioParamController's temporary overrides
	// (spec.md §4.9).
	SetParams(p radioparam.Params) error
}

// Package radioparam implements the temporary radio-parameter override
// with guaranteed revert (spec.md §2 component C10, §4.9).
package radioparam

import "time"

// applyGrace is the delay before a requested override takes effect, long
// enough for the response carrying the new params to be sent on the old
// ones (spec.md §4.9: "now + 2s, to allow the response carrying the new
// params to be sent").
const applyGrace = 2 * time.Second

// Params is the set of radio parameters that can be temporarily
// overridden (spec.md §4.9: "apply_temp(freq, bw, sf, cr, timeout_mins)").
type Params struct {
	FreqMHz         float64
	BandwidthKHz    float64
	SpreadingFactor int
	CodingRate      int
}

// Controller arms at most one pending override at a time. Either deadline
// elapsing without the other having fired is an acceptable intermediate
// state (spec.md §4.9: "a cancel before apply simply clears both
// timers").
type Controller struct {
	persisted Params // the radio parameters to revert to

	pending   bool
	applied   bool
	applyAt   time.Time
	revertAt  time.Time
	temp      Params
}

// New returns a Controller whose revert target is persisted.
func New(persisted Params) *Controller {
	return &Controller{persisted: persisted}
}

// Persisted returns the parameters the controller reverts to.
func (c *Controller) Persisted() Params { return c.persisted }

// SetPersisted updates the revert target (e.g. after an admin changes the
// node's permanent radio configuration).
func (c *Controller) SetPersisted(p Params) { c.persisted = p }

// ApplyTemp arms the apply-at and revert-at deadlines for a temporary
// override (spec.md §4.9). Any previously pending override is discarded.
func (c *Controller) ApplyTemp(p Params, now time.Time, timeoutMins int) {
	c.temp = p
	c.pending = true
	c.applied = false
	c.applyAt = now.Add(applyGrace)
	c.revertAt = now.Add(applyGrace).Add(time.Duration(timeoutMins) * time.Minute)
}

// Cancel clears both deadlines without applying or reverting anything
// (spec.md §4.9: "a cancel before apply simply clears both timers").
func (c *Controller) Cancel() {
	c.pending = false
	c.applied = false
}

// Event is the action the CoreLoop should take after a Tick call.
type Event int

const (
	// NoEvent means neither deadline has elapsed.
	NoEvent Event = iota
	// Apply means the temp params should now be pushed to the radio.
	Apply
	// Revert means the persisted params should now be restored.
	Revert
)

// Tick checks the armed deadlines against now. It returns at most one
// event per call, in apply-then-revert order, matching the CoreLoop's
// single-pass-per-iteration timer check (spec.md §4.12).
func (c *Controller) Tick(now time.Time) (Event, Params) {
	if !c.pending {
		return NoEvent, Params{}
	}

	if !c.applied && !now.Before(c.applyAt) {
		c.applied = true
		return Apply, c.temp
	}

	if c.applied && !now.Before(c.revertAt) {
		c.pending = false
		c.applied = false
		return Revert, c.persisted
	}

	return NoEvent, Params{}
}

// Pending reports whether an override is currently armed (applied or not).
func (c *Controller) Pending() bool { return c.pending }

// Package advert implements the periodic self-advertisement scheduler
// (spec.md §2 component C9, §4.8).
package advert

import "time"

// Scheduler tracks two independent interval timers: a local (zero-hop)
// advert and a flood advert. Zero disables the corresponding timer
// (spec.md §4.8: "local = 0 or flood = 0 disables that timer").
type Scheduler struct {
	localInterval  time.Duration // 0 disables
	floodInterval  time.Duration // 0 disables
	nextLocal      time.Time
	nextFlood      time.Time
	localArmed     bool
	floodArmed     bool
}

// New returns a Scheduler with both timers armed against start, using
// localMinutesX2 and floodHours exactly as spec.md §4.8 phrases them
// ("local_interval (minutes × 2) and flood_interval (hours)").
func New(localMinutesX2, floodHours int, start time.Time) *Scheduler {
	s := &Scheduler{
		localInterval: time.Duration(localMinutesX2) * 30 * time.Second,
		floodInterval: time.Duration(floodHours) * time.Hour,
	}
	s.arm(start)
	return s
}

func (s *Scheduler) arm(now time.Time) {
	if s.localInterval > 0 {
		s.nextLocal = now.Add(s.localInterval)
		s.localArmed = true
	} else {
		s.localArmed = false
	}
	if s.floodInterval > 0 {
		s.nextFlood = now.Add(s.floodInterval)
		s.floodArmed = true
	} else {
		s.floodArmed = false
	}
}

// SetIntervals updates both intervals at runtime and re-arms any timer
// whose interval transitions from disabled to enabled (spec.md §4.8:
// "runtime-updatable").
func (s *Scheduler) SetIntervals(localMinutesX2, floodHours int, now time.Time) {
	wasLocal := s.localInterval > 0
	wasFlood := s.floodInterval > 0

	s.localInterval = time.Duration(localMinutesX2) * 30 * time.Second
	s.floodInterval = time.Duration(floodHours) * time.Hour

	if s.localInterval > 0 && !wasLocal {
		s.nextLocal = now.Add(s.localInterval)
		s.localArmed = true
	} else if s.localInterval == 0 {
		s.localArmed = false
	}

	if s.floodInterval > 0 && !wasFlood {
		s.nextFlood = now.Add(s.floodInterval)
		s.floodArmed = true
	} else if s.floodInterval == 0 {
		s.floodArmed = false
	}
}

// Kind identifies which advert, if any, is due.
type Kind int

const (
	// None means neither timer has expired.
	None Kind = iota
	// Local means a zero-hop advert is due.
	Local
	// Flood means a flood advert is due.
	Flood
)

// Tick checks both timers against now. When both expire simultaneously the
// flood advert takes priority and the local timer is re-armed so the two
// do not coincide on the next cycle (spec.md §4.8: "When both expire
// simultaneously the flood takes priority and the local timer is re-armed
// so they do not coincide.").
func (s *Scheduler) Tick(now time.Time) Kind {
	floodDue := s.floodArmed && !now.Before(s.nextFlood)
	localDue := s.localArmed && !now.Before(s.nextLocal)

	switch {
	case floodDue && localDue:
		s.nextFlood = now.Add(s.floodInterval)
		s.nextLocal = now.Add(s.localInterval)
		return Flood
	case floodDue:
		s.nextFlood = now.Add(s.floodInterval)
		return Flood
	case localDue:
		s.nextLocal = now.Add(s.localInterval)
		return Local
	default:
		return None
	}
}

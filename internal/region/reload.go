package region

import (
	"strings"
)

// Reloader drives the region-map reload protocol (spec.md §4.5: "Editing
// the live map mid-session is forbidden. Instead, a shadow temp_map is
// initialised from region_map."). Its zero value is not usable; use
// NewReloader.
type Reloader struct {
	live    *Map
	temp    *Map
	stack   [MaxDepth + 1]uint16 // stack[d] = last entry ID created at depth d
	stackOK [MaxDepth + 1]bool
}

// NewReloader starts a reload session against live.
func NewReloader(live *Map) *Reloader {
	return &Reloader{live: live, temp: live.Clone()}
}

// FeedLine submits one line of the reload protocol. Leading spaces
// indicate tree depth (0 = direct child of the wildcard root, 1 = child
// of the last depth-0 entry, ..., max depth 7). A trailing "F" flag
// token means DENY_FLOOD is clear (allow flood); its absence means deny
// (spec.md §4.5). An empty line commits the shadow map to live and ends
// the session; FeedLine returns true exactly when that happens.
//
// Malformed lines are skipped and the session continues — the reload
// protocol fails closed, never aborting mid-session (spec.md §4.5:
// "Editing fails closed: on any malformed line, the current line is
// skipped and the session continues; on commit the partial result
// replaces the live map.").
func (r *Reloader) FeedLine(line string) (committed bool) {
	if strings.TrimSpace(line) == "" {
		r.live.entries = r.temp.entries
		r.live.nextID = r.temp.nextID
		r.live.home = r.temp.home
		return true
	}

	depth := 0
	for depth < len(line) && line[depth] == ' ' {
		depth++
	}
	if depth > MaxDepth {
		return false
	}
	rest := strings.TrimSpace(line[depth:])
	if rest == "" {
		return false
	}

	fields := strings.Fields(rest)
	name := fields[0]
	if name == "" || len(name) > MaxNameLen {
		return false
	}

	denyFlood := true
	for _, f := range fields[1:] {
		if f == "F" {
			denyFlood = false
		}
	}

	var parentID uint16
	if depth == 0 {
		parentID = RootID
	} else {
		if !r.stackOK[depth-1] {
			return false // no ancestor recorded at the required depth
		}
		parentID = r.stack[depth-1]
	}

	flags := uint8(0)
	if denyFlood {
		flags = FlagDenyFlood
	}

	e, ok := r.temp.Put(name, parentID, nil)
	if !ok {
		return false
	}
	r.temp.SetFlags(e.ID, flags)

	r.stack[depth] = e.ID
	r.stackOK[depth] = true
	// Invalidate deeper stack levels; a new sibling at this depth can't
	// be a parent for a stale child at depth+1 from an earlier branch.
	for d := depth + 1; d <= MaxDepth; d++ {
		r.stackOK[d] = false
	}

	return false
}

// Abort discards the shadow map without committing.
func (r *Reloader) Abort() {
	r.temp = nil
}

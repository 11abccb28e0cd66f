package core

import (
	"context"
	"encoding/hex"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/neighbour"
	"github.com/dantte-lp/meshrepd/internal/persist"
	"github.com/dantte-lp/meshrepd/internal/region"
)

// adminQueueCapacity bounds the number of pending administrative
// operations; the admin surface is low-frequency and a full queue only
// means a caller's Submit blocks briefly or its context expires (spec.md
// §7: no panics, every fallible operation returns a discriminated
// result).
const adminQueueCapacity = 32

// adminJob is one operation submitted for execution on the CoreLoop
// goroutine (spec.md §5: "mutation of ACL/NeighbourTable/RegionMap only
// from the main thread"). RegionMap in particular carries no internal
// locking of its own, so every read or write of it from outside the
// CoreLoop must go through this queue.
type adminJob struct {
	fn   func(*Core) (any, error)
	resp chan adminResult
}

type adminResult struct {
	value any
	err   error
}

// Submit enqueues fn to run on the CoreLoop goroutine and blocks until it
// completes or ctx is cancelled. This is the only safe way for a
// goroutine outside Run/Tick (the admin HTTP handlers, in particular) to
// read or mutate Core's tables.
func (c *Core) Submit(ctx context.Context, fn func(*Core) (any, error)) (any, error) {
	job := adminJob{fn: fn, resp: make(chan adminResult, 1)}
	select {
	case c.adminQueue <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-job.resp:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drainAdminQueue runs every pending admin job inline on the CoreLoop
// goroutine. Called once per Tick, before packet handling, so an
// admin-issued mutation (a permission change, a region commit) is
// visible to this tick's routing decisions.
func (c *Core) drainAdminQueue() {
	for {
		select {
		case job := <-c.adminQueue:
			value, err := job.fn(c)
			job.resp <- adminResult{value: value, err: err}
		default:
			return
		}
	}
}

// Status is the JSON-friendly snapshot returned by the admin status
// endpoint (spec.md §6's RepeaterStats plus table sizes and bridge
// state, none of which the wire format carries on their own).
type Status struct {
	NodeName        string
	FirmwareLevel   uint8
	Stats           meshcore.RepeaterStats
	ACLSize         int
	NeighbourCount  int
	RegionCount     int
	BridgeEnabled   bool
	BridgeConnected bool
	BridgeBanned    bool
}

// GetStatus returns a Status snapshot (spec.md §5: single-thread-owned
// reads via Submit).
func (c *Core) GetStatus(ctx context.Context) (Status, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		return Status{
			NodeName:        c.cfg.Node.Name,
			FirmwareLevel:   c.cfg.Node.FirmwareLevel,
			Stats:           c.counters.Stats(),
			ACLSize:         len(c.acl.All()),
			NeighbourCount:  c.neighbours.Len(),
			RegionCount:     c.regions.Len(),
			BridgeEnabled:   c.cfg.Bridge.Enabled,
			BridgeConnected: c.bridge.Connected(),
			BridgeBanned:    c.bridge.Banned(),
		}, nil
	})
	if err != nil {
		return Status{}, err
	}
	return v.(Status), nil
}

// ACLEntry is a JSON-friendly view of an acl.Record.
type ACLEntry struct {
	PubKeyHex    string
	Permissions  uint8
	LastActivity int64
}

// ListACL returns every non-tombstoned ACL record.
func (c *Core) ListACL(ctx context.Context) ([]ACLEntry, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		records := c.acl.All()
		out := make([]ACLEntry, 0, len(records))
		for _, r := range records {
			out = append(out, ACLEntry{
				PubKeyHex:    hex.EncodeToString(r.Identity.PubKey[:]),
				Permissions:  r.Permissions,
				LastActivity: r.LastActivity,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ACLEntry), nil
}

// SetACLPermissions updates an existing client's permission bits, or
// tombstones the record when perms is acl.PermNone (spec.md §4.3: "a
// record with permissions = 0 is a tombstone").
func (c *Core) SetACLPermissions(ctx context.Context, pubKeyHex string, perms uint8) (bool, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		raw, err := hex.DecodeString(pubKeyHex)
		if err != nil || len(raw) != meshcore.PubKeySize {
			return false, nil
		}
		id, ok := meshcore.IdentityFromPubKey(raw)
		if !ok {
			return false, nil
		}
		_, ok = c.acl.GetByPubKey(id)
		if !ok {
			return false, nil
		}
		ok = c.acl.ApplyPermissions(c.self, id.PubKey[:], perms)
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// NeighbourEntry is a JSON-friendly view of a neighbour.ExportEntry.
type NeighbourEntry struct {
	PubKeyHex string
	SecsAgo   uint32
	SNRQ2     int8
}

// ListNeighbours returns up to limit neighbours, newest-first.
func (c *Core) ListNeighbours(ctx context.Context, limit int) ([]NeighbourEntry, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		entries := c.neighbours.ExportSorted(neighbour.OrderNewestFirst, limit, 0, meshcore.PubKeySize, c.clk.WallNow())
		out := make([]NeighbourEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, NeighbourEntry{
				PubKeyHex: hex.EncodeToString(e.Identity.PubKey[:]),
				SecsAgo:   e.SecsAgo,
				SNRQ2:     e.SNRQ2,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]NeighbourEntry), nil
}

// RegionEntry is a JSON-friendly view of a region.Entry.
type RegionEntry struct {
	ID        uint16
	Name      string
	ParentID  uint16
	DenyFlood bool
	Home      bool
}

// ListRegions returns the full region tree.
func (c *Core) ListRegions(ctx context.Context) ([]RegionEntry, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		entries := c.regions.All()
		home := c.regions.Home()
		out := make([]RegionEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, RegionEntry{
				ID:        e.ID,
				Name:      e.Name,
				ParentID:  e.ParentID,
				DenyFlood: e.DenyFlood(),
				Home:      e.ID == home,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]RegionEntry), nil
}

// ReloadRegions feeds lines through a fresh region.Reloader against the
// live map and commits on success (spec.md §4.5: shadow-map reload
// protocol). Returns the number of lines accepted before commit.
func (c *Core) ReloadRegions(ctx context.Context, lines []string) (int, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		reloader := region.NewReloader(c.regions)
		accepted := 0
		committed := false
		for _, line := range lines {
			if reloader.FeedLine(line) {
				committed = true
				break
			}
			accepted++
		}
		if !committed {
			reloader.FeedLine("")
		}
		c.persist.MarkDirty(persist.KindRegions)
		return accepted, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// BanBridgeSender adds a prefix to the bridge's ban list (spec.md
// §4.10's admin-issued bans).
func (c *Core) BanBridgeSender(ctx context.Context, prefix [meshcore.BanPrefixSize]byte) (bool, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		return c.bridge.Ban(prefix), nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// UnbanBridgeSender removes a prefix from the bridge's ban list.
func (c *Core) UnbanBridgeSender(ctx context.Context, prefix [meshcore.BanPrefixSize]byte) (bool, error) {
	v, err := c.Submit(ctx, func(c *Core) (any, error) {
		return c.bridge.Unban(prefix), nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

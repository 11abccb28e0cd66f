// Package acl implements the persisted client access-control table
// (spec.md §2 component C4, §4.3, §8).
package acl

import (
	"sync"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// Permission bits (spec.md §3: "permissions (bitmask: role ∈ {none,
// guest, admin}, plus feature flags)").
const (
	PermNone  uint8 = 0
	PermGuest uint8 = 1 << 0
	PermAdmin uint8 = 1 << 1

	// PermFeatureTelemetry gates access to the full telemetry blob
	// (spec.md §4.7: "guests receive only the always-allowed mask").
	PermFeatureTelemetry uint8 = 1 << 2
)

// IsAdmin reports whether perms grants the admin role.
func IsAdmin(perms uint8) bool { return perms&PermAdmin != 0 }

// IsGuest reports whether perms grants at least the guest role.
func IsGuest(perms uint8) bool { return perms&(PermGuest|PermAdmin) != 0 }

// Record is a known client (spec.md §3: ClientRecord).
type Record struct {
	Identity     meshcore.Identity
	Permissions  uint8
	SharedSecret [meshcore.SharedSecretSize]byte
	LastTimestamp uint32 // monotonic sender timestamp floor; replay guard
	LastActivity  int64  // wall-clock unix seconds
	OutPath       []byte // nil/empty + OutPathUnknown means "unknown"
	OutPathUnknown bool
}

// tombstoned reports whether r is a deleted record (spec.md §3: "a
// record with permissions = 0 is a tombstone and is skipped on
// enumeration").
func (r *Record) tombstoned() bool {
	return r == nil || r.Permissions == PermNone
}

// Store is the fixed-capacity ACL/ClientStore (spec.md §4.3).
type Store struct {
	mu       sync.Mutex
	capacity int
	records  []Record
	index    map[meshcore.Identity]int // pubkey -> slot, tombstones removed from index
	dirty    bool
}

// New returns a Store with the given fixed capacity (spec.md §3:
// "MAX_CLIENTS").
func New(capacity int) *Store {
	return &Store{
		capacity: capacity,
		records:  make([]Record, 0, capacity),
		index:    make(map[meshcore.Identity]int, capacity),
	}
}

// GetByPubKey returns the record for id, if present and not tombstoned
// (spec.md §4.3: "get_by_pubkey(pk) -> record?").
func (s *Store) GetByPubKey(id meshcore.Identity) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[id]
	if !ok || s.records[idx].tombstoned() {
		return nil, false
	}
	cp := s.records[idx]
	return &cp, true
}

// Put returns the existing record for id, or creates a new one with the
// given role bits. Returns (nil, false) only if the table is full and no
// tombstone slot is available (spec.md §4.3: "put(identity, role_bits) ->
// record? (returns existing or newly created; returns absent only if the
// table is full and no tombstone is available)").
func (s *Store) Put(id meshcore.Identity, roleBits uint8) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.index[id]; ok && !s.records[idx].tombstoned() {
		cp := s.records[idx]
		return &cp, true
	}

	// Look for a tombstoned slot to reuse.
	for i := range s.records {
		if s.records[i].tombstoned() {
			s.records[i] = Record{Identity: id, Permissions: roleBits}
			s.index[id] = i
			s.dirty = true
			cp := s.records[i]
			return &cp, true
		}
	}

	if len(s.records) >= s.capacity {
		return nil, false
	}

	s.records = append(s.records, Record{Identity: id, Permissions: roleBits})
	s.index[id] = len(s.records) - 1
	s.dirty = true
	cp := s.records[len(s.records)-1]
	return &cp, true
}

// UpdateLogin writes the derived shared secret, role bits, and resets
// out-path state for a successful login (spec.md §4.7). The replay guard
// is the caller's job (it is checked before calling UpdateLogin); this
// only records the result, and never lowers LastTimestamp.
func (s *Store) UpdateLogin(id meshcore.Identity, secret [meshcore.SharedSecretSize]byte, perms uint8, ts uint32, activityUnix int64, outPathUnknown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[id]
	if !ok {
		if len(s.records) >= s.capacity {
			return
		}
		s.records = append(s.records, Record{Identity: id})
		idx = len(s.records) - 1
		s.index[id] = idx
	}

	r := &s.records[idx]
	r.SharedSecret = secret
	r.Permissions = perms
	if ts > r.LastTimestamp {
		r.LastTimestamp = ts
	}
	r.LastActivity = activityUnix
	if outPathUnknown {
		r.OutPathUnknown = true
		r.OutPath = nil
	}
	s.dirty = true
}

// TryAdvanceTimestamp enforces the replay floor and, if ts is strictly
// greater than the stored floor, advances it (spec.md §3: "last_timestamp
// is never decreased"; §8: "after a REQ with ts > record.last_ts is
// processed, record.last_ts = ts; a subsequent REQ with ts' <= ts is
// rejected and does not change any state").
func (s *Store) TryAdvanceTimestamp(id meshcore.Identity, ts uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[id]
	if !ok || s.records[idx].tombstoned() {
		return false
	}
	if ts <= s.records[idx].LastTimestamp {
		return false
	}
	s.records[idx].LastTimestamp = ts
	return true
}

// SetOutPath records a client's return path (spec.md §4.7: "Path
// learning. On PATH from a known peer, copy the path into
// record.out_path").
func (s *Store) SetOutPath(id meshcore.Identity, path []byte, activityUnix int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[id]
	if !ok || s.records[idx].tombstoned() {
		return
	}
	s.records[idx].OutPath = append([]byte(nil), path...)
	s.records[idx].OutPathUnknown = false
	s.records[idx].LastActivity = activityUnix
	s.dirty = true
}

// TouchActivity updates last_activity without otherwise changing the
// record (spec.md §4.7: KeepAlive opcode).
func (s *Store) TouchActivity(id meshcore.Identity, activityUnix int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.index[id]; ok && !s.records[idx].tombstoned() {
		s.records[idx].LastActivity = activityUnix
	}
}

// ApplyPermissions is the admin policy decision for changing a client's
// permissions by key prefix (spec.md §4.3: "apply_permissions(self_
// identity, pk_prefix, len, new_perms) -> bool (a policy decision: the
// self identity is excluded; a record for pk_prefix is looked up by
// prefix; new_perms = 0 tombstones the entry)").
func (s *Store) ApplyPermissions(self meshcore.Identity, prefix []byte, newPerms uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].tombstoned() {
			continue
		}
		if s.records[i].Identity.Equal(self) {
			continue
		}
		if s.records[i].Identity.HasPrefix(prefix) {
			s.records[i].Permissions = newPerms
			if newPerms == PermNone {
				delete(s.index, s.records[i].Identity)
			}
			s.dirty = true
			return true
		}
	}
	return false
}

// SearchByHash returns every non-tombstoned record whose identity's hash
// byte matches hashByte (spec.md §4.3: "search_by_hash(hash_byte) -> list
// of indexes").
func (s *Store) SearchByHash(hashByte byte) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for i := range s.records {
		if s.records[i].tombstoned() {
			continue
		}
		if s.records[i].Identity.HashByte() == hashByte {
			out = append(out, s.records[i])
		}
	}
	return out
}

// All returns every non-tombstoned record, for enumeration (spec.md
// §4.7: GetAccessList).
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for i := range s.records {
		if !s.records[i].tombstoned() {
			out = append(out, s.records[i])
		}
	}
	return out
}

// Dirty reports and clears the dirty flag (spec.md §4.3: "Persistence is
// triggered externally via a dirty flag; the store itself does not write
// to disk synchronously").
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

// MarkDirty sets the dirty flag without otherwise mutating the store.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

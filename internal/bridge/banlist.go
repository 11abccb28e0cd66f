// Package bridge implements the loop-suppressing backhaul relay
// between the radio plane and a byte-oriented transport (spec.md §2
// component C11, §4.10).
package bridge

import (
	"sync"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// BanListCapacity bounds the number of banned prefixes a node tracks
// locally (spec.md GLOSSARY: "a small per-node allow/deny list").
const BanListCapacity = 16

// BanList is the fixed-capacity set of banned public-key prefixes
// (spec.md §4.10: "Ban list operations").
type BanList struct {
	mu       sync.Mutex
	prefixes [][meshcore.BanPrefixSize]byte
	capacity int
}

// NewBanList returns an empty BanList with the given capacity.
func NewBanList(capacity int) *BanList {
	return &BanList{capacity: capacity}
}

func (l *BanList) indexOf(prefix [meshcore.BanPrefixSize]byte) int {
	for i, p := range l.prefixes {
		if p == prefix {
			return i
		}
	}
	return -1
}

// Add appends prefix if not already present and the list is not full.
// Returns (added, full): full is true whether or not the add succeeded,
// if the list was at capacity (spec.md §4.10: "ban(prefix): if not
// already present and list not full, append... always publish even if
// the list was full").
func (l *BanList) Add(prefix [meshcore.BanPrefixSize]byte) (added bool, full bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(prefix) >= 0 {
		return false, len(l.prefixes) >= l.capacity
	}
	if len(l.prefixes) >= l.capacity {
		return false, true
	}
	l.prefixes = append(l.prefixes, prefix)
	return true, false
}

// Remove swap-removes prefix from the list (spec.md §4.10: "unban
// (prefix): swap-remove by prefix").
func (l *BanList) Remove(prefix [meshcore.BanPrefixSize]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(prefix)
	if idx < 0 {
		return false
	}
	last := len(l.prefixes) - 1
	l.prefixes[idx] = l.prefixes[last]
	l.prefixes = l.prefixes[:last]
	return true
}

// Contains reports whether prefix is currently banned.
func (l *BanList) Contains(prefix [meshcore.BanPrefixSize]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexOf(prefix) >= 0
}

// All returns a snapshot copy of the banned prefixes.
func (l *BanList) All() [][meshcore.BanPrefixSize]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][meshcore.BanPrefixSize]byte, len(l.prefixes))
	copy(out, l.prefixes)
	return out
}

// Denies reports whether pkt's source should be dropped per the ban
// list's payload-type-specific source check (spec.md §4.10: "enforce
// the ban list (ADVERTs: compare first 4 bytes of payload with each
// banned prefix; TXT_MSG / REQ / RESPONSE / PATH: compare the 1-byte
// source hash at payload[1] with the banned prefix's first byte; other
// types: no source check)").
func (l *BanList) Denies(pkt *meshcore.Packet) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch pkt.PayloadType {
	case meshcore.PayloadAdvert:
		if len(pkt.Payload) < meshcore.BanPrefixSize {
			return false
		}
		var prefix [meshcore.BanPrefixSize]byte
		copy(prefix[:], pkt.Payload[:meshcore.BanPrefixSize])
		return l.indexOf(prefix) >= 0
	case meshcore.PayloadTxtMsg, meshcore.PayloadReq, meshcore.PayloadResponse, meshcore.PayloadPath:
		if len(pkt.Payload) < 2 {
			return false
		}
		hash := pkt.Payload[1]
		for _, p := range l.prefixes {
			if p[0] == hash {
				return true
			}
		}
		return false
	default:
		return false
	}
}

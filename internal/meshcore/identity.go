// Package meshcore defines the wire-level data model shared by every
// component of the repeater core: identities, packets, payload types,
// and the fixed-layout structures exchanged over the radio link
// (spec.md §3, §6).
package meshcore

import (
	"crypto/sha256"

	"filippo.io/edwards25519"
)

// PubKeySize is the length in bytes of a node's public key (spec.md §3:
// "a 32-byte public key").
const PubKeySize = 32

// MaxPathSize is the maximum length in bytes of an accumulated packet
// path (spec.md §3: "path (0-64 bytes)").
const MaxPathSize = 64

// MaxPayloadSize is the maximum payload length carried by a packet.
// MeshCore's on-air MTU leaves this much room after the header.
const MaxPayloadSize = 184

// Identity is a node's 32-byte public key plus its derived hash byte
// (spec.md §3: "a 32-byte public key plus the public-key derived hash
// byte (first byte of the key)").
type Identity struct {
	PubKey [PubKeySize]byte
}

// HashByte returns the single-byte hash used to demultiplex packets that
// carry only a truncated source identifier (spec.md §3: "Hash match uses
// only the first byte").
func (id Identity) HashByte() byte {
	return id.PubKey[0]
}

// Equal reports whether two identities share the same public key
// (spec.md §3: "Two identities match iff their public keys are equal").
func (id Identity) Equal(other Identity) bool {
	return id.PubKey == other.PubKey
}

// IsZero reports whether the identity is the empty/unset identity.
// NeighbourTable treats a slot whose first four key bytes are all zero
// as empty (spec.md §3); this checks the full key for general use.
func (id Identity) IsZero() bool {
	return id.PubKey == [PubKeySize]byte{}
}

// HasPrefix reports whether the identity's public key begins with prefix.
// Used by ACL/neighbour prefix lookups (spec.md §4.2, §4.3).
func (id Identity) HasPrefix(prefix []byte) bool {
	if len(prefix) > PubKeySize {
		return false
	}
	for i, b := range prefix {
		if id.PubKey[i] != b {
			return false
		}
	}
	return true
}

// IdentityFromPubKey builds an Identity from a raw public key slice.
// Returns false if pk is not exactly PubKeySize bytes.
func IdentityFromPubKey(pk []byte) (Identity, bool) {
	if len(pk) != PubKeySize {
		return Identity{}, false
	}
	var id Identity
	copy(id.PubKey[:], pk)
	return id, true
}

// VerifyAdvertSignature checks an Ed25519 signature over an advert's
// signed prefix using the sender's public key. MeshCore signs adverts
// with the node's Ed25519 identity key; edwards25519 gives us the point
// arithmetic needed to reject public keys that do not decode to a curve
// point before handing them to crypto/ed25519's Verify.
func VerifyAdvertSignature(pubKey, signedData, signature []byte) bool {
	if len(pubKey) != PubKeySize {
		return false
	}
	if _, err := new(edwards25519.Point).SetBytes(pubKey); err != nil {
		return false
	}
	return verifyEd25519(pubKey, signedData, signature)
}

// fingerprint returns a content hash over the supplied fields, used by
// SeenTable (spec.md §4.1) and the bridge's loop-suppression table
// (spec.md §4.10). SHA-256 is truncated to fingerprintSize bytes, which
// is ample for a dedupe table a few hundred entries deep.
const fingerprintSize = 8

// Fingerprint computes a short content hash over the supplied byte
// slices, concatenated in order. It is implementation-defined per
// spec.md §3 ("implementation-defined >=4-byte hash of the packet's
// header+payload"); SHA-256 truncated to 8 bytes is collision-resistant
// enough for a table capped at a few hundred live entries.
func Fingerprint(parts ...[]byte) [fingerprintSize]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	var out [fingerprintSize]byte
	copy(out[:], sum)
	return out
}

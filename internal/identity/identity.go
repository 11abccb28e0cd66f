// Package identity bootstraps and persists the node's long-term key
// material: the X25519 identity key pair (meshcore.Identity.PubKey plus
// its private scalar) and the Ed25519 signing key pair used for adverts
// (spec.md §3, §4.8). Neither spec.md nor original_source/ specifies a
// wire or file format for this key material since the firmware it was
// distilled from keeps keys in flash rather than a filesystem; the format
// here is local to this package.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/persist"
)

// fileSize is the on-disk layout: 32-byte X25519 priv, 32-byte Ed25519
// pub, 64-byte Ed25519 priv. The X25519 pub half is re-derived on load
// rather than stored, so a corrupted-but-plausible-length file cannot
// carry a pub/priv mismatch.
const fileSize = 32 + ed25519.PublicKeySize + ed25519.PrivateKeySize

// Keys bundles everything core.Deps needs to identify and sign as this
// node.
type Keys struct {
	Self      meshcore.Identity
	LocalPriv [32]byte
	SignPub   ed25519.PublicKey
	SignPriv  ed25519.PrivateKey
}

// LoadOrCreate reads Keys from path, generating and persisting a fresh
// key pair on first run (spec.md has no equivalent; this is the one
// piece of node state that is never reloaded or re-derived at runtime,
// so it bypasses persist.Store's coalescing-timer machinery and uses
// persist.AtomicWrite directly, once).
func LoadOrCreate(path string) (Keys, error) {
	data, ok, err := persist.ReadFile(path)
	if err != nil {
		return Keys{}, fmt.Errorf("read identity file: %w", err)
	}
	if ok && len(data) == fileSize {
		return decode(data)
	}

	self, localPriv, err := meshcore.GenerateX25519KeyPair(rand.Reader)
	if err != nil {
		return Keys{}, fmt.Errorf("generate x25519 key pair: %w", err)
	}
	signPub, signPriv, err := meshcore.GenerateEd25519KeyPair(rand.Reader)
	if err != nil {
		return Keys{}, fmt.Errorf("generate ed25519 key pair: %w", err)
	}

	keys := Keys{Self: self, LocalPriv: localPriv, SignPub: signPub, SignPriv: signPriv}
	if err := persist.AtomicWrite(path, encode(keys)); err != nil {
		return Keys{}, fmt.Errorf("persist identity file: %w", err)
	}
	return keys, nil
}

func encode(k Keys) []byte {
	out := make([]byte, 0, fileSize)
	out = append(out, k.LocalPriv[:]...)
	out = append(out, k.SignPub...)
	out = append(out, k.SignPriv...)
	return out
}

func decode(data []byte) (Keys, error) {
	var k Keys
	copy(k.LocalPriv[:], data[0:32])
	off := 32

	pub, err := curve25519.X25519(k.LocalPriv[:], curve25519.Basepoint)
	if err != nil {
		return Keys{}, fmt.Errorf("derive x25519 public key: %w", err)
	}
	id, ok := meshcore.IdentityFromPubKey(pub)
	if !ok {
		return Keys{}, fmt.Errorf("derive x25519 public key: unexpected length %d", len(pub))
	}
	k.Self = id

	k.SignPub = append(ed25519.PublicKey(nil), data[off:off+ed25519.PublicKeySize]...)
	off += ed25519.PublicKeySize
	k.SignPriv = append(ed25519.PrivateKey(nil), data[off:off+ed25519.PrivateKeySize]...)
	return k, nil
}

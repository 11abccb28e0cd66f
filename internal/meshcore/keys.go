package meshcore

import (
	"crypto/ed25519"
	"io"

	"golang.org/x/crypto/curve25519"
)

// GenerateX25519KeyPair derives a fresh X25519 private scalar from r and
// computes the corresponding public key (spec.md §3: "a 32-byte public
// key"). This is the key pair used for the ECDH step on login
// (DeriveSharedSecret); Identity.PubKey always holds the X25519 public
// half.
func GenerateX25519KeyPair(r io.Reader) (Identity, [32]byte, error) {
	var priv [32]byte
	if _, err := io.ReadFull(r, priv[:]); err != nil {
		return Identity{}, [32]byte{}, err
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return Identity{}, [32]byte{}, err
	}
	var id Identity
	copy(id.PubKey[:], pub)
	return id, priv, nil
}

// GenerateEd25519KeyPair generates the signing key pair used to sign
// outgoing adverts (spec.md §4.8; VerifyAdvertSignature checks the
// signature a peer's advert carries against this key's public half).
// MeshCore nodes carry this as a key distinct from the X25519 identity
// key rather than deriving one from the other, so both are generated
// independently here.
func GenerateEd25519KeyPair(r io.Reader) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(r)
}

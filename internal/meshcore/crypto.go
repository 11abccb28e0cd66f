package meshcore

import (
	"crypto/ed25519"
	"crypto/sha256"

	"golang.org/x/crypto/curve25519"
)

// SharedSecretSize is the length of a derived per-client shared secret
// (spec.md §3: ClientRecord.shared_secret, 32 bytes).
const SharedSecretSize = 32

// verifyEd25519 wraps crypto/ed25519.Verify, tolerating the library's
// panic-on-bad-length behavior by pre-checking sizes (spec.md §9: "no
// path in the core may abort on bad input").
func verifyEd25519(pubKey, data, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pubKey, data, sig)
}

// DeriveSharedSecret computes a per-client shared secret from the
// repeater's local X25519 private scalar and the client's public key,
// the same Diffie-Hellman step MeshCore performs on every login
// (original_source: IdentityStore's calcSharedSecretFor). The result is
// cached on the ACL record (spec.md §3, ClientRecord.shared_secret) so
// subsequent authenticated requests skip the scalar multiplication.
func DeriveSharedSecret(localPriv [32]byte, peerPub [32]byte) ([SharedSecretSize]byte, bool) {
	shared, err := curve25519.X25519(localPriv[:], peerPub[:])
	if err != nil {
		return [SharedSecretSize]byte{}, false
	}
	var out [SharedSecretSize]byte
	copy(out[:], shared)
	return out, true
}

// AckHashSize is the length of the truncated-SHA-256 ACK fingerprint
// (spec.md §4.7: "compute a 4-byte truncated SHA-256").
const AckHashSize = 4

// AckHash computes the 4-byte truncated SHA-256 used to acknowledge a
// PLAIN text message: SHA-256(sender_ts || text || sender_pubkey)
// (spec.md §4.7: "Sub-type PLAIN additionally triggers an ACK").
func AckHash(senderTS uint32, text []byte, senderPubKey [PubKeySize]byte) [AckHashSize]byte {
	buf := make([]byte, 0, 4+len(text)+PubKeySize)
	buf = appendU32LE(buf, senderTS)
	buf = append(buf, text...)
	buf = append(buf, senderPubKey[:]...)
	sum := sha256.Sum256(buf)
	var out [AckHashSize]byte
	copy(out[:], sum[:])
	return out
}

func appendU32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

package meshcore

import "crypto/ed25519"

// MaxAdvertAppDataSize bounds the optional application data an advert
// may carry (GLOSSARY: "public key + optional app data").
const MaxAdvertAppDataSize = 32

// advertFixedHeaderSize is the length of the fixed part of an advert
// payload that precedes the app data: identity pubkey + signing pubkey +
// timestamp + app data length.
const advertFixedHeaderSize = PubKeySize + ed25519.PublicKeySize + 4 + 1

// EncodeAdvert builds and signs an advert payload: identity pubkey (32),
// Ed25519 signing pubkey (32), timestamp (4, little-endian), app data
// length (1) + app data, followed by a 64-byte Ed25519 signature over
// everything preceding it (spec.md §4.8, GLOSSARY: "Advert").
func EncodeAdvert(self Identity, signPub ed25519.PublicKey, signPriv ed25519.PrivateKey, timestamp uint32, appData []byte) []byte {
	if len(appData) > MaxAdvertAppDataSize {
		appData = appData[:MaxAdvertAppDataSize]
	}
	buf := make([]byte, 0, advertFixedHeaderSize+len(appData)+ed25519.SignatureSize)
	buf = append(buf, self.PubKey[:]...)
	buf = append(buf, signPub...)
	buf = PutU32LE(buf, timestamp)
	buf = append(buf, byte(len(appData)))
	buf = append(buf, appData...)

	sig := ed25519.Sign(signPriv, buf)
	return append(buf, sig...)
}

// Advert is a parsed, signature-verified advert payload.
type Advert struct {
	Identity  Identity
	Timestamp uint32
	AppData   []byte
}

// DecodeAdvert parses and verifies an advert payload built by
// EncodeAdvert. Returns false on any malformed input or signature
// failure rather than panicking (spec.md §9: no panics on bad input).
func DecodeAdvert(b []byte) (Advert, bool) {
	if len(b) < advertFixedHeaderSize+ed25519.SignatureSize {
		return Advert{}, false
	}

	off := 0
	var id Identity
	copy(id.PubKey[:], b[off:off+PubKeySize])
	off += PubKeySize

	signPub := append([]byte(nil), b[off:off+ed25519.PublicKeySize]...)
	off += ed25519.PublicKeySize

	ts, ok := ReadU32LE(b[off:])
	if !ok {
		return Advert{}, false
	}
	off += 4

	appLen := int(b[off])
	off++
	if appLen > MaxAdvertAppDataSize || len(b) < off+appLen+ed25519.SignatureSize {
		return Advert{}, false
	}
	appData := append([]byte(nil), b[off:off+appLen]...)
	off += appLen

	signedData := b[:off]
	sig := b[off : off+ed25519.SignatureSize]
	if !VerifyAdvertSignature(signPub, signedData, sig) {
		return Advert{}, false
	}

	return Advert{Identity: id, Timestamp: ts, AppData: appData}, true
}

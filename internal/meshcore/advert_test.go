package meshcore

import (
	"crypto/rand"
	"testing"
)

func TestEncodeDecodeAdvertRoundTrip(t *testing.T) {
	self, _, err := GenerateX25519KeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateX25519KeyPair: %v", err)
	}
	signPub, signPriv, err := GenerateEd25519KeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair: %v", err)
	}

	appData := []byte("hello mesh")
	encoded := EncodeAdvert(self, signPub, signPriv, 12345, appData)

	advert, ok := DecodeAdvert(encoded)
	if !ok {
		t.Fatal("DecodeAdvert failed on a well-formed advert")
	}
	if !advert.Identity.Equal(self) {
		t.Fatalf("Identity mismatch: got %v, want %v", advert.Identity, self)
	}
	if advert.Timestamp != 12345 {
		t.Fatalf("Timestamp = %d, want 12345", advert.Timestamp)
	}
	if string(advert.AppData) != "hello mesh" {
		t.Fatalf("AppData = %q, want %q", advert.AppData, "hello mesh")
	}
}

func TestDecodeAdvertRejectsTamperedSignature(t *testing.T) {
	self, _, _ := GenerateX25519KeyPair(rand.Reader)
	signPub, signPriv, _ := GenerateEd25519KeyPair(rand.Reader)
	encoded := EncodeAdvert(self, signPub, signPriv, 1, nil)
	encoded[len(encoded)-1] ^= 0xFF

	if _, ok := DecodeAdvert(encoded); ok {
		t.Fatal("expected tampered signature to be rejected")
	}
}

func TestDecodeAdvertRejectsTruncated(t *testing.T) {
	if _, ok := DecodeAdvert([]byte{0x01, 0x02}); ok {
		t.Fatal("expected truncated advert to be rejected")
	}
}

func TestEncodeAdvertTruncatesOversizedAppData(t *testing.T) {
	self, _, _ := GenerateX25519KeyPair(rand.Reader)
	signPub, signPriv, _ := GenerateEd25519KeyPair(rand.Reader)
	oversized := make([]byte, MaxAdvertAppDataSize+16)
	for i := range oversized {
		oversized[i] = byte(i)
	}

	encoded := EncodeAdvert(self, signPub, signPriv, 1, oversized)
	advert, ok := DecodeAdvert(encoded)
	if !ok {
		t.Fatal("expected truncated-app-data advert to still decode")
	}
	if len(advert.AppData) != MaxAdvertAppDataSize {
		t.Fatalf("AppData len = %d, want %d", len(advert.AppData), MaxAdvertAppDataSize)
	}
}

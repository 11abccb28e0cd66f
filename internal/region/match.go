package region

// TransportKey identifies a transport-code pair used to scope
// TransportFlood/TransportDirect packets to a region (spec.md §4.5:
// "Packet matching... if the packet has transport codes, look them up in
// a key store to resolve a region").
type TransportKey struct {
	Code1 uint16
	Code2 uint16
}

// KeyStore resolves transport codes to region IDs.
type KeyStore struct {
	byCodes map[TransportKey]uint16
}

// NewKeyStore returns an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{byCodes: make(map[TransportKey]uint16)}
}

// Set associates a transport-code pair with a region ID.
func (k *KeyStore) Set(code1, code2 uint16, regionID uint16) {
	k.byCodes[TransportKey{code1, code2}] = regionID
}

// Resolve returns the region ID for a transport-code pair, if known.
func (k *KeyStore) Resolve(code1, code2 uint16) (uint16, bool) {
	id, ok := k.byCodes[TransportKey{code1, code2}]
	return id, ok
}

// Match resolves the region for a packet carrying optional transport
// codes. With no transport codes, the wildcard root applies. With
// codes that resolve through keys, the resolved entry is returned; with
// codes that don't resolve, ok is false (spec.md §4.5: "Packet
// matching. match(pkt, mask): if the packet has transport codes, look
// them up in a key store to resolve a region; otherwise return the
// wildcard."; §4.6: "a TransportFlood packet arrived with transport
// codes whose region is unknown" is a separate forward-decision case).
func (m *Map) Match(keys *KeyStore, hasCodes bool, code1, code2 uint16) (entry Entry, resolved bool) {
	if !hasCodes {
		root, _ := m.FindByID(RootID)
		return root, true
	}
	id, ok := keys.Resolve(code1, code2)
	if !ok {
		return Entry{}, false
	}
	e, ok := m.FindByID(id)
	if !ok {
		return Entry{}, false
	}
	return e, true
}

// DeniesFlood applies the deny check: (resolved.flags & mask) != 0
// (spec.md §4.5: "The deny check is (resolved.flags & mask) != 0").
func DeniesFlood(e Entry, mask uint8) bool {
	return e.Flags&mask != 0
}

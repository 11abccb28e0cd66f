package bridge

import (
	"errors"
	"sync"

	"github.com/dantte-lp/meshrepd/internal/config"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/seen"
)

// ErrBannedAwaitingCreds is returned by Start when the node has
// self-banned and the operator has not yet supplied new, non-default
// MQTT credentials and topic (spec.md §4.10: "Reconnection is refused
// until the operator has set non-default credentials AND a non-default
// topic").
var ErrBannedAwaitingCreds = errors.New("bridge: self-banned, awaiting non-default credentials")

// Bridge implements BridgeCore (spec.md §4.10). It owns its own
// SeenTable, distinct from the mesh ingress SeenTable owned by the
// router (spec.md §5: "The bridge SeenTable and the mesh SeenTable are
// distinct instances").
type Bridge struct {
	mu sync.Mutex

	cfg       config.BridgeConfig
	self      meshcore.Identity
	seen      *seen.Table
	bans      *BanList
	transport Transport

	connected      bool
	banned         bool
	selfBanPending bool

	// onPrefsDirty is invoked after a self-ban wipes bridge credentials,
	// so the caller can route it to Persistence's dirty-flag mechanism
	// (spec.md §4.10: "persists prefs"; §4.11).
	onPrefsDirty func()
}

// New returns a Bridge with its own SeenTable and ban list, not yet
// connected to any transport.
func New(cfg config.BridgeConfig, self meshcore.Identity, seenCapacity int, onPrefsDirty func()) *Bridge {
	return &Bridge{
		cfg:          cfg,
		self:         self,
		seen:         seen.New(seenCapacity),
		bans:         NewBanList(BanListCapacity),
		onPrefsDirty: onPrefsDirty,
	}
}

// SetTransport wires the concrete transport (spec.md §1: the backhaul
// transport is supplied by the application, not constructed here).
func (b *Bridge) SetTransport(t Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transport = t
}

// Config returns a copy of the bridge's current configuration.
func (b *Bridge) Config() config.BridgeConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// SetConfig replaces the bridge's configuration, e.g. after an operator
// sets new credentials following a self-ban.
func (b *Bridge) SetConfig(cfg config.BridgeConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

// Banned reports whether the node is currently in the self-banned
// state.
func (b *Bridge) Banned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.banned
}

// Start connects the bridge's transport, refusing while self-banned
// and still holding default credentials (spec.md §4.10).
func (b *Bridge) Start() error {
	b.mu.Lock()
	cfg := b.cfg
	banned := b.banned
	transport := b.transport
	b.mu.Unlock()

	if banned && cfg.IsDefaultBridgeCreds() {
		return ErrBannedAwaitingCreds
	}
	if transport == nil {
		return errors.New("bridge: no transport configured")
	}
	if err := transport.Connect(); err != nil {
		return err
	}

	b.mu.Lock()
	b.connected = true
	if banned {
		// Successful reconnect with non-default creds clears the ban
		// (spec.md §4.10: "the ban is cleared automatically on
		// successful connect").
		b.banned = false
	}
	b.mu.Unlock()
	return nil
}

// Stop disconnects the bridge's transport.
func (b *Bridge) Stop() {
	b.mu.Lock()
	transport := b.transport
	b.connected = false
	b.mu.Unlock()
	if transport != nil {
		transport.Disconnect()
	}
}

// Connected reports whether the bridge currently believes it is
// connected.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Ban adds prefix to the local ban list and publishes a ban command so
// other sites learn it too (spec.md §4.10: "always publish even if the
// list was full").
func (b *Bridge) Ban(prefix [meshcore.BanPrefixSize]byte) bool {
	added, full := b.bans.Add(prefix)
	if added || full {
		b.mu.Lock()
		transport := b.transport
		b.mu.Unlock()
		if transport != nil {
			_ = transport.Publish(meshcore.EncodeBanCommand(prefix))
		}
	}
	return added
}

// Unban removes prefix from the local ban list.
func (b *Bridge) Unban(prefix [meshcore.BanPrefixSize]byte) bool {
	return b.bans.Remove(prefix)
}

// BannedPrefixes returns a snapshot of the ban list.
func (b *Bridge) BannedPrefixes() [][meshcore.BanPrefixSize]byte {
	return b.bans.All()
}

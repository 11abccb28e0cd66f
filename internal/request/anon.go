package request

import (
	"bytes"
	"crypto/subtle"
	"time"

	"github.com/dantte-lp/meshrepd/internal/acl"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
	"github.com/dantte-lp/meshrepd/internal/region"
)

// Anonymous request discriminators (spec.md §4.7).
const (
	anonDiscrRegions   byte = 0x01
	anonDiscrOwnerInfo byte = 0x02
	anonDiscrClock     byte = 0x03
)

// isLoginDiscriminator reports whether b selects the login path
// (spec.md §4.7: "0 or value >= 0x20 -> login attempt").
func isLoginDiscriminator(b byte) bool {
	return b == 0 || b >= 0x20
}

// HandleAnonRequest dispatches an ANON_REQ packet's payload. sender is
// the requester's identity, carried outside Packet by the frame header
// in the wire format this core targets; arrivedViaFlood tells the
// handler which reply-routing branch applies (spec.md §4.7).
//
// Returns (nil, false) when no reply should be sent: a malformed
// payload, an invalid password, or a rate-limited read request
// (spec.md §7: InvalidPassword and RateLimited both mean "reply length
// 0").
func (h *Handler) HandleAnonRequest(payload []byte, sender meshcore.Identity, arrivedViaFlood bool, now time.Time) (*Reply, bool) {
	if len(payload) < 5 {
		return nil, false
	}
	ts, _ := meshcore.ReadU32LE(payload[0:4])
	discriminator := payload[4]
	rest := payload[5:]

	if isLoginDiscriminator(discriminator) {
		return h.handleLogin(ts, rest, sender, arrivedViaFlood, now)
	}

	pathLen, replyPath, ok := parseReplyPathPrefix(rest)
	if !ok {
		return nil, false
	}
	_ = pathLen
	if !h.anonLimiter.Allow(now) {
		return nil, false
	}

	switch discriminator {
	case anonDiscrRegions:
		return h.handleRegionsRequest(ts, replyPath, arrivedViaFlood, now)
	case anonDiscrOwnerInfo:
		return h.handleOwnerInfoRequest(ts, replyPath, arrivedViaFlood, now)
	case anonDiscrClock:
		return h.handleClockRequest(ts, replyPath, arrivedViaFlood, now)
	default:
		return nil, false
	}
}

// parseReplyPathPrefix reads the {reply_path_len, reply_path} prefix
// shared by the three anonymous read requests (spec.md §4.7: "All three
// read requests must carry {reply_path_len, reply_path} prefix").
func parseReplyPathPrefix(b []byte) (pathLen int, path []byte, ok bool) {
	if len(b) < 1 {
		return 0, nil, false
	}
	n := int(b[0])
	if len(b) < 1+n {
		return 0, nil, false
	}
	return n, b[1 : 1+n], true
}

// handleLogin implements the login-attempt branch of ANON_REQ (spec.md
// §4.7).
func (h *Handler) handleLogin(ts uint32, passwordField []byte, sender meshcore.Identity, arrivedViaFlood bool, now time.Time) (*Reply, bool) {
	password := passwordField
	if i := bytes.IndexByte(passwordField, 0); i >= 0 {
		password = passwordField[:i]
	}

	existing, hasExisting := h.acl.GetByPubKey(sender)
	if hasExisting && ts <= existing.LastTimestamp {
		return nil, false // ReplayDetected: drop silently (spec.md §7)
	}

	roleBits, ok := h.resolveLoginRole(password, hasExisting, existing)
	if !ok {
		return nil, false // InvalidPassword: reply length 0 (spec.md §7)
	}

	secret, ok := meshcore.DeriveSharedSecret(h.localPriv, sender.PubKey)
	if !ok {
		return nil, false
	}

	// A login that arrived via flood cannot trust any previously
	// learned out_path; force rediscovery (spec.md §4.7: "If the login
	// arrived via flood, mark the out_path as unknown so it is
	// rediscovered").
	h.acl.UpdateLogin(sender, secret, roleBits, ts, now.Unix(), arrivedViaFlood)

	unique := h.clk.UniqueWallSeconds()
	buf := make([]byte, 0, 13)
	buf = meshcore.PutU32LE(buf, unique)
	buf = append(buf, 0) // RESP_LOGIN_OK
	buf = append(buf, 0)
	isAdmin := byte(0)
	if acl.IsAdmin(roleBits) {
		isAdmin = 1
	}
	buf = append(buf, isAdmin)
	buf = append(buf, roleBits)
	var rnd [4]byte
	_, _ = h.rng.Read(rnd[:])
	buf = append(buf, rnd[:]...)
	buf = append(buf, h.cfg.FirmwareLevel)

	route, path := decideRoute(arrivedViaFlood, nil, nil, true)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

// resolveLoginRole applies the password/whitelist policy (spec.md
// §4.7: "A blank password is acceptable only if the sender's public key
// already exists in the ACL (whitelisted)").
func (h *Handler) resolveLoginRole(password []byte, hasExisting bool, existing *acl.Record) (uint8, bool) {
	if len(password) == 0 {
		if !hasExisting {
			return 0, false
		}
		return existing.Permissions, true
	}
	if h.cfg.AdminPassword != "" && ctEqual(password, h.cfg.AdminPassword) {
		return acl.PermAdmin | acl.PermGuest, true
	}
	if h.cfg.GuestPassword != "" && ctEqual(password, h.cfg.GuestPassword) {
		return acl.PermGuest, true
	}
	return 0, false
}

func ctEqual(a []byte, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, []byte(b)) == 1
}

// handleRegionsRequest replies with the comma-joined list of regions
// that do not deny flood (spec.md §4.7).
func (h *Handler) handleRegionsRequest(ts uint32, replyPath []byte, arrivedViaFlood bool, now time.Time) (*Reply, bool) {
	names := h.regions.ExportNames(region.FlagDenyFlood, false)
	buf := make([]byte, 0, 8+len(names))
	buf = meshcore.PutU32LE(buf, ts)
	buf = meshcore.PutU32LE(buf, uint32(now.Unix()))
	buf = append(buf, []byte(names)...)

	route, path := decideRoute(arrivedViaFlood, replyPath, nil, true)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

// handleOwnerInfoRequest replies with the node's name and owner info
// (spec.md §4.7).
func (h *Handler) handleOwnerInfoRequest(ts uint32, replyPath []byte, arrivedViaFlood bool, now time.Time) (*Reply, bool) {
	text := h.cfg.NodeName + "\n" + h.cfg.OwnerInfo
	buf := make([]byte, 0, 8+len(text))
	buf = meshcore.PutU32LE(buf, ts)
	buf = meshcore.PutU32LE(buf, uint32(now.Unix()))
	buf = append(buf, []byte(text)...)

	route, path := decideRoute(arrivedViaFlood, replyPath, nil, true)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

// handleClockRequest replies with the current time and feature bits
// (spec.md §4.7).
func (h *Handler) handleClockRequest(ts uint32, replyPath []byte, arrivedViaFlood bool, now time.Time) (*Reply, bool) {
	buf := make([]byte, 0, 9)
	buf = meshcore.PutU32LE(buf, ts)
	buf = meshcore.PutU32LE(buf, uint32(now.Unix()))
	buf = append(buf, h.cfg.featureBits())

	route, path := decideRoute(arrivedViaFlood, replyPath, nil, true)
	return &Reply{PayloadType: meshcore.PayloadResponse, Payload: buf, Route: route, Path: path}, true
}

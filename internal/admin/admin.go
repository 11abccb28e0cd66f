// Package admin implements the operator-facing JSON-over-HTTP API for a
// running node (not present in spec.md; added per SPEC_FULL.md's DOMAIN
// STACK now that the teacher's ConnectRPC/gRPC stack is dropped — see
// DESIGN.md). Each handler is a thin adapter between HTTP and the
// internal/core.Core Submit-backed operations, mirroring the teacher's
// internal/server package's role as "a thin adapter between API and
// domain".
package admin

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dantte-lp/meshrepd/internal/core"
	"github.com/dantte-lp/meshrepd/internal/meshcore"
)

// maxBodyBytes bounds request bodies this API will decode, guarding
// against a caller streaming an unbounded body at a JSON decoder.
const maxBodyBytes = 1 << 20

// Server adapts a *core.Core to net/http.
type Server struct {
	core   *core.Core
	log    *slog.Logger
	rps    float64
	burst  int
	mu     sync.Mutex
	limits map[string]*rate.Limiter
}

// New returns a Server backed by c. rps/burst configure the per-client
// rate limiter (spec.md carries no notion of this surface; config.AdminConfig
// supplies the values per SPEC_FULL.md).
func New(c *core.Core, log *slog.Logger, rps float64, burst int) *Server {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Server{
		core:   c,
		log:    log.With(slog.String("component", "admin")),
		rps:    rps,
		burst:  burst,
		limits: make(map[string]*rate.Limiter),
	}
}

// Handler returns the mux serving every admin route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/acl", s.handleListACL)
	mux.HandleFunc("POST /v1/acl/permissions", s.handleSetACLPermissions)
	mux.HandleFunc("GET /v1/neighbours", s.handleListNeighbours)
	mux.HandleFunc("GET /v1/regions", s.handleListRegions)
	mux.HandleFunc("POST /v1/regions/reload", s.handleReloadRegions)
	mux.HandleFunc("POST /v1/bridge/ban", s.handleBanBridgeSender)
	mux.HandleFunc("POST /v1/bridge/unban", s.handleUnbanBridgeSender)
	return s.withMiddleware(mux)
}

// withMiddleware wraps h with request-ID assignment, access logging and
// per-client rate limiting (spec.md silent on this; grounded on the
// teacher's per-RPC InfoContext logging idiom in internal/server).
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		if !s.allow(r) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		start := time.Now()
		h.ServeHTTP(w, r)
		s.log.Info("admin request",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) allow(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	s.mu.Lock()
	lim, ok := s.limits[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.rps), s.burst)
		s.limits[host] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.core.GetStatus(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListACL(w http.ResponseWriter, r *http.Request) {
	entries, err := s.core.ListACL(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type setACLPermissionsRequest struct {
	PubKeyHex   string `json:"pub_key_hex"`
	Permissions uint8  `json:"permissions"`
}

func (s *Server) handleSetACLPermissions(w http.ResponseWriter, r *http.Request) {
	var req setACLPermissionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ok, err := s.core.SetACLPermissions(r.Context(), req.PubKeyHex, req.Permissions)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no such ACL record"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListNeighbours(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	entries, err := s.core.ListNeighbours(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.core.ListRegions(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type reloadRegionsRequest struct {
	Lines []string `json:"lines"`
}

func (s *Server) handleReloadRegions(w http.ResponseWriter, r *http.Request) {
	var req reloadRegionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	accepted, err := s.core.ReloadRegions(r.Context(), req.Lines)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"accepted": accepted})
}

type banRequest struct {
	PrefixHex string `json:"prefix_hex"`
}

func parseBanPrefix(hexStr string) ([meshcore.BanPrefixSize]byte, bool) {
	var prefix [meshcore.BanPrefixSize]byte
	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != meshcore.BanPrefixSize {
		return prefix, false
	}
	copy(prefix[:], raw)
	return prefix, true
}

func (s *Server) handleBanBridgeSender(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prefix, ok := parseBanPrefix(req.PrefixHex)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("prefix_hex must be 4 bytes of hex"))
		return
	}
	banned, err := s.core.BanBridgeSender(r.Context(), prefix)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": banned})
}

func (s *Server) handleUnbanBridgeSender(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prefix, ok := parseBanPrefix(req.PrefixHex)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("prefix_hex must be 4 bytes of hex"))
		return
	}
	unbanned, err := s.core.UnbanBridgeSender(r.Context(), prefix)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": unbanned})
}

// statusFor maps a Submit error (almost always context cancellation or
// deadline expiry, since every Core operation returns a discriminated
// result rather than a domain error) to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must be non-negative")
	}
	return n, nil
}

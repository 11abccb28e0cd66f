// Package config manages meshrepd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete meshrepd configuration.
type Config struct {
	Node    NodeConfig    `koanf:"node"`
	Radio   RadioConfig   `koanf:"radio"`
	Bridge  BridgeConfig  `koanf:"bridge"`
	ACL     ACLConfig     `koanf:"acl"`
	Regions RegionsConfig `koanf:"regions"`
	Log     LogConfig     `koanf:"log"`
	Admin   AdminConfig   `koanf:"admin"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// NodeConfig holds identity and operator-facing prefs (spec.md §4.7's
// owner-info/node-name replies; supplemented feature, see SPEC_FULL.md).
type NodeConfig struct {
	Name             string `koanf:"name"`
	OwnerInfo        string `koanf:"owner_info"`
	FirmwareLevel    uint8  `koanf:"firmware_level"`
	ForwardingEnabled bool  `koanf:"forwarding_enabled"`
	FloodMax         int    `koanf:"flood_max"`
	TxDelayFactor       float64 `koanf:"tx_delay_factor"`
	DirectTxDelayFactor float64 `koanf:"direct_tx_delay_factor"`
	RxDelayBase         float64 `koanf:"rx_delay_base"`
	SeenCapacity        int     `koanf:"seen_capacity"`
	NeighbourCapacity   int     `koanf:"neighbour_capacity"`
	ACLCapacity         int     `koanf:"acl_capacity"`
	AdminPassword       string  `koanf:"admin_password"`
	GuestPassword       string  `koanf:"guest_password"`
	LocalAdvertMinutes  int     `koanf:"local_advert_minutes"`
	FloodAdvertHours    int     `koanf:"flood_advert_hours"`

	// ServerResponseDelayMillis is the fixed delay every RequestHandler
	// reply is queued with before release (spec.md §4.7: "All replies
	// are queued with a fixed server_response_delay").
	ServerResponseDelayMillis int64 `koanf:"server_response_delay_millis"`

	// AnonRateLimitPerMinute and DiscoverRateLimitPerMinute bound the
	// anonymous-request and discovery-response rate limiters (spec.md
	// §4.4, §4.7).
	AnonRateLimitPerMinute     int `koanf:"anon_rate_limit_per_minute"`
	DiscoverRateLimitPerMinute int `koanf:"discover_rate_limit_per_minute"`

	// NodeTypeBit and Role feed discovery filtering (spec.md §4.7).
	NodeTypeBit uint8 `koanf:"node_type_bit"`
	Role        uint8 `koanf:"role"`
	// FullPubKeyInDiscoveryResp selects the 32-byte key form instead of
	// the 6-byte prefix in discovery responses (spec.md §4.7).
	FullPubKeyInDiscoveryResp bool `koanf:"full_pubkey_in_discovery_resp"`

	// PacketLogPath and PacketLogMaxBytes configure the optional
	// diagnostic packet trace log (spec.md §4.11 supplemented feature;
	// see original_source/'s packet logging facility).
	PacketLogPath     string `koanf:"packet_log_path"`
	PacketLogMaxBytes int64  `koanf:"packet_log_max_bytes"`
}

// RadioConfig holds the default/persisted radio parameters that
// RadioParamController reverts to after a temp override (spec.md §4.9).
type RadioConfig struct {
	FreqMHz   float64 `koanf:"freq_mhz"`
	BandwidthKHz float64 `koanf:"bandwidth_khz"`
	SpreadingFactor int  `koanf:"spreading_factor"`
	CodingRate      int  `koanf:"coding_rate"`

	// BindAddr and BroadcastAddr configure internal/radiolink's UDP
	// stand-in for the physical radio driver, which spec.md §1 puts out
	// of scope. Not meaningful on real hardware; left empty when a real
	// driver is wired in instead.
	BindAddr      string `koanf:"bind_addr"`
	BroadcastAddr string `koanf:"broadcast_addr"`
}

// BridgeConfig holds the MQTT backhaul settings (spec.md §4.10).
type BridgeConfig struct {
	Enabled bool   `koanf:"enabled"`
	Server  string `koanf:"server"`
	Topic   string `koanf:"topic"`
	User    string `koanf:"user"`
	Pass    string `koanf:"pass"`
}

// ACLConfig holds ACL-related defaults beyond capacity (node.acl_capacity
// holds the table size; this section is reserved for future policy knobs
// and kept separate so `acl.*` env/YAML keys stay stable as it grows).
type ACLConfig struct {
	PersistPath string `koanf:"persist_path"`
}

// RegionsConfig points at the on-disk region map snapshot (spec.md §4.5,
// §4.11: atomic file replace).
type RegionsConfig struct {
	PersistPath string `koanf:"persist_path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AdminConfig holds the operator-facing HTTP admin API configuration
// (not present in spec.md; added per SPEC_FULL.md's DOMAIN STACK to give
// the admin surface a home now that the teacher's ConnectRPC stack is
// dropped — see DESIGN.md).
type AdminConfig struct {
	Addr          string `koanf:"addr"`
	RateLimitRPS  float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int    `koanf:"rate_limit_burst"`
}

// MetricsConfig holds the Prometheus scrape endpoint configuration,
// kept separate from AdminConfig the same way the teacher keeps its
// gRPC and metrics listeners on independent addresses.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Name:                "meshrepd",
			OwnerInfo:           "",
			FirmwareLevel:       2,
			ForwardingEnabled:   true,
			FloodMax:            64,
			TxDelayFactor:       1.0,
			DirectTxDelayFactor: 0.5,
			RxDelayBase:         0,
			SeenCapacity:        256,
			NeighbourCapacity:   32,
			ACLCapacity:         64,
			LocalAdvertMinutes:  0,
			FloodAdvertHours:    0,

			ServerResponseDelayMillis:  300,
			AnonRateLimitPerMinute:     6,
			DiscoverRateLimitPerMinute: 10,
			NodeTypeBit:                1,
			Role:                       1,

			PacketLogPath:     "",
			PacketLogMaxBytes: 1 << 20,
		},
		Radio: RadioConfig{
			FreqMHz:         868.0,
			BandwidthKHz:    125.0,
			SpreadingFactor: 9,
			CodingRate:      5,
			BindAddr:        ":7420",
			BroadcastAddr:   "255.255.255.255:7420",
		},
		Bridge: BridgeConfig{
			Enabled: false,
		},
		ACL: ACLConfig{
			PersistPath: "/var/lib/meshrepd/acl.bin",
		},
		Regions: RegionsConfig{
			PersistPath: "/var/lib/meshrepd/regions.bin",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Admin: AdminConfig{
			Addr:           ":8420",
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Metrics: MetricsConfig{
			Addr: ":9420",
			Path: "/metrics",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for meshrepd configuration.
// Variables are named MESHREPD_<section>_<key>, e.g. MESHREPD_ADMIN_ADDR.
const envPrefix = "MESHREPD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (MESHREPD_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms MESHREPD_ADMIN_ADDR -> admin.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, d *Config) error {
	defaultMap := map[string]any{
		"node.name":                  d.Node.Name,
		"node.owner_info":            d.Node.OwnerInfo,
		"node.firmware_level":        d.Node.FirmwareLevel,
		"node.forwarding_enabled":    d.Node.ForwardingEnabled,
		"node.flood_max":             d.Node.FloodMax,
		"node.tx_delay_factor":       d.Node.TxDelayFactor,
		"node.direct_tx_delay_factor": d.Node.DirectTxDelayFactor,
		"node.rx_delay_base":         d.Node.RxDelayBase,
		"node.seen_capacity":         d.Node.SeenCapacity,
		"node.neighbour_capacity":    d.Node.NeighbourCapacity,
		"node.acl_capacity":          d.Node.ACLCapacity,
		"node.admin_password":        d.Node.AdminPassword,
		"node.guest_password":        d.Node.GuestPassword,
		"node.local_advert_minutes":  d.Node.LocalAdvertMinutes,
		"node.flood_advert_hours":    d.Node.FloodAdvertHours,
		"node.server_response_delay_millis":   d.Node.ServerResponseDelayMillis,
		"node.anon_rate_limit_per_minute":      d.Node.AnonRateLimitPerMinute,
		"node.discover_rate_limit_per_minute":  d.Node.DiscoverRateLimitPerMinute,
		"node.node_type_bit":                   d.Node.NodeTypeBit,
		"node.role":                            d.Node.Role,
		"node.full_pubkey_in_discovery_resp":   d.Node.FullPubKeyInDiscoveryResp,
		"node.packet_log_path":                 d.Node.PacketLogPath,
		"node.packet_log_max_bytes":            d.Node.PacketLogMaxBytes,
		"radio.freq_mhz":             d.Radio.FreqMHz,
		"radio.bandwidth_khz":        d.Radio.BandwidthKHz,
		"radio.spreading_factor":     d.Radio.SpreadingFactor,
		"radio.coding_rate":          d.Radio.CodingRate,
		"radio.bind_addr":            d.Radio.BindAddr,
		"radio.broadcast_addr":       d.Radio.BroadcastAddr,
		"bridge.enabled":             d.Bridge.Enabled,
		"bridge.server":              d.Bridge.Server,
		"bridge.topic":               d.Bridge.Topic,
		"bridge.user":                d.Bridge.User,
		"bridge.pass":                d.Bridge.Pass,
		"acl.persist_path":           d.ACL.PersistPath,
		"regions.persist_path":       d.Regions.PersistPath,
		"log.level":                  d.Log.Level,
		"log.format":                 d.Log.Format,
		"admin.addr":                 d.Admin.Addr,
		"admin.rate_limit_rps":       d.Admin.RateLimitRPS,
		"admin.rate_limit_burst":     d.Admin.RateLimitBurst,
		"metrics.addr":               d.Metrics.Addr,
		"metrics.path":               d.Metrics.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	ErrEmptyNodeName        = errors.New("node.name must not be empty")
	ErrInvalidFloodMax      = errors.New("node.flood_max must be > 0")
	ErrInvalidSeenCapacity  = errors.New("node.seen_capacity must be > 0")
	ErrInvalidACLCapacity   = errors.New("node.acl_capacity must be > 0")
	ErrEmptyAdminAddr       = errors.New("admin.addr must not be empty")
	ErrEmptyMetricsAddr     = errors.New("metrics.addr must not be empty")
	ErrBridgeMissingServer  = errors.New("bridge.server must be set when bridge.enabled is true")
)

// Validate checks the configuration for logical errors. Returns the first
// validation error encountered (same sentinel-wrapping pattern the teacher
// uses for its ErrEmptyGRPCAddr family).
func Validate(cfg *Config) error {
	if cfg.Node.Name == "" {
		return ErrEmptyNodeName
	}
	if cfg.Node.FloodMax <= 0 {
		return ErrInvalidFloodMax
	}
	if cfg.Node.SeenCapacity <= 0 {
		return ErrInvalidSeenCapacity
	}
	if cfg.Node.ACLCapacity <= 0 {
		return ErrInvalidACLCapacity
	}
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}
	if cfg.Bridge.Enabled && cfg.Bridge.Server == "" {
		return ErrBridgeMissingServer
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultMQTTServer and friends are the recognized "default" bridge
// credential values; a BridgeConfig holding either of these is treated as
// "not yet configured" by the self-ban reconnect-refusal gate (spec.md
// §4.10: "refused until the operator has set non-default credentials AND
// a non-default topic").
const (
	DefaultMQTTServer = ""
	DefaultMQTTTopic  = ""
)

// IsDefaultBridgeCreds reports whether the bridge still has default
// (unconfigured) server/topic values.
func (b BridgeConfig) IsDefaultBridgeCreds() bool {
	return b.Server == DefaultMQTTServer || b.Topic == DefaultMQTTTopic
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dantte-lp/meshrepd/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Node.Name != "meshrepd" {
		t.Errorf("Node.Name = %q, want %q", cfg.Node.Name, "meshrepd")
	}
	if cfg.Node.FloodMax != 64 {
		t.Errorf("Node.FloodMax = %d, want 64", cfg.Node.FloodMax)
	}
	if cfg.Admin.Addr != ":8420" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":8420")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
node:
  name: repeater-1
  flood_max: 32
admin:
  addr: ":9900"
log:
  level: debug
`
	dir := t.TempDir()
	path := filepath.Join(dir, "meshrepd.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node.Name != "repeater-1" {
		t.Errorf("Node.Name = %q, want %q", cfg.Node.Name, "repeater-1")
	}
	if cfg.Node.FloodMax != 32 {
		t.Errorf("Node.FloodMax = %d, want 32", cfg.Node.FloodMax)
	}
	if cfg.Admin.Addr != ":9900" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":9900")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	// Unspecified fields must inherit defaults.
	if cfg.Node.SeenCapacity != 256 {
		t.Errorf("Node.SeenCapacity = %d, want default 256", cfg.Node.SeenCapacity)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshrepd.yaml")
	if err := os.WriteFile(path, []byte("node:\n  name: base\n"), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	t.Setenv("MESHREPD_NODE_NAME", "env-override")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Node.Name != "env-override" {
		t.Errorf("Node.Name = %q, want %q (env should win over file)", cfg.Node.Name, "env-override")
	}
}

func TestValidateRejectsEmptyNodeName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Node.Name = ""
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected Validate to reject empty node name")
	}
}

func TestValidateRejectsBridgeEnabledWithoutServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bridge.Enabled = true
	cfg.Bridge.Server = ""
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected Validate to reject bridge.enabled without bridge.server")
	}
}

func TestValidateRejectsZeroFloodMax(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Node.FloodMax = 0
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected Validate to reject flood_max == 0")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"huh":   "INFO",
	}
	for in, want := range cases {
		if got := config.ParseLogLevel(in).String(); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestIsDefaultBridgeCreds(t *testing.T) {
	b := config.BridgeConfig{}
	if !b.IsDefaultBridgeCreds() {
		t.Fatal("expected zero-value BridgeConfig to be default")
	}
	b.Server = "mqtt.example.com"
	b.Topic = "mesh/site-a"
	if b.IsDefaultBridgeCreds() {
		t.Fatal("expected non-default server+topic to not be default")
	}
}

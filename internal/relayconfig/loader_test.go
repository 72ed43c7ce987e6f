package relayconfig

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
identity:
  key_file: "identity.key"
network:
  listen_addresses:
    - "0.0.0.0:33445"
onion:
  enabled: true
  udp_sink_address: "127.0.0.1:33446"
telemetry:
  metrics:
    enabled: true
    listen_address: "127.0.0.1:9091"
`

func writeTestConfig(t testing.TB, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testConfigYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Identity.KeyFile != "identity.key" {
		t.Errorf("KeyFile = %q, want %q", cfg.Identity.KeyFile, "identity.key")
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1 (defaulted)", cfg.Version)
	}
	if cfg.Resources.MaxClients != DefaultResources().MaxClients {
		t.Errorf("MaxClients = %d, want default %d", cfg.Resources.MaxClients, DefaultResources().MaxClients)
	}
	if cfg.Onion.RateLimitPerSec != DefaultOnion().RateLimitPerSec {
		t.Errorf("RateLimitPerSec = %v, want default %v", cfg.Onion.RateLimitPerSec, DefaultOnion().RateLimitPerSec)
	}
	if cfg.Keepalive.SweepInterval == 0 {
		t.Error("SweepInterval should default to a nonzero value")
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "version: 99\nidentity:\n  key_file: k\nnetwork:\n  listen_addresses: [\"0.0.0.0:1\"]\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a config version newer than supported")
	}
}

func TestLoadRejectsWorldReadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an overly permissive config file")
	}
}

func TestValidateRequiresListenAddresses(t *testing.T) {
	cfg := &Config{Identity: IdentityConfig{KeyFile: "k"}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for missing listen_addresses")
	}
}

func TestValidateRequiresOnionSinkWhenEnabled(t *testing.T) {
	cfg := &Config{
		Identity: IdentityConfig{KeyFile: "k"},
		Network:  NetworkConfig{ListenAddresses: []string{"0.0.0.0:1"}},
		Onion:    OnionConfig{Enabled: true},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for onion.enabled without a sink address")
	}
}

func TestFindConfigFileRejectsMissingExplicitPath(t *testing.T) {
	if _, err := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit path")
	}
}

// Package relayconfig loads the Tox relay daemon's YAML configuration:
// identity, network listen addresses, resource limits, and telemetry
// toggles.
package relayconfig

import "time"

// CurrentConfigVersion is the latest configuration schema version. Bump
// this when adding fields that require migration.
const CurrentConfigVersion = 1

// Config is the relay server's unified configuration.
type Config struct {
	Version   int             `yaml:"version,omitempty"`
	Identity  IdentityConfig  `yaml:"identity"`
	Network   NetworkConfig   `yaml:"network"`
	Keepalive KeepaliveConfig `yaml:"keepalive,omitempty"`
	Resources ResourcesConfig `yaml:"resources,omitempty"`
	Onion     OnionConfig     `yaml:"onion,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// IdentityConfig holds the relay's own keypair location.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
}

// NetworkConfig holds the relay's TCP listen configuration.
type NetworkConfig struct {
	ListenAddresses []string `yaml:"listen_addresses"`
}

// KeepaliveConfig overrides the background keepalive sweep's tick
// period. Per-client ping/timeout thresholds are protocol constants, not
// configurable.
type KeepaliveConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"` // default: 1s
}

// ResourcesConfig holds connection resource limits (onion-egress limits
// live in OnionConfig).
// Zero values are replaced with defaults at load time.
type ResourcesConfig struct {
	MaxClients int `yaml:"max_clients,omitempty"` // default: 4096
}

// OnionConfig controls the UDP onion-egress sink and its rate limit.
type OnionConfig struct {
	Enabled           bool    `yaml:"enabled"`
	UDPSinkAddress    string  `yaml:"udp_sink_address,omitempty"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_sec,omitempty"`   // default: 200
	RateLimitBurst    int     `yaml:"rate_limit_burst,omitempty"`     // default: 50
}

// TelemetryConfig holds observability settings. Disabled by default
// (opt-in).
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"` // not defaulted by Load
}

// DefaultResources returns the default resource configuration.
func DefaultResources() ResourcesConfig {
	return ResourcesConfig{MaxClients: 4096}
}

// DefaultOnion returns the default onion-egress configuration (rate
// limit values only; Enabled/UDPSinkAddress have no meaningful default).
func DefaultOnion() OnionConfig {
	return OnionConfig{RateLimitPerSec: 200, RateLimitBurst: 50}
}

func applyResourceDefaults(rc *ResourcesConfig) {
	if rc.MaxClients == 0 {
		rc.MaxClients = DefaultResources().MaxClients
	}
}

func applyOnionDefaults(oc *OnionConfig) {
	defaults := DefaultOnion()
	if oc.RateLimitPerSec == 0 {
		oc.RateLimitPerSec = defaults.RateLimitPerSec
	}
	if oc.RateLimitBurst == 0 {
		oc.RateLimitBurst = defaults.RateLimitBurst
	}
}

func applyKeepaliveDefaults(kc *KeepaliveConfig) {
	if kc.SweepInterval == 0 {
		kc.SweepInterval = time.Second
	}
}

package relayconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// checkConfigFilePermissions returns an error if a config file has overly
// permissive permissions (any group/world bit set). The config may
// reference the relay's identity key file, so treat it like a secret.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// Load reads and validates relay configuration from a YAML file,
// applying defaults to zero-valued resource, onion, and keepalive
// fields.
func Load(path string) (*Config, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade relay-server", ErrConfigVersionTooNew, cfg.Version, CurrentConfigVersion)
	}

	applyResourceDefaults(&cfg.Resources)
	applyOnionDefaults(&cfg.Onion)
	applyKeepaliveDefaults(&cfg.Keepalive)

	return &cfg, nil
}

// Validate checks required fields.
func Validate(cfg *Config) error {
	if cfg.Identity.KeyFile == "" {
		return fmt.Errorf("identity.key_file is required")
	}
	if len(cfg.Network.ListenAddresses) == 0 {
		return fmt.Errorf("network.listen_addresses must contain at least one address")
	}
	if cfg.Onion.Enabled && cfg.Onion.UDPSinkAddress == "" {
		return fmt.Errorf("onion.udp_sink_address is required when onion.enabled is true")
	}
	return nil
}

// FindConfigFile searches for a relay config file in standard
// locations. Search order: explicitPath (if given), ./relay-server.yaml,
// ~/.config/toxrelay/config.yaml, /etc/toxrelay/config.yaml.
func FindConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{"relay-server.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "toxrelay", "config.yaml"))
	}
	searchPaths = append(searchPaths, filepath.Join("/etc", "toxrelay", "config.yaml"))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w; searched %v", ErrConfigNotFound, searchPaths)
}

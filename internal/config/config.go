// Package config loads the daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/codewire/internal/protocol/packet"
)

type DaemonConfig struct {
	Name        string     `toml:"name"`
	Network     string     `toml:"network"`
	Addr        string     `toml:"addr"`
	AdminAddr   string     `toml:"admin_addr"`
	AdminToken  string     `toml:"admin_token"`
	CorsOrigins []string   `toml:"cors_origins"`
	LogLevel    string     `toml:"log_level"`
	Wire        WireConfig `toml:"wire"`
}

// WireConfig bounds what a single decoded packet may claim.
type WireConfig struct {
	MaxPayloadBytes int `toml:"max_payload_bytes"`
	MaxArrayItems   int `toml:"max_array_items"`
	MaxArrayDepth   int `toml:"max_array_depth"`
	EventBuffer     int `toml:"event_buffer"`
}

// Limits converts the wire section to decoder limits, keeping the
// defaults for any field left at zero.
func (w WireConfig) Limits() packet.Limits {
	lim := packet.DefaultLimits()
	if w.MaxPayloadBytes > 0 {
		lim.MaxPayloadBytes = w.MaxPayloadBytes
	}
	if w.MaxArrayItems > 0 {
		lim.MaxArrayItems = w.MaxArrayItems
	}
	if w.MaxArrayDepth > 0 {
		lim.MaxArrayDepth = w.MaxArrayDepth
	}
	return lim
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

// DefaultDaemonConfig returns the configuration used when no file is
// given on the command line.
func DefaultDaemonConfig() DaemonConfig {
	cfg := DaemonConfig{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *DaemonConfig) {
	if cfg.Name == "" {
		cfg.Name = "codewired"
	}
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9400"
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = ":9401"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("daemon config missing name")
	}
	switch cfg.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return fmt.Errorf("daemon config network %q unsupported", cfg.Network)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("daemon config missing addr")
	}
	if cfg.Addr == cfg.AdminAddr {
		return fmt.Errorf("daemon config addr and admin_addr collide")
	}
	if cfg.Wire.MaxPayloadBytes < 0 || cfg.Wire.MaxArrayItems < 0 || cfg.Wire.MaxArrayDepth < 0 {
		return fmt.Errorf("daemon config wire limits must be non-negative")
	}
	return nil
}

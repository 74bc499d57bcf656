package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/codewire/internal/rpc"
)

// fileConfig is the optional ctl-side config. Every field has a flag
// counterpart; the file just saves retyping the target.
type fileConfig struct {
	Network            string `toml:"network"`
	Addr               string `toml:"addr"`
	ConnectTimeout     string `toml:"connect_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
}

type ctlConfig struct {
	Network string
	Addr    string
	RPC     rpc.Config
}

func defaultCtlConfig() ctlConfig {
	return ctlConfig{
		Network: "tcp",
		Addr:    "localhost:9400",
		RPC:     rpc.DefaultConfig(),
	}
}

func loadCtlConfig(path string) (ctlConfig, error) {
	cfg := defaultCtlConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ctlConfig{}, fmt.Errorf("load ctl config: %w", err)
	}

	if meta.IsDefined("network") {
		if v := strings.TrimSpace(raw.Network); v != "" {
			cfg.Network = v
		}
	}
	if meta.IsDefined("addr") {
		if v := strings.TrimSpace(raw.Addr); v != "" {
			cfg.Addr = v
		}
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.RPC.ConnectTimeout = d
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.RPC.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	return cfg, nil
}

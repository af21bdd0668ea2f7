// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fleetconfig loads hostfleet's tunables from a single YAML
// file, specified by an environment variable or --config flag: no
// discovery, no fallback chain. hostfleet's config has no
// per-environment override sections — there is exactly one fleet per
// process, not a development/staging/production split.
package fleetconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/hostfleet/internal/supervisor"
)

// ConfigEnvVar is the environment variable Load checks when no
// explicit path is given.
const ConfigEnvVar = "HOSTFLEET_CONFIG"

// Config is hostfleet's tunable configuration, loaded from YAML.
// Duration fields are parsed from strings like "30s" via
// time.ParseDuration so the file stays human-readable.
type Config struct {
	AdminSocketPath string `yaml:"admin_socket_path"`

	HeartbeatInterval string `yaml:"heartbeat_interval"`
	CleanupInterval   string `yaml:"cleanup_interval"`
	HeartbeatTimeoutMS int   `yaml:"heartbeat_timeout_ms"`
	StaleAfter        string `yaml:"stale_after"`

	DefaultHostID   string `yaml:"default_host_id"`
	EmacsclientPath string `yaml:"emacsclient_path"`
	NotifySendPath  string `yaml:"notify_send_path"`
}

// Default returns a config with only AdminSocketPath set. The other
// fields stay empty; the supervisor tunables among them are filled in
// by internal/supervisor.Config.withDefaults.
func Default() *Config {
	return &Config{
		AdminSocketPath: "/run/hostfleet/admin.sock",
	}
}

// Load reads the config file named by the HOSTFLEET_CONFIG
// environment variable. There is no fallback — if it's unset, this
// fails rather than guessing a path.
func Load() (*Config, error) {
	path := os.Getenv(ConfigEnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; set it to the path of your hostfleet.yaml config file, or use --config", ConfigEnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SupervisorConfig translates the YAML-friendly string durations into
// a supervisor.Config, applying supervisor's own defaults for any
// field left at its zero value.
func (c *Config) SupervisorConfig() (supervisor.Config, error) {
	var cfg supervisor.Config

	if c.HeartbeatInterval != "" {
		d, err := time.ParseDuration(c.HeartbeatInterval)
		if err != nil {
			return cfg, fmt.Errorf("heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if c.CleanupInterval != "" {
		d, err := time.ParseDuration(c.CleanupInterval)
		if err != nil {
			return cfg, fmt.Errorf("cleanup_interval: %w", err)
		}
		cfg.CleanupInterval = d
	}
	if c.StaleAfter != "" {
		d, err := time.ParseDuration(c.StaleAfter)
		if err != nil {
			return cfg, fmt.Errorf("stale_after: %w", err)
		}
		cfg.StaleAfter = d
	}

	cfg.HeartbeatTimeout = c.HeartbeatTimeoutMS
	cfg.DefaultHostID = c.DefaultHostID
	cfg.EmacsclientPath = c.EmacsclientPath
	return cfg, nil
}

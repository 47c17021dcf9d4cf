// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parlor-foundation/parlor/endpoint"
)

// Config is the master configuration for Parlor commands.
type Config struct {
	// Relay configures the signaling relay connection.
	Relay RelayConfig `yaml:"relay"`

	// ICE lists the STUN/TURN servers used during candidate gathering.
	// Empty means host candidates only, which covers same-machine and
	// same-LAN play.
	ICE []endpoint.ICEServerConfig `yaml:"ice"`

	// Store configures match persistence on the hosting side.
	Store StoreConfig `yaml:"store"`

	// Game configures the rule set.
	Game GameConfig `yaml:"game"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// Timeouts bound connection establishment. Values are duration
	// strings ("30s", "500ms").
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// RelayConfig configures the signaling relay.
type RelayConfig struct {
	// URL is the relay's WebSocket endpoint (ws:// or wss://).
	URL string `yaml:"url"`

	// Listen is the bind address for parlor-relay itself.
	// Default: :8484
	Listen string `yaml:"listen"`
}

// StoreConfig configures match persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty keeps matches in
	// memory, which is fine for casual hosting; set a path to survive
	// host restarts.
	Path string `yaml:"path"`
}

// GameConfig configures the rule set.
type GameConfig struct {
	// RulesFile is a JSONC rules definition. Empty uses the game's
	// built-in defaults.
	RulesFile string `yaml:"rules_file"`

	// NumPlayers seeds match creation. Default: 2.
	NumPlayers int `yaml:"num_players"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// File receives log output. Interactive commands need this so the
	// terminal UI stays clean; empty logs to stderr.
	File string `yaml:"file"`
}

// TimeoutsConfig bounds connection establishment. All values are
// duration strings.
type TimeoutsConfig struct {
	// Dial bounds a client dial end to end. Default: 30s.
	Dial string `yaml:"dial"`

	// Gather bounds ICE candidate gathering. Default: 15s.
	Gather string `yaml:"gather"`

	// Answer bounds the wait for the host's SDP answer. Default: 30s.
	Answer string `yaml:"answer"`

	// Establish bounds the wait for the data channel to open after
	// the answer arrives. Default: 30s.
	Establish string `yaml:"establish"`
}

// Default returns the default configuration. Parlor works out of the
// box on one machine with no config file at all; a file is needed once
// play crosses a network boundary (relay URL, ICE servers).
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Relay: RelayConfig{
			Listen: ":8484",
		},
		Store: StoreConfig{
			Path: "",
		},
		Game: GameConfig{
			NumPlayers: 2,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(homeDir, ".cache", "parlor", "parlor.log"),
		},
		Timeouts: TimeoutsConfig{
			Dial:      "30s",
			Gather:    "15s",
			Answer:    "30s",
			Establish: "30s",
		},
	}
}

// Load loads configuration from the PARLOR_CONFIG environment
// variable. There is no fallback or discovery: unset means the caller
// gets Default(), a set variable names the single source of truth.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLOR_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// Default(). Environment variables never override file values; the
// only expansion performed is ${HOME} and similar path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Game.RulesFile = expandVars(c.Game.RulesFile, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Relay.URL != "" {
		u, err := url.Parse(c.Relay.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("relay.url: %w", err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("relay.url scheme must be ws or wss, got %q", u.Scheme))
		}
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}

	if c.Game.NumPlayers < 1 {
		errs = append(errs, fmt.Errorf("game.num_players must be at least 1"))
	}

	for field, value := range map[string]string{
		"timeouts.dial":      c.Timeouts.Dial,
		"timeouts.gather":    c.Timeouts.Gather,
		"timeouts.answer":    c.Timeouts.Answer,
		"timeouts.establish": c.Timeouts.Establish,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DialTimeout returns the parsed dial bound. Call Validate first; an
// unparseable value falls back to 30s here rather than panicking.
func (c *Config) DialTimeout() time.Duration {
	return parseDuration(c.Timeouts.Dial, 30*time.Second)
}

// EndpointTimeouts returns the parsed WebRTC establishment bounds,
// with polling intervals left at their defaults.
func (c *Config) EndpointTimeouts() endpoint.Timeouts {
	timeouts := endpoint.DefaultTimeouts()
	timeouts.Gather = parseDuration(c.Timeouts.Gather, timeouts.Gather)
	timeouts.Answer = parseDuration(c.Timeouts.Answer, timeouts.Answer)
	timeouts.Establish = parseDuration(c.Timeouts.Establish, timeouts.Establish)
	return timeouts
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// Package config loads toolkit configuration from TOML files.
//
// Configuration is looked up in order: an explicit path, ./topicbus.toml,
// then ~/.config/topicbus/topicbus.toml. Missing files yield defaults,
// so a bare bus needs no configuration at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file name searched for.
const FileName = "topicbus.toml"

// Config is the root configuration.
type Config struct {
	Bus    Bus    `toml:"bus"`
	Bridge Bridge `toml:"bridge"`
	Log    Log    `toml:"log"`
}

// Bus configures the local message bus.
type Bus struct {
	// RequestTimeout is the default request/reply deadline.
	RequestTimeout Duration `toml:"request_timeout"`
}

// Bridge configures an optional network bridge.
type Bridge struct {
	// Enabled turns the bridge on.
	Enabled bool `toml:"enabled"`

	// Kind selects the transport: "nats" or "ws".
	Kind string `toml:"kind"`

	// URL of the remote endpoint (NATS server or WebSocket peer).
	URL string `toml:"url"`

	// Name identifies this client to the remote end.
	Name string `toml:"name"`

	// Token for token-based auth (NATS).
	Token string `toml:"token"`

	// User and Password for basic auth (NATS).
	User     string `toml:"user"`
	Password string `toml:"password"`

	// Topics are the local patterns forwarded across the bridge.
	// Empty means the documented fallback pattern "*".
	Topics []string `toml:"topics"`

	// ReconnectWait is the pause between reconnection attempts.
	ReconnectWait Duration `toml:"reconnect_wait"`

	// MaxReconnects caps reconnection attempts. -1 = unlimited.
	MaxReconnects int `toml:"max_reconnects"`

	// ConnectTimeout bounds the initial connection.
	ConnectTimeout Duration `toml:"connect_timeout"`
}

// Log configures diagnostics output.
type Log struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`
}

// Duration wraps time.Duration for TOML strings like "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Bus: Bus{
			RequestTimeout: Duration{5 * time.Second},
		},
		Bridge: Bridge{
			Kind:           "nats",
			Topics:         []string{"*"},
			ReconnectWait:  Duration{2 * time.Second},
			MaxReconnects:  -1,
			ConnectTimeout: Duration{5 * time.Second},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// searchPaths returns candidate config file locations in priority
// order.
func searchPaths() []string {
	paths := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "topicbus", FileName))
	}
	return paths
}

// Load reads configuration from an explicit path.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDefault searches the standard locations and returns the first
// config found, or defaults when none exists.
func LoadDefault() (Config, error) {
	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return Load(path)
	}
	return Default(), nil
}

// Parse decodes configuration from TOML text, applying defaults for
// absent keys.
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects configurations the toolkit cannot run with.
func (c Config) validate() error {
	if c.Bus.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("config: bus.request_timeout must be positive")
	}
	if c.Bridge.Enabled {
		switch c.Bridge.Kind {
		case "nats", "ws":
		default:
			return fmt.Errorf("config: unknown bridge.kind %q", c.Bridge.Kind)
		}
		if c.Bridge.URL == "" {
			return fmt.Errorf("config: bridge.url is required when the bridge is enabled")
		}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	return nil
}

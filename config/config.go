package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "3s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Value returns the underlying time.Duration.
func (d Duration) Value() time.Duration { return time.Duration(d) }

// Config is the sealedchat client configuration.
type Config struct {
	// StoragePath is the bbolt database holding the keypair cache, PIN
	// verifier, and conversation caches.
	StoragePath string `toml:"storage_path"`

	// DirectoryPath is the file backing the key directory client.
	DirectoryPath string `toml:"directory_path"`

	// PollInterval is the conversation force-refresh cadence.
	PollInterval Duration `toml:"poll_interval"`

	// ReceiptInterval is the cadence of both read-receipt loops.
	ReceiptInterval Duration `toml:"receipt_interval"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".sealedchat")
	return &Config{
		StoragePath:     filepath.Join(base, "sealedchat.db"),
		DirectoryPath:   filepath.Join(base, "directory.json"),
		PollInterval:    Duration(3 * time.Second),
		ReceiptInterval: Duration(5 * time.Second),
		LogLevel:        "info",
	}
}

// Load reads a TOML config file, filling unset fields from Default. A
// missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.StoragePath == "" {
		return fmt.Errorf("storage_path must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ReceiptInterval <= 0 {
		return fmt.Errorf("receipt_interval must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Remote    RemoteConfig
	Sync      SyncConfig
	Dashboard DashboardConfig
	Log       LogConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// RemoteConfig selects and configures the remote snapshot backend.
type RemoteConfig struct {
	// Backend is one of "none", "dir", "dropbox".
	Backend string

	// Dir is the shared folder for the "dir" backend.
	Dir string

	// DropboxToken and DropboxPath configure the "dropbox" backend. The
	// token should come from SEIHIN_REMOTE_DROPBOXTOKEN rather than the
	// config file.
	DropboxToken string
	DropboxPath  string
}

// SyncConfig holds orchestrator settings.
type SyncConfig struct {
	// Debounce is the quiet period after a local change before a round
	// runs.
	Debounce time.Duration

	// PeriodicInterval is the daemon's fallback round cadence. Zero
	// disables periodic rounds.
	PeriodicInterval time.Duration
}

// DashboardConfig holds the daemon's status server settings.
type DashboardConfig struct {
	Enabled bool
	Port    int
}

// LogConfig holds daemon log rotation settings.
type LogConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from file and env. Env var overrides use
// prefix SEIHIN_ (e.g. SEIHIN_REMOTE_BACKEND=dir).
func Load() (Config, error) {
	v := viper.New()

	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "seihin")

	// default values
	v.SetDefault("database.path", filepath.Join(dataDir, "seihin.db"))
	v.SetDefault("remote.backend", "none")
	v.SetDefault("remote.dir", "")
	v.SetDefault("remote.dropboxtoken", "")
	v.SetDefault("remote.dropboxpath", "/seihin/data.json")
	v.SetDefault("sync.debounce", "30s")
	v.SetDefault("sync.periodicinterval", "15m")
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8347)
	v.SetDefault("log.path", filepath.Join(dataDir, "daemon.log"))
	v.SetDefault("log.maxsizemb", 10)
	v.SetDefault("log.maxbackups", 3)
	v.SetDefault("log.maxagedays", 30)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SEIHIN_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "seihin"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SEIHIN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Remote.Backend {
	case "none", "":
		c.Remote.Backend = "none"
	case "dir":
		if c.Remote.Dir == "" {
			return fmt.Errorf("remote.dir is required for the dir backend")
		}
	case "dropbox":
		if c.Remote.DropboxToken == "" {
			return fmt.Errorf("dropbox token is required (set SEIHIN_REMOTE_DROPBOXTOKEN)")
		}
	default:
		return fmt.Errorf("unknown remote backend %q (want none, dir, or dropbox)", c.Remote.Backend)
	}
	return nil
}

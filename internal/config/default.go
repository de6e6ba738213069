package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/crmdesk-go/internal/cli/connection"
	"github.com/yndnr/crmdesk-go/internal/storage"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
)

// Default configuration values.
const (
	DefaultRestoreTimeout = 5 * time.Second
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"

	appDir = "crmdesk"
)

// Default returns the default configuration.
func Default() *Config {
	log := logger.DefaultConfig()
	log.Level = DefaultLogLevel
	log.Format = DefaultLogFormat

	return &Config{
		Log:     log,
		Storage: storage.DefaultConfig(DefaultDataDir()),
		Session: SessionSection{
			RestoreTimeout: DefaultRestoreTimeout,
		},
		Backend: connection.DefaultConfig(),
	}
}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDir)
	}
	return "." + appDir
}

// DefaultConfigFile returns the default configuration file path.
func DefaultConfigFile() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the default storage directory.
func DefaultDataDir() string {
	return filepath.Join(DefaultConfigDir(), "data")
}

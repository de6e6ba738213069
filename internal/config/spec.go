package config

import (
	"time"

	"github.com/yndnr/crmdesk-go/internal/cli/connection"
	"github.com/yndnr/crmdesk-go/internal/storage"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
)

// Config is the root configuration for crmdesk.
type Config struct {
	Log     logger.Config     `koanf:"log" yaml:"log" json:"log"`
	Storage storage.Config    `koanf:"storage" yaml:"storage" json:"storage"`
	Session SessionSection    `koanf:"session" yaml:"session" json:"session"`
	Backend connection.Config `koanf:"backend" yaml:"backend" json:"backend"`
	Metrics MetricsSection    `koanf:"metrics" yaml:"metrics" json:"metrics"`
}

// SessionSection configures the session store.
type SessionSection struct {
	// RestoreTimeout bounds a restore. A hung storage read past this
	// deadline settles the session as unauthenticated.
	RestoreTimeout time.Duration `koanf:"restore_timeout" yaml:"restore_timeout" json:"restore_timeout"`
}

// MetricsSection configures the Prometheus endpoint of the shell.
type MetricsSection struct {
	// Address is the listen address, e.g. 127.0.0.1:9464. Empty disables it.
	Address string `koanf:"address" yaml:"address" json:"address"`
}

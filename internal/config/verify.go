package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/crmdesk-go/internal/storage"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
	"github.com/yndnr/crmdesk-go/pkg/crypto/adaptive"
)

// maxRestoreTimeout caps session.restore_timeout.
const maxRestoreTimeout = time.Minute

// Verify validates the configuration and reports every problem found.
func Verify(cfg *Config) error {
	return errors.Join(
		verifyLog(cfg),
		verifyStorage(&cfg.Storage),
		verifySession(&cfg.Session),
		verifyBackend(cfg),
		verifyMetrics(&cfg.Metrics),
	)
}

func verifyLog(cfg *Config) error {
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is not json or text", cfg.Log.Format)
	}
	return nil
}

func verifyStorage(cfg *storage.Config) error {
	var errs []error

	switch cfg.Engine {
	case "", "badger":
		if cfg.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the badger engine"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.engine %q is not badger or memory", cfg.Engine))
	}

	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) < storage.MinEncryptionKeyLength {
		errs = append(errs, fmt.Errorf("storage.encryption_key must be at least %d bytes", storage.MinEncryptionKeyLength))
	}
	switch adaptive.CipherType(cfg.Cipher) {
	case "", adaptive.CipherAESGCM, adaptive.CipherChaCha20:
	default:
		errs = append(errs, fmt.Errorf("storage.cipher %q is not aes-gcm or chacha20-poly1305", cfg.Cipher))
	}

	if cfg.Badger.GCInterval != "" {
		if d, err := time.ParseDuration(cfg.Badger.GCInterval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("storage.badger.gc_interval %q is not a positive duration", cfg.Badger.GCInterval))
		}
	}
	if cfg.Badger.GCThreshold < 0 || cfg.Badger.GCThreshold >= 1 {
		errs = append(errs, errors.New("storage.badger.gc_threshold must be in [0, 1)"))
	}

	return errors.Join(errs...)
}

func verifySession(cfg *SessionSection) error {
	if cfg.RestoreTimeout < 0 || cfg.RestoreTimeout > maxRestoreTimeout {
		return fmt.Errorf("session.restore_timeout must be between 0 and %s", maxRestoreTimeout)
	}
	return nil
}

func verifyBackend(cfg *Config) error {
	var errs []error

	u, err := url.Parse(cfg.Backend.BaseURL)
	switch {
	case cfg.Backend.BaseURL == "":
		errs = append(errs, errors.New("backend.base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("backend.base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("backend.base_url %q must use http or https", cfg.Backend.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("backend.base_url %q has no host", cfg.Backend.BaseURL))
	}

	if cfg.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if cfg.Backend.LoginRate < 0 {
		errs = append(errs, errors.New("backend.login_rate must not be negative"))
	}
	if cfg.Backend.LoginBurst < 0 {
		errs = append(errs, errors.New("backend.login_burst must not be negative"))
	}

	return errors.Join(errs...)
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Address == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		return fmt.Errorf("metrics.address: %w", err)
	}
	return nil
}

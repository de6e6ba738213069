package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for `config show` and for logging the effective config.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg

	if sanitized.Storage.EncryptionKey != "" {
		sanitized.Storage.EncryptionKey = maskSecret(sanitized.Storage.EncryptionKey)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

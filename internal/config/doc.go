// Package config provides crmdesk configuration.
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation run before anything is opened
//   - sanitize.go: Secret masking for display and logs
//
// Configuration is loaded via internal/infra/confloader from the YAML
// file, a .env file, CRMDESK_* environment variables and flags.
package config

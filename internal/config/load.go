package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/yndnr/crmdesk-go/internal/infra/confloader"
)

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// File is the YAML file. An empty value means DefaultConfigFile, which
	// may be absent; an explicit file must exist.
	File string

	// DotEnv is the .env file. Missing is fine.
	DotEnv string

	// Overrides are dotted-key values from command-line flags.
	Overrides map[string]any
}

// Load builds the configuration from defaults and every source, then
// verifies it.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	file := opts.File
	if file == "" {
		file = DefaultConfigFile()
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			file = ""
		}
	}

	loader := confloader.NewLoader(
		confloader.WithConfigFile(file),
		confloader.WithDotEnv(opts.DotEnv),
		confloader.WithOverrides(opts.Overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "CRMDESK_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k          *koanf.Koanf
	envPrefix  string
	filePath   string
	dotEnvPath string
	overrides  map[string]any
	loaded     bool
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithDotEnv loads a .env file before reading the environment. A missing
// file is not an error. Variables already set in the environment win.
func WithDotEnv(path string) Option {
	return func(l *Loader) {
		l.dotEnvPath = path
	}
}

// WithOverrides applies dotted-key values after every other source.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads every configured source and unmarshals into target.
// Fields of target that no source sets keep their current value.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}

	if l.dotEnvPath != "" {
		if err := LoadDotEnv(l.dotEnvPath); err != nil {
			return err
		}
	}

	if err := l.LoadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return err
		}
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.loaded = true
	return nil
}

// LoadFile loads configuration from a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}

	return nil
}

// LoadDotEnv exports the variables in a .env file into the process
// environment without overriding existing ones.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// LoadEnv loads configuration from environment variables.
//
// The first underscore after the prefix separates the section; a double
// underscore descends one more level:
//
//	CRMDESK_BACKEND_BASE_URL           -> backend.base_url
//	CRMDESK_STORAGE_BADGER__SYNC_WRITES -> storage.badger.sync_writes
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", func(s string) string {
		return EnvKey(l.envPrefix, s)
	})
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	return nil
}

// EnvKey converts an environment variable name into a dotted config key.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + strings.ReplaceAll(rest, "__", ".")
}

// LoadMap loads configuration from a map (useful for flags or testing).
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal unmarshals the loaded configuration into the target struct.
// Uses koanf tags for struct field mapping.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// IsLoaded returns true if configuration has been loaded.
func (l *Loader) IsLoaded() bool {
	return l.loaded
}

// FilePath returns the configuration file path, if any.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Keys returns all configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

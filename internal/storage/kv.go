package storage

import (
	"context"
	"errors"
	"fmt"
)

// Common errors
var (
	ErrClosed     = errors.New("kv: closed")
	ErrEmptyKey   = errors.New("kv: empty key")
	ErrSealBroken = errors.New("kv: sealed value cannot be opened")
)

// KV is the durable string key-value store the session store persists to.
//
// Implementations must be safe for concurrent use. Every operation may
// fail; failures are reported as values, never as panics.
type KV interface {
	// Get reads a key. A missing key is not a failure.
	Get(ctx context.Context, key string) GetResult

	// Set stores a value, overwriting any previous one.
	Set(ctx context.Context, key, value string) error

	// RemoveMany deletes the given keys. Missing keys are ignored.
	RemoveMany(ctx context.Context, keys []string) error

	// Close releases the underlying resources.
	Close() error
}

// Status is the outcome of a Get.
type Status uint8

const (
	StatusMissing Status = iota
	StatusFound
	StatusFailed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusFailed:
		return "failed"
	default:
		return "missing"
	}
}

// GetResult is the explicit result variant of a read.
type GetResult struct {
	Status Status
	Value  string
	Err    error
}

// Found builds a successful read result.
func Found(value string) GetResult {
	return GetResult{Status: StatusFound, Value: value}
}

// Missing builds a result for an absent key.
func Missing() GetResult {
	return GetResult{Status: StatusMissing}
}

// Failed builds a result for a read that could not complete.
func Failed(err error) GetResult {
	return GetResult{Status: StatusFailed, Err: err}
}

// Ok reports whether the key was found.
func (r GetResult) Ok() bool {
	return r.Status == StatusFound
}

// String describes the result without exposing the value.
func (r GetResult) String() string {
	if r.Status == StatusFailed {
		return fmt.Sprintf("failed: %v", r.Err)
	}
	return r.Status.String()
}

// Config configures the durable KV store.
type Config struct {
	// Engine selects the backend: "badger" (default) or "memory"
	// (Badger in-memory mode, nothing touches disk).
	Engine string `koanf:"engine" yaml:"engine" json:"engine"`

	// Dir is the storage directory for the badger engine.
	Dir string `koanf:"dir" yaml:"dir" json:"dir"`

	// EncryptionKey, when set, seals every stored value.
	EncryptionKey string `koanf:"encryption_key" yaml:"encryption_key" json:"encryption_key"`

	// Cipher selects the sealing algorithm ("chacha20-poly1305" or "aes-gcm").
	Cipher string `koanf:"cipher" yaml:"cipher" json:"cipher"`

	Badger BadgerConfig `koanf:"badger" yaml:"badger" json:"badger"`
}

// BadgerConfig contains Badger-specific tuning parameters.
// The defaults are sized for a single-user client, not a server.
type BadgerConfig struct {
	// GCInterval is the interval between automatic value log GC runs.
	GCInterval string `koanf:"gc_interval" yaml:"gc_interval" json:"gc_interval"`

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	GCThreshold float64 `koanf:"gc_threshold" yaml:"gc_threshold" json:"gc_threshold"`

	// CacheSize is the block cache size in bytes.
	CacheSize int64 `koanf:"cache_size" yaml:"cache_size" json:"cache_size"`

	// ValueLogFileSize is the max value log file size in bytes.
	ValueLogFileSize int64 `koanf:"value_log_file_size" yaml:"value_log_file_size" json:"value_log_file_size"`

	// NumMemtables is the number of memtables.
	NumMemtables int `koanf:"num_memtables" yaml:"num_memtables" json:"num_memtables"`

	// SyncWrites fsyncs every write. Login relies on it to guarantee the
	// session is durable before it is published.
	SyncWrites bool `koanf:"sync_writes" yaml:"sync_writes" json:"sync_writes"`
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Engine: "badger",
		Dir:    dir,
		Cipher: "chacha20-poly1305",
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        8 << 20,  // 8MB
		ValueLogFileSize: 16 << 20, // 16MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

// Open builds the KV described by cfg, sealing it when an encryption key
// is configured.
func Open(cfg Config, opts ...BadgerOption) (KV, error) {
	var (
		kv  *BadgerKV
		err error
	)

	switch cfg.Engine {
	case "", "badger":
		kv, err = NewBadgerKV(cfg, opts...)
	case "memory":
		cfg.Dir = ""
		kv, err = NewBadgerKV(cfg, append(opts, WithInMemory())...)
	default:
		return nil, fmt.Errorf("storage: unknown engine %q", cfg.Engine)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey == "" {
		return kv, nil
	}

	sealed, err := NewSealedKV(kv, []byte(cfg.EncryptionKey), cfg.Cipher)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return sealed, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerOption configures a BadgerKV at open time.
type BadgerOption func(*badgerSettings)

type badgerSettings struct {
	logger   *slog.Logger
	inMemory bool
	registry prometheus.Registerer
}

// WithLogger sets the logger used by the engine and by Badger itself.
func WithLogger(logger *slog.Logger) BadgerOption {
	return func(s *badgerSettings) {
		s.logger = logger
	}
}

// WithInMemory keeps all data in memory; nothing survives Close.
func WithInMemory() BadgerOption {
	return func(s *badgerSettings) {
		s.inMemory = true
	}
}

// WithMetrics registers the engine's size and GC gauges.
func WithMetrics(reg prometheus.Registerer) BadgerOption {
	return func(s *badgerSettings) {
		s.registry = reg
	}
}

// BadgerKV implements KV using Badger v3.
type BadgerKV struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger
	closed atomic.Bool

	lastGCTime atomic.Int64 // Unix milliseconds

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBadgerKV opens a Badger-backed KV.
func NewBadgerKV(cfg Config, opts ...BadgerOption) (*BadgerKV, error) {
	settings := badgerSettings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&settings)
	}
	logger := settings.logger

	if cfg.Dir == "" && !settings.inMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}

	bopts := badger.DefaultOptions(cfg.Dir)
	if settings.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = &badgerLogger{logger: logger}

	badgerCfg := cfg.Badger
	if badgerCfg.CacheSize > 0 {
		bopts.BlockCacheSize = badgerCfg.CacheSize
	}
	if badgerCfg.ValueLogFileSize > 0 {
		bopts.ValueLogFileSize = badgerCfg.ValueLogFileSize
	}
	if badgerCfg.NumMemtables > 0 {
		bopts.NumMemtables = badgerCfg.NumMemtables
	}
	bopts.SyncWrites = badgerCfg.SyncWrites

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	kv := &BadgerKV{
		db:     db,
		cfg:    badgerCfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if settings.registry != nil {
		if err := kv.registerMetrics(settings.registry); err != nil {
			db.Close()
			return nil, err
		}
	}

	// The value log does not exist in memory mode.
	if !settings.inMemory {
		kv.wg.Add(1)
		go kv.gcLoop()
	}

	logger.Info("badger kv opened",
		"dir", cfg.Dir,
		"in_memory", settings.inMemory,
		"sync_writes", badgerCfg.SyncWrites)

	return kv, nil
}

// Get reads a key.
func (e *BadgerKV) Get(ctx context.Context, key string) GetResult {
	if err := e.check(ctx, key); err != nil {
		return Failed(err)
	}

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case err == nil:
		return Found(string(value))
	case errors.Is(err, badger.ErrKeyNotFound):
		return Missing()
	default:
		return Failed(fmt.Errorf("badger: get %s: %w", key, err))
	}
}

// Set stores a key-value pair.
func (e *BadgerKV) Set(ctx context.Context, key, value string) error {
	if err := e.check(ctx, key); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger: set %s: %w", key, err)
	}
	return nil
}

// RemoveMany deletes keys in a single transaction.
func (e *BadgerKV) RemoveMany(ctx context.Context, keys []string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if k == "" {
				continue
			}
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger: remove: %w", err)
	}
	return nil
}

// GC runs value log garbage collection until nothing more can be reclaimed.
// Returns the number of rewritten value log files.
func (e *BadgerKV) GC(ctx context.Context) (int, error) {
	startTime := time.Now()

	runs := 0
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	e.lastGCTime.Store(time.Now().UnixMilli())
	if e.metricsGCRuns != nil {
		e.metricsGCRuns.Add(float64(runs))
		e.metricsLastGCTime.Set(float64(time.Now().Unix()))
	}

	e.logger.Debug("gc completed",
		"rewrites", runs,
		"elapsed", time.Since(startTime))

	return runs, nil
}

// Size returns the LSM and value log sizes in bytes.
func (e *BadgerKV) Size() (lsm, vlog int64) {
	return e.db.Size()
}

// Close stops the GC loop and closes the database. Safe to call twice.
func (e *BadgerKV) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stopCh)
		e.wg.Wait()

		if cerr := e.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
			return
		}
		e.logger.Info("badger kv closed")
	})
	return err
}

func (e *BadgerKV) check(ctx context.Context, key string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	return ctx.Err()
}

// registerMetrics registers Badger gauges and starts the updater.
func (e *BadgerKV) registerMetrics(reg prometheus.Registerer) error {
	e.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "crmdesk",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	e.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "crmdesk",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	e.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "crmdesk",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	e.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crmdesk",
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Value log files rewritten by Badger garbage collection",
	})

	for _, c := range []prometheus.Collector{
		e.metricsLSMSize, e.metricsValueLogSize, e.metricsLastGCTime, e.metricsGCRuns,
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}

	e.wg.Add(1)
	go e.metricsUpdateLoop()
	return nil
}

// metricsUpdateLoop periodically refreshes the size gauges.
func (e *BadgerKV) metricsUpdateLoop() {
	defer e.wg.Done()

	update := func() {
		lsm, vlog := e.db.Size()
		e.metricsLSMSize.Set(float64(lsm))
		e.metricsValueLogSize.Set(float64(vlog))
	}
	update()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			update()
		case <-e.stopCh:
			return
		}
	}
}

// gcLoop runs periodic garbage collection.
func (e *BadgerKV) gcLoop() {
	defer e.wg.Done()

	interval, err := time.ParseDuration(e.cfg.GCInterval)
	if err != nil || interval <= 0 {
		e.logger.Warn("invalid gc_interval, using default 10m", "value", e.cfg.GCInterval)
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := e.GC(ctx); err != nil {
				e.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-e.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Badger's info output is chatty; demote it to debug.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/yndnr/crmdesk-go/internal/cli/connection"
	"github.com/yndnr/crmdesk-go/internal/config"
	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/core/service"
	"github.com/yndnr/crmdesk-go/internal/storage"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
	"github.com/yndnr/crmdesk-go/internal/telemetry/metric"
)

// Runtime holds the long-lived components behind the commands.
type Runtime struct {
	Config   *config.Config
	Log      logger.Logger
	Metrics  *metric.SessionMetrics
	KV       storage.KV
	Store    *service.SessionStore
	Client   *connection.Client
	Auth     *service.Authenticator
	DeviceID string
}

// OpenRuntime wires storage, the session store and the backend client.
// The session stays loading until Start.
func OpenRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.SetDefault(log)

	metrics := metric.NewSessionMetrics()

	kv, err := storage.Open(cfg.Storage,
		storage.WithLogger(logger.ToSlog(log.With("component", "storage"))),
		storage.WithMetrics(metrics.Registerer()),
	)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	deviceID, err := connection.DeviceID(ctx, kv)
	if err != nil {
		// The device id is a diagnostic header; run without one.
		log.Warn("device id unavailable", "error", err)
	}

	store := service.NewSessionStore(kv,
		service.WithRestoreTimeout(cfg.Session.RestoreTimeout),
		service.WithStoreLogger(log),
		service.WithRecorder(metrics),
	)

	client := connection.NewClient(cfg.Backend,
		connection.WithRecorder(metrics),
		connection.WithClientLogger(log),
		connection.WithDeviceID(deviceID),
	)

	rt := &Runtime{
		Config:   cfg,
		Log:      log,
		Metrics:  metrics,
		KV:       kv,
		Store:    store,
		Client:   client,
		Auth:     service.NewAuthenticator(client, store, log),
		DeviceID: deviceID,
	}

	log.Debug("runtime ready",
		"backend", client.BaseURL(),
		"engine", cfg.Storage.Engine)
	return rt, nil
}

// Start restores the persisted session once and returns the settled
// snapshot.
func (r *Runtime) Start(ctx context.Context) *domain.Session {
	return r.Store.Start(ctx)
}

// Close ends subscriptions and closes storage.
func (r *Runtime) Close() error {
	r.Store.Close()
	if err := r.KV.Close(); err != nil && !errors.Is(err, storage.ErrClosed) {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

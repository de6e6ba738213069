package metric

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
)

const namespace = "crmdesk"

// SessionMetrics holds all session-related metrics.
type SessionMetrics struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Authenticated     prometheus.Gauge
	Loading           prometheus.Gauge
	TokenTTL          prometheus.Gauge
	BackendRequests   *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec

	now func() time.Time
}

// NewSessionMetrics creates the metrics on a fresh registry that also
// carries the Go runtime and process collectors.
func NewSessionMetrics() *SessionMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &SessionMetrics{
		registry: reg,
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "operations_total",
				Help:      "Session store operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "operation_duration_seconds",
				Help:      "Duration of session store operations in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
		Authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 when the published session is authenticated, 0 otherwise",
		}),
		Loading: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "loading",
			Help:      "1 while a restore or refresh is in progress",
		}),
		TokenTTL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "token_ttl_seconds",
			Help:      "Remaining token lifetime at the last published snapshot",
		}),
		BackendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "requests_total",
				Help:      "Backend requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "request_duration_seconds",
				Help:      "Duration of backend requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		now: time.Now,
	}
}

// Registerer exposes the registry so other components (the storage
// engine) can add their own collectors.
func (m *SessionMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

// Gatherer exposes the registry for scraping and tests.
func (m *SessionMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordOperation records a finished session store operation.
func (m *SessionMetrics) RecordOperation(op, outcome string, elapsed time.Duration) {
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordState tracks the published snapshot.
func (m *SessionMetrics) RecordState(s *domain.Session) {
	if s == nil {
		return
	}
	m.Authenticated.Set(boolGauge(s.IsAuthenticated))
	m.Loading.Set(boolGauge(s.IsLoading))
	m.TokenTTL.Set(s.TTL(m.now()).Seconds())
}

// RecordBackend records a backend round trip. status is the HTTP status
// code or "error" when no response arrived.
func (m *SessionMetrics) RecordBackend(endpoint, status string, elapsed time.Duration) {
	m.BackendRequests.WithLabelValues(endpoint, status).Inc()
	m.BackendDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *SessionMetrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

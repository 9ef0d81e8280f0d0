package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

var _ store.Recorder = (*Metrics)(nil)

// Metrics provides Prometheus metrics for a store and the commands that
// drive it. It implements store.Recorder.
type Metrics struct {
	config MetricsConfig

	// Store metrics
	mutations         *prometheus.CounterVec
	reconcilePasses   prometheus.Counter
	reconcileDuration prometheus.Histogram
	reconcileFailures prometheus.Counter
	hooksRun          prometheus.Counter
	entities          *prometheus.GaugeVec

	// Document metrics
	documentReloads *prometheus.CounterVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Command metrics
	commandDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled collector accepts every call and records nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_mutations_total",
				Help:      "Total number of create, save and delete calls",
			},
			[]string{"type", "operation"},
		),
		reconcilePasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_passes_total",
				Help:      "Total number of reconciliation passes",
			},
		),
		reconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of reconciliation passes in seconds",
				Buckets:   buckets,
			},
		),
		reconcileFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_hook_failures_total",
				Help:      "Total number of repair hooks that panicked",
			},
		),
		hooksRun: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_hooks_total",
				Help:      "Total number of repair hooks run",
			},
		),
		entities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entities",
				Help:      "Current number of top-level entities per type",
			},
			[]string{"type"},
		),

		documentReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_reloads_total",
				Help:      "Total number of document reloads by outcome",
			},
			[]string{"status"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations reported",
			},
			[]string{"policy", "severity"},
		),

		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of CLI operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
	}

	registry.MustRegister(
		m.mutations,
		m.reconcilePasses,
		m.reconcileDuration,
		m.reconcileFailures,
		m.hooksRun,
		m.entities,
		m.documentReloads,
		m.policyViolations,
		m.commandDuration,
	)

	return m, nil
}

// ObserveMutation records one external mutating call.
func (m *Metrics) ObserveMutation(typeName, operation string) {
	if m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(typeName, operation).Inc()
}

// ObserveReconcile records one reconciliation pass.
func (m *Metrics) ObserveReconcile(duration time.Duration, hooks, failures int) {
	if m.reconcilePasses == nil {
		return
	}
	m.reconcilePasses.Inc()
	m.reconcileDuration.Observe(duration.Seconds())
	m.hooksRun.Add(float64(hooks))
	m.reconcileFailures.Add(float64(failures))
}

// SetEntityCounts sets the entity gauge from a document. Keys holding
// something other than a list are skipped.
func (m *Metrics) SetEntityCounts(doc store.Document) {
	if m.entities == nil {
		return
	}
	for name, v := range doc {
		switch list := v.(type) {
		case []store.Entity:
			m.entities.WithLabelValues(name).Set(float64(len(list)))
		case []interface{}:
			m.entities.WithLabelValues(name).Set(float64(len(list)))
		}
	}
}

// RecordReload records a document reload by the watcher.
func (m *Metrics) RecordReload(err error) {
	if m.documentReloads == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.documentReloads.WithLabelValues(status).Inc()
}

// RecordPolicyViolation records one violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordOperation records how long a CLI operation took.
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	if m.commandDuration == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.commandDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is done. It
// does nothing without a listen address.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger zerolog.Logger) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("address", m.config.ListenAddress).Msg("Metrics server failed")
		}
	}()

	logger.Info().
		Str("address", m.config.ListenAddress).
		Str("path", m.config.Path).
		Msg("Serving metrics")

	return nil
}

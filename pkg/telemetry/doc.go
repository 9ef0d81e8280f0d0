// Package telemetry provides observability for craig: structured logging
// with zerolog, command tracing with OpenTelemetry, Prometheus metrics and
// change events.
//
// # Usage
//
// Commands build one Telemetry at startup and carry it in the context:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Store metrics
//
// Metrics implements store.Recorder, so a store built with
// store.WithRecorder(tel.Metrics) counts mutations per type and operation,
// reconcile passes, hook runs and hook failures:
//
//	s, err := catalog.New(store.WithRecorder(tel.Metrics))
//
// Metrics are collected whether or not they are served. With
// MetricsConfig.ListenAddress set, StartMetricsServer exposes them on
// MetricsConfig.Path until the context is cancelled.
//
// Metric names, all prefixed with the configured namespace:
//
//	store_mutations_total{type,operation}
//	reconcile_passes_total
//	reconcile_duration_seconds
//	reconcile_hooks_total
//	reconcile_hook_failures_total
//	entities{type}
//	document_reloads_total{status}
//	policy_violations_total{policy,severity}
//	command_duration_seconds{operation,status}
//
// # Tracing
//
// Tracing is off by default. The stdout exporter pretty-prints spans; the
// otlp exporter sends them over gRPC to TracingConfig.Endpoint. Disabled
// tracers still return spans so callers never branch on configuration.
//
//	op := telemetry.StartOperation(ctx, "reconcile",
//	    telemetry.AttrDocument.String(path))
//	defer func() { op.End(err) }()
//
// # Events
//
// EventPublisher reports store updates, document loads, saves and reloads,
// and policy violations. The default publisher delivers synchronously, in
// publish order, before Publish returns. With EventsConfig.EnableAsync it
// batches events on a goroutine and drains the queue on Shutdown.
//
//	s.SetUpdateCallback(func() {
//	    seq++
//	    _ = tel.Events.PublishStoreUpdated(path, seq)
//	})
package telemetry

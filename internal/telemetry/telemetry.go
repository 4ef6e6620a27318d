// Package telemetry provides the OpenTelemetry trace sink for simulation
// runs. Each run becomes one root span carrying the persona, scenario,
// seed, dial values and outcome as attributes, so runs can be filtered and
// compared in any OTLP-compatible backend.
//
// Telemetry failures never fail a run; the provider degrades to no-op.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds the trace sink settings.
type Config struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	Insecure       bool   `koanf:"insecure"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Enabled && c.ServiceName == "" {
		return fmt.Errorf("service name required when telemetry is enabled")
	}
	return nil
}

// Telemetry manages the tracer provider and its shutdown.
type Telemetry struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider

	degraded atomic.Bool
}

// New creates a Telemetry instance. If disabled, all tracers are no-ops.
// Exporter initialization errors degrade to no-op rather than failing.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		t.degraded.Store(true)
		return t, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		t.degraded.Store(true)
		return t, nil
	}

	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Tracer returns a tracer for the given instrumentation scope, or a no-op
// tracer when telemetry is disabled or degraded.
func (t *Telemetry) Tracer(name string) oteltrace.Tracer {
	if t.tracerProvider == nil || t.degraded.Load() {
		return noop.NewTracerProvider().Tracer(name)
	}
	return t.tracerProvider.Tracer(name)
}

// Degraded reports whether provider initialization failed.
func (t *Telemetry) Degraded() bool {
	return t.degraded.Load()
}

// Shutdown flushes pending spans. Safe to call on a disabled instance.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.tracerProvider.Shutdown(ctx)
}

// RunAttributes builds the span attributes forwarded for one run, the
// summary tags an observability backend indexes on.
func RunAttributes(runID, personaName, scenarioTitle string, seed int64, clarifyProb, tangentProb, hesitationProb float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("sim.run_id", runID),
		attribute.String("sim.persona", personaName),
		attribute.String("sim.scenario", scenarioTitle),
		attribute.Int64("sim.seed", seed),
		attribute.Float64("sim.clarifying_question_prob", clarifyProb),
		attribute.Float64("sim.tangent_prob_after_field", tangentProb),
		attribute.Float64("sim.hesitation_insert_prob", hesitationProb),
	}
}

// OutcomeAttributes builds the terminal span attributes for one run.
func OutcomeAttributes(status string, completionPercent, turns, failures int, elapsed time.Duration) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("sim.status", status),
		attribute.Int("sim.completion_percent", completionPercent),
		attribute.Int("sim.turns", turns),
		attribute.Int("sim.failures", failures),
		attribute.Float64("sim.elapsed_seconds", elapsed.Seconds()),
	}
}

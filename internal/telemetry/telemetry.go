// Package telemetry wires OpenTelemetry tracing and metrics for the
// worker, ported from the teacher's libs/go/core/otelinit package. Init
// does not wait for the OTLP collector, so an unreachable collector does
// not block startup; an exporter that cannot be constructed at all leaves
// the global no-op provider in place — the worker's job is scanning
// packages, not exporting telemetry.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Shutdown stops every telemetry provider started by Init.
type Shutdown func(context.Context)

// Instruments are the counters/histograms the worker pipeline records
// against. Every field is safe to use even when the exporter failed to
// initialize (no-op instruments still implement the interface).
type Instruments struct {
	JobsFetched      metric.Int64Counter
	JobsSucceeded    metric.Int64Counter
	JobsFailed       metric.Int64Counter
	ScanDuration     metric.Float64Histogram
	RuleReloads      metric.Int64Counter
	RuleReloadErrors metric.Int64Counter
	TokenRefreshes   metric.Int64Counter
}

// Init configures the global tracer and meter providers and returns the
// combined shutdown hook plus the instrument bundle.
func Init(ctx context.Context, service string) (Shutdown, Instruments) {
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	var shutdowns []func(context.Context) error

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("otel trace exporter init failed, tracing disabled", "error", err)
	} else {
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		slog.Warn("otel metric exporter init failed, metrics disabled", "error", err)
	} else {
		reader := sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			for _, s := range shutdowns {
				_ = s(ctx)
			}
		},
		newInstruments()
}

func newInstruments() Instruments {
	meter := otel.Meter("dragonfly-worker")
	jobsFetched, _ := meter.Int64Counter("dragonfly_jobs_fetched_total")
	jobsSucceeded, _ := meter.Int64Counter("dragonfly_jobs_succeeded_total")
	jobsFailed, _ := meter.Int64Counter("dragonfly_jobs_failed_total")
	scanDuration, _ := meter.Float64Histogram("dragonfly_scan_duration_seconds")
	ruleReloads, _ := meter.Int64Counter("dragonfly_rule_reloads_total")
	ruleReloadErrors, _ := meter.Int64Counter("dragonfly_rule_reload_errors_total")
	tokenRefreshes, _ := meter.Int64Counter("dragonfly_token_refreshes_total")

	return Instruments{
		JobsFetched:      jobsFetched,
		JobsSucceeded:    jobsSucceeded,
		JobsFailed:       jobsFailed,
		ScanDuration:     scanDuration,
		RuleReloads:      ruleReloads,
		RuleReloadErrors: ruleReloadErrors,
		TokenRefreshes:   tokenRefreshes,
	}
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes and releases telemetry resources.
type ShutdownFunc func(context.Context) error

// Config selects where spans and metrics go.
type Config struct {
	// Exporter is "none", "stdout" or "otlp".
	Exporter           string
	OTLPEndpoint       string
	OTLPInsecure       bool
	OTLPTimeoutSeconds int
	OTLPHeaders        map[string]string

	// Writer receives stdout exporter output. Nil means os.Stdout.
	Writer io.Writer
	// InstanceID identifies this launcher process. Empty generates one.
	InstanceID string
}

type exporters struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
}

// InitWithConfig installs global tracer and meter providers for the
// configured exporter. With "none" the no-op globals stay in place.
func InitWithConfig(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if kind == "none" {
		return func(context.Context) error { return nil }, nil
	}

	var (
		exp exporters
		err error
	)
	switch kind {
	case "", "stdout":
		exp, err = stdoutExporters(cfg.Writer)
	case "otlp":
		exp, err = otlpExporters(cfg)
	default:
		err = fmt.Errorf("unknown telemetry exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, err
	}

	instance := cfg.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		semconv.ServiceInstanceID(instance),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp.spans, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.metrics, sdkmetric.WithInterval(time.Minute))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func stdoutExporters(w io.Writer) (exporters, error) {
	if w == nil {
		w = os.Stdout
	}
	spans, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return exporters{}, fmt.Errorf("stdout trace exporter: %w", err)
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return exporters{}, fmt.Errorf("stdout metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}

func otlpExporters(cfg Config) (exporters, error) {
	if cfg.OTLPEndpoint == "" {
		return exporters{}, fmt.Errorf("otlp exporter needs telemetry.otlp_endpoint")
	}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	if len(cfg.OTLPHeaders) > 0 {
		traceOpts = append(traceOpts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
	}
	if cfg.OTLPTimeoutSeconds > 0 {
		d := time.Duration(cfg.OTLPTimeoutSeconds) * time.Second
		traceOpts = append(traceOpts, otlptracegrpc.WithTimeout(d))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithTimeout(d))
	}

	ctx := context.Background()
	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return exporters{}, fmt.Errorf("otlp trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return exporters{}, fmt.Errorf("otlp metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}

package telemetry

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

// TestOTLPSmoke exports one dispatch span and its metrics to a live
// collector. It only runs when LAUNCHER_OTLP_SMOKE_TEST=1.
func TestOTLPSmoke(t *testing.T) {
	endpoint := os.Getenv("LAUNCHER_TELEMETRY_OTLP_ENDPOINT")
	if os.Getenv("LAUNCHER_OTLP_SMOKE_TEST") != "1" || endpoint == "" {
		t.Skip("needs LAUNCHER_OTLP_SMOKE_TEST=1 and a collector endpoint")
	}
	timeout, _ := strconv.Atoi(os.Getenv("LAUNCHER_TELEMETRY_OTLP_TIMEOUT_SECONDS"))

	shutdown, err := InitWithConfig("launcher-smoke", "dev", Config{
		Exporter:           "otlp",
		OTLPEndpoint:       endpoint,
		OTLPInsecure:       os.Getenv("LAUNCHER_TELEMETRY_OTLP_INSECURE") == "true",
		OTLPTimeoutSeconds: timeout,
		InstanceID:         "smoke",
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx, span := otel.Tracer("launcher/smoke").Start(context.Background(), "dispatch")
	span.SetAttributes(DispatchAttributes(HookAIQuery, 2)...)
	m, err := NewExtensionMetrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	m.RecordDispatch(ctx, HookAIQuery, 2)
	m.RecordResponse(ctx, "smoke.echo", 10)
	span.End()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdown(flushCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

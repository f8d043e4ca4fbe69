// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/launcher/pkg/errors"
)

// ExtensionMetrics tracks dispatch volume, isolated hook faults and query
// latency. A nil *ExtensionMetrics is valid and records nothing.
type ExtensionMetrics struct {
	dispatchCounter metric.Int64Counter
	faultCounter    metric.Int64Counter
	responseCounter metric.Int64Counter
	errorCounter    metric.Int64Counter
	queryLatency    metric.Float64Histogram
}

// NewExtensionMetrics registers the instruments on the global meter.
func NewExtensionMetrics() (*ExtensionMetrics, error) {
	meter := otel.Meter("launcher/extensions")

	dispatchCounter, err := meter.Int64Counter(
		"launcher.extensions.dispatches",
		metric.WithDescription("Hook invocations by hook name"),
	)
	if err != nil {
		return nil, err
	}

	faultCounter, err := meter.Int64Counter(
		"launcher.extensions.faults",
		metric.WithDescription("Isolated hook faults by hook and extension"),
	)
	if err != nil {
		return nil, err
	}

	responseCounter, err := meter.Int64Counter(
		"launcher.extensions.responses",
		metric.WithDescription("AI query responses by extension"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"launcher.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	queryLatency, err := meter.Float64Histogram(
		"launcher.extensions.query.duration",
		metric.WithDescription("AI query fan-out duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &ExtensionMetrics{
		dispatchCounter: dispatchCounter,
		faultCounter:    faultCounter,
		responseCounter: responseCounter,
		errorCounter:    errorCounter,
		queryLatency:    queryLatency,
	}, nil
}

// RecordDispatch counts one fan-out of hook over n extensions.
func (m *ExtensionMetrics) RecordDispatch(ctx context.Context, hook string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dispatchCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String(AttrHook, hook)))
}

// RecordFault counts a fault raised by one extension's hook.
func (m *ExtensionMetrics) RecordFault(ctx context.Context, hook, extensionID string) {
	if m == nil {
		return
	}
	m.faultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrHook, hook),
		attribute.String(AttrExtensionID, extensionID),
	))
}

// RecordResponse counts a non-nil AI query response.
func (m *ExtensionMetrics) RecordResponse(ctx context.Context, extensionID string, priority int) {
	if m == nil {
		return
	}
	m.responseCounter.Add(ctx, 1, metric.WithAttributes(ResponseAttributes(extensionID, priority)...))
}

// RecordQueryDuration records how long a query fan-out took.
func (m *ExtensionMetrics) RecordQueryDuration(ctx context.Context, d time.Duration, responses int) {
	if m == nil {
		return
	}
	m.queryLatency.Record(ctx, float64(d)/float64(time.Millisecond),
		metric.WithAttributes(attribute.Int(AttrQueryResponses, responses)))
}

// RecordError counts an error for component, keyed by its error code.
func (m *ExtensionMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	code := "UNKNOWN"
	recoverable := "unknown"
	if le := errors.AsLauncherError(err); le != nil {
		code = string(le.Code)
		recoverable = strconv.FormatBool(le.Recoverable)
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
		attribute.String("component", component),
		attribute.String("recoverable", recoverable),
	))
}

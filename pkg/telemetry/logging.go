// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ConfigureSlog installs a launcher logger as the slog default and
// returns it.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(output, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds a logger that stamps records with the active span and
// the dispatch scope carried by the context.
func NewLogger(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var h slog.Handler = slog.NewTextHandler(output, opts)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(output, opts)
	}
	return slog.New(scopeHandler{Handler: h})
}

type dispatchScope struct {
	extensionID string
	hook        string
}

type scopeKey struct{}

// WithDispatch marks ctx as running hook on one extension. Records logged
// with the returned context carry extension_id and hook.
func WithDispatch(ctx context.Context, extensionID, hook string) context.Context {
	return context.WithValue(ctx, scopeKey{}, dispatchScope{extensionID: extensionID, hook: hook})
}

// DispatchFrom returns the scope set by WithDispatch.
func DispatchFrom(ctx context.Context) (extensionID, hook string, ok bool) {
	if ctx == nil {
		return "", "", false
	}
	s, ok := ctx.Value(scopeKey{}).(dispatchScope)
	return s.extensionID, s.hook, ok
}

// scopeHandler decorates records from the context. Attributes already on
// the record win.
type scopeHandler struct {
	slog.Handler
}

func (h scopeHandler) Handle(ctx context.Context, record slog.Record) error {
	var extra []slog.Attr
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			extra = append(extra,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()))
		}
		if id, hook, ok := DispatchFrom(ctx); ok {
			extra = append(extra, slog.String("extension_id", id), slog.String("hook", hook))
		}
	}
	if len(extra) > 0 {
		present := make(map[string]bool, record.NumAttrs())
		record.Attrs(func(a slog.Attr) bool {
			present[a.Key] = true
			return true
		})
		for _, a := range extra {
			if !present[a.Key] {
				record.AddAttrs(a)
			}
		}
	}
	return h.Handler.Handle(ctx, record)
}

func (h scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return scopeHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h scopeHandler) WithGroup(name string) slog.Handler {
	return scopeHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

package manager

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/telemetry"
)

// OnLauncherStart notifies every enabled extension that the launcher started.
func (m *Manager) OnLauncherStart(ctx context.Context) {
	m.dispatch(ctx, telemetry.HookLauncherStart, func(ctx context.Context, ext extension.Extension) error {
		return ext.OnLauncherStart(ctx)
	})
}

// OnAppLaunched notifies every enabled extension that appID was launched.
func (m *Manager) OnAppLaunched(ctx context.Context, appID string) {
	m.dispatch(ctx, telemetry.HookAppLaunched, func(ctx context.Context, ext extension.Extension) error {
		return ext.OnAppLaunched(ctx, appID)
	})
}

// OnAppDrawerOpened notifies every enabled extension that the drawer opened.
func (m *Manager) OnAppDrawerOpened(ctx context.Context) {
	m.dispatch(ctx, telemetry.HookAppDrawerOpened, func(ctx context.Context, ext extension.Extension) error {
		return ext.OnAppDrawerOpened(ctx)
	})
}

// OnHomeScreenLongPress notifies every enabled extension of a long press.
func (m *Manager) OnHomeScreenLongPress(ctx context.Context, pos extension.GridPosition) {
	m.dispatch(ctx, telemetry.HookHomeLongPress, func(ctx context.Context, ext extension.Extension) error {
		return ext.OnHomeScreenLongPress(ctx, pos)
	})
}

// QueryExtensions asks every enabled extension to answer query and returns
// the non-nil responses sorted by priority, highest first. Equal priorities
// keep enable order. Each extension receives its own copy of lc.
func (m *Manager) QueryExtensions(ctx context.Context, query string, lc extension.LauncherContext) []extension.Response {
	queryID := uuid.NewString()
	ctx, span := m.tracer.Start(ctx, "extensions.query",
		trace.WithAttributes(telemetry.QueryAttributes(queryID, query, 0)...))
	defer span.End()

	start := time.Now()
	exts := m.snapshot()
	base := lc.Bounded()

	var responses []extension.Response
	faults := 0
	for _, ext := range exts {
		id := ext.ID()
		view := base.Clone()
		var resp *extension.Response
		err := m.invoke(ctx, id, telemetry.HookAIQuery, func() error {
			var err error
			resp, err = ext.OnAIQuery(ctx, query, view)
			return err
		})
		if err != nil {
			faults++
			continue
		}
		if resp == nil {
			continue
		}
		r := *resp
		r.ExtensionID = id
		responses = append(responses, r)
		m.metrics.RecordResponse(ctx, id, r.Priority)
	}

	sort.SliceStable(responses, func(i, j int) bool {
		return responses[i].Priority > responses[j].Priority
	})

	m.recordDispatch(ctx, telemetry.HookAIQuery, len(exts), faults)
	m.metrics.RecordQueryDuration(ctx, time.Since(start), len(responses))
	span.SetAttributes(
		attribute.Int(telemetry.AttrQueryResponses, len(responses)),
		attribute.Int(telemetry.AttrHookFault, faults),
	)
	m.logger.DebugContext(ctx, "extensions queried", "query_id", queryID, "extensions", len(exts), "responses", len(responses))
	return responses
}

// ExtensionWidgets collects the widgets provided by enabled extensions.
func (m *Manager) ExtensionWidgets(ctx context.Context) []extension.Widget {
	var widgets []extension.Widget
	m.collect(ctx, telemetry.HookProvideWidget, func(ext extension.Extension) {
		if w := ext.ProvideWidget(); w != nil {
			widgets = append(widgets, *w)
		}
	})
	return widgets
}

// SearchProviders collects the search providers of enabled extensions.
func (m *Manager) SearchProviders(ctx context.Context) []extension.SearchProvider {
	var providers []extension.SearchProvider
	m.collect(ctx, telemetry.HookProvideSearch, func(ext extension.Extension) {
		if p := ext.ProvideSearchProvider(); p != nil {
			providers = append(providers, p)
		}
	})
	return providers
}

// ExtensionThemes collects the themes provided by enabled extensions.
func (m *Manager) ExtensionThemes(ctx context.Context) []extension.Theme {
	var themes []extension.Theme
	m.collect(ctx, telemetry.HookProvideTheme, func(ext extension.Extension) {
		if t := ext.ProvideTheme(); t != nil {
			themes = append(themes, *t)
		}
	})
	return themes
}

// Search runs query against every enabled search provider in turn and
// concatenates their results. A failing provider contributes nothing.
func (m *Manager) Search(ctx context.Context, query string) []extension.SearchResult {
	ctx, span := m.tracer.Start(ctx, "extensions.search",
		trace.WithAttributes(telemetry.QueryAttributes("", query, 0)...))
	defer span.End()

	providers := m.SearchProviders(ctx)
	var results []extension.SearchResult
	faults := 0
	for _, p := range providers {
		pid := p.ID()
		var found []extension.SearchResult
		err := m.invoke(ctx, pid, telemetry.HookSearch, func() error {
			var err error
			found, err = p.Search(ctx, query)
			return err
		})
		if err != nil {
			faults++
			continue
		}
		for _, r := range found {
			if r.ProviderID == "" {
				r.ProviderID = pid
			}
			results = append(results, r)
		}
	}
	m.recordDispatch(ctx, telemetry.HookSearch, len(providers), faults)
	return results
}

// dispatch runs hook on a snapshot of the enabled extensions taken at call
// start. Extensions enabled or disabled by a hook take part from the next
// dispatch on.
func (m *Manager) dispatch(ctx context.Context, hook string, fn func(context.Context, extension.Extension) error) {
	exts := m.snapshot()
	ctx, span := m.tracer.Start(ctx, "extensions."+hook,
		trace.WithAttributes(telemetry.DispatchAttributes(hook, len(exts))...))
	defer span.End()

	faults := 0
	for _, ext := range exts {
		if err := m.invoke(ctx, ext.ID(), hook, func() error { return fn(ctx, ext) }); err != nil {
			faults++
		}
	}
	span.SetAttributes(attribute.Int(telemetry.AttrHookFault, faults))
	m.recordDispatch(ctx, hook, len(exts), faults)
}

// collect is dispatch for the side-effect-free provider hooks.
func (m *Manager) collect(ctx context.Context, hook string, fn func(extension.Extension)) {
	exts := m.snapshot()
	faults := 0
	for _, ext := range exts {
		if err := m.invoke(ctx, ext.ID(), hook, func() error { fn(ext); return nil }); err != nil {
			faults++
		}
	}
	m.recordDispatch(ctx, hook, len(exts), faults)
}

// snapshot returns the enabled extensions in enable order.
func (m *Manager) snapshot() []extension.Extension {
	m.mu.Lock()
	ids := m.enabled.Get()
	loaded := m.loaded.Get()
	m.mu.Unlock()

	exts := make([]extension.Extension, 0, len(ids))
	for _, id := range ids {
		if ext, ok := loaded[id]; ok {
			exts = append(exts, ext)
		}
	}
	return exts
}

func (m *Manager) recordDispatch(ctx context.Context, hook string, n, faults int) {
	m.stats.dispatches.Add(1)
	m.stats.lastFaults.Store(int64(faults))
	m.metrics.RecordDispatch(ctx, hook, n)
}

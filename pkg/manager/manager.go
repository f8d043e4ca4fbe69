// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package manager orchestrates extension lifecycle and fan-out dispatch.
//
// The Manager owns two sets: the loaded set (identity to live instance) and
// the enabled subset that receives events and queries. Both are published
// as observables. Every call into extension code is isolated: a hook that
// returns an error or panics is logged and skipped, and sibling extensions
// still run.
package manager

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/observable"
	"github.com/jllopis/launcher/pkg/registry"
	"github.com/jllopis/launcher/pkg/store"
	"github.com/jllopis/launcher/pkg/telemetry"
)

// Resolver constructs an extension instance from its identifier.
// *registry.Loader satisfies it.
type Resolver interface {
	Resolve(id string) (extension.Extension, error)
}

// Manager is the extension orchestrator. Construct one per host session.
type Manager struct {
	resolver Resolver
	store    store.ArtifactStore
	logger   *slog.Logger
	metrics  *telemetry.ExtensionMetrics
	tracer   trace.Tracer

	// lifecycle serializes install, uninstall and bulk load.
	lifecycle sync.Mutex
	// mu guards every mutation of loaded and enabled.
	mu      sync.Mutex
	loaded  *observable.Value[map[string]extension.Extension]
	enabled *observable.Value[[]string]
	// leaving holds ids whose uninstall is in progress; Enable refuses them.
	leaving map[string]bool

	stats stats
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for fault and lifecycle logs.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records dispatch and fault counters.
func WithMetrics(metrics *telemetry.ExtensionMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTracer overrides the tracer used for dispatch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// New creates a Manager. A nil store keeps artifacts in memory.
func New(resolver Resolver, st store.ArtifactStore, opts ...Option) *Manager {
	if st == nil {
		st = store.NewMemoryStore()
	}
	m := &Manager{
		resolver: resolver,
		store:    st,
		logger:   slog.Default(),
		tracer:   otel.Tracer("launcher/manager"),
		loaded:   observable.New(map[string]extension.Extension{}),
		enabled:  observable.New([]string{}),
		leaving:  map[string]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Install resolves the artifact, persists it and adds the instance to the
// loaded set, then runs its install hook. On any failure no partial state
// is left behind.
func (m *Manager) Install(ctx context.Context, artifact store.Artifact) (string, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	name := registry.IdentifierFromName(artifact.Name)
	if name == "" {
		return "", errors.New(errors.CodeInvalidInput, "artifact name is required", nil)
	}
	ext, err := m.resolver.Resolve(name)
	if err != nil {
		return "", err
	}
	id, err := validate(ext)
	if err != nil {
		return "", errors.AsLauncherError(err).WithContext("artifact", artifact.Name)
	}
	if _, ok := m.loaded.Get()[id]; ok {
		return "", errors.New(errors.CodeAlreadyExists, fmt.Sprintf("extension %s is already installed", id), nil).
			WithContext("extension_id", id)
	}

	if err := m.store.Put(ctx, id, artifact.Data); err != nil {
		return "", storageError(fmt.Sprintf("persist artifact for %s", id), err).WithContext("extension_id", id)
	}
	m.insertLoaded(ext)

	if err := m.invoke(ctx, id, telemetry.HookInstall, func() error { return ext.OnInstall(ctx) }); err != nil {
		m.removeLoaded(id)
		if derr := m.store.Delete(ctx, id); derr != nil {
			m.logger.ErrorContext(ctx, "failed to roll back artifact", "extension_id", id, "error", derr)
		}
		return "", err
	}

	m.logger.InfoContext(ctx, "extension installed", "extension_id", id, "version", ext.Descriptor().Version)
	return id, nil
}

// Uninstall disables the extension if needed, runs its uninstall hook,
// removes it from the loaded set and deletes its artifact. Removal always
// happens; hook and storage faults are returned afterwards.
func (m *Manager) Uninstall(ctx context.Context, id string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	ext, ok := m.loaded.Get()[id]
	if !ok {
		return errors.New(errors.CodeNotFound, fmt.Sprintf("extension %s is not installed", id), nil).
			WithContext("extension_id", id)
	}

	m.mu.Lock()
	m.leaving[id] = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.leaving, id)
		m.mu.Unlock()
	}()

	m.Disable(ctx, id)

	var hookErr, storeErr error
	hookErr = m.invoke(ctx, id, telemetry.HookUninstall, func() error { return ext.OnUninstall(ctx) })
	m.removeLoaded(id)
	if err := m.store.Delete(ctx, id); err != nil {
		storeErr = storageError(fmt.Sprintf("delete artifact for %s", id), err)
	}

	m.logger.InfoContext(ctx, "extension uninstalled", "extension_id", id)

	switch {
	case hookErr != nil && storeErr != nil:
		return errors.New(errors.CodeExtensionFault, fmt.Sprintf("uninstall of %s completed with errors", id),
			stderrors.Join(hookErr, storeErr)).WithContext("extension_id", id)
	case hookErr != nil:
		return hookErr
	default:
		return storeErr
	}
}

// Enable adds id to the enabled set and runs its enable hook. It reports
// whether the set changed; unknown, already enabled and uninstalling ids
// are a no-op.
func (m *Manager) Enable(ctx context.Context, id string) bool {
	m.mu.Lock()
	ext, ok := m.loaded.Get()[id]
	if !ok || m.leaving[id] || slices.Contains(m.enabled.Get(), id) {
		m.mu.Unlock()
		return false
	}
	m.enabled.Update(func(ids []string) []string {
		return append(slices.Clone(ids), id)
	})
	m.mu.Unlock()

	m.invoke(ctx, id, telemetry.HookEnable, func() error { return ext.OnEnable(ctx) })
	m.logger.DebugContext(ctx, "extension enabled", "extension_id", id)
	return true
}

// Disable removes id from the enabled set and runs its disable hook. It
// reports whether the set changed.
func (m *Manager) Disable(ctx context.Context, id string) bool {
	m.mu.Lock()
	ext, ok := m.loaded.Get()[id]
	if !ok || !slices.Contains(m.enabled.Get(), id) {
		m.mu.Unlock()
		return false
	}
	m.enabled.Update(func(ids []string) []string {
		return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
	})
	m.mu.Unlock()

	m.invoke(ctx, id, telemetry.HookDisable, func() error { return ext.OnDisable(ctx) })
	m.logger.DebugContext(ctx, "extension disabled", "extension_id", id)
	return true
}

// IsEnabled reports whether id is in the enabled set.
func (m *Manager) IsEnabled(id string) bool {
	return slices.Contains(m.enabled.Get(), id)
}

// Loaded returns a copy of the loaded set.
func (m *Manager) Loaded() map[string]extension.Extension {
	src := m.loaded.Get()
	out := make(map[string]extension.Extension, len(src))
	for id, ext := range src {
		out[id] = ext
	}
	return out
}

// Enabled returns the enabled identifiers in enable order.
func (m *Manager) Enabled() []string {
	return slices.Clone(m.enabled.Get())
}

// Extension returns the loaded instance for id.
func (m *Manager) Extension(id string) (extension.Extension, bool) {
	ext, ok := m.loaded.Get()[id]
	return ext, ok
}

// LoadedValue exposes the loaded set for subscription. Published maps must
// not be modified.
func (m *Manager) LoadedValue() observable.Observable[map[string]extension.Extension] {
	return m.loaded
}

// EnabledValue exposes the enabled set for subscription. Published slices
// must not be modified.
func (m *Manager) EnabledValue() observable.Observable[[]string] {
	return m.enabled
}

// LoadInstalledExtensions resolves every stored artifact and adds the ones
// that load to the loaded set. A bad artifact is logged and skipped; only a
// failure to enumerate the store is returned.
func (m *Manager) LoadInstalledExtensions(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return storageError("list installed extensions", err)
	}

	current := m.loaded.Get()
	var batch []extension.Extension
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		ext, err := m.resolver.Resolve(key)
		if err != nil {
			m.stats.loadFailures.Add(1)
			m.logger.ErrorContext(ctx, "failed to load installed extension", "extension_id", key, "error", err)
			continue
		}
		id, err := validate(ext)
		switch {
		case err != nil:
			m.stats.loadFailures.Add(1)
			m.logger.ErrorContext(ctx, "installed extension is invalid", "artifact", key, "error", err)
			continue
		case current[id] != nil || seen[id]:
			m.logger.DebugContext(ctx, "extension already loaded", "extension_id", id)
			continue
		case id != key:
			m.logger.WarnContext(ctx, "artifact key differs from extension identity", "artifact", key, "extension_id", id)
		}
		seen[id] = true
		batch = append(batch, ext)
	}

	m.insertLoaded(batch...)
	m.logger.InfoContext(ctx, "installed extensions loaded", "loaded", len(batch), "artifacts", len(keys))
	return nil
}

// Close disables every enabled extension, most recently enabled first.
func (m *Manager) Close(ctx context.Context) {
	ids := m.Enabled()
	for i := len(ids) - 1; i >= 0; i-- {
		m.Disable(ctx, ids[i])
	}
}

// validate checks the instance's descriptor under the identity it reports.
func validate(ext extension.Extension) (string, error) {
	desc := ext.Descriptor()
	desc.ID = ext.ID()
	if err := desc.Validate(); err != nil {
		return "", err
	}
	return desc.ID, nil
}

func (m *Manager) insertLoaded(exts ...extension.Extension) {
	if len(exts) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded.Update(func(cur map[string]extension.Extension) map[string]extension.Extension {
		next := make(map[string]extension.Extension, len(cur)+len(exts))
		for id, ext := range cur {
			next[id] = ext
		}
		for _, ext := range exts {
			next[ext.ID()] = ext
		}
		return next
	})
}

func (m *Manager) removeLoaded(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded.Update(func(cur map[string]extension.Extension) map[string]extension.Extension {
		next := make(map[string]extension.Extension, len(cur))
		for k, ext := range cur {
			if k != id {
				next[k] = ext
			}
		}
		return next
	})
	if slices.Contains(m.enabled.Get(), id) {
		m.enabled.Update(func(ids []string) []string {
			return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
		})
	}
}

// invoke runs one extension hook, converting returned errors and panics
// into CodeExtensionFault. Faults are logged and counted here.
func (m *Manager) invoke(ctx context.Context, id, hook string, fn func() error) (err error) {
	ctx = telemetry.WithDispatch(ctx, id, hook)
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CodeExtensionFault, fmt.Sprintf("%s panicked in %s", id, hook), fmt.Errorf("%v", r)).
				WithContext("extension_id", id).
				WithContext("hook", hook)
			m.logger.ErrorContext(ctx, "extension hook panicked", "error", err, "stack", string(debug.Stack()))
		} else if err != nil {
			err = errors.New(errors.CodeExtensionFault, fmt.Sprintf("%s failed in %s", id, hook), err).
				WithContext("extension_id", id).
				WithContext("hook", hook)
			m.logger.WarnContext(ctx, "extension hook failed", "error", err)
		}
		if err != nil {
			m.stats.faults.Add(1)
			m.metrics.RecordFault(ctx, hook, id)
			m.metrics.RecordError(ctx, err, "manager")
		}
	}()
	return fn()
}

func storageError(msg string, err error) *errors.LauncherError {
	if le := errors.AsLauncherError(err); le != nil && le.Code != errors.CodeInternal {
		return le
	}
	return errors.New(errors.CodeStorage, msg, err)
}

// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the config file, its profile overlay and the governance
// policy file, and reloads when any of them changes. The set of watched
// files is recomputed after every reload so a newly configured policy
// file is picked up.
type Watcher struct {
	path      string
	profile   string
	overrides map[string]any
	interval  time.Duration
	logger    *slog.Logger

	mu        sync.RWMutex
	config    *Config
	stamps    map[string]fileStamp
	listeners []func(*Config)

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWatchProfile reloads with the given profile overlay.
func WithWatchProfile(profile string) WatcherOption {
	return func(w *Watcher) {
		w.profile = profile
	}
}

// WithWatchOverrides reapplies --set style overrides on every reload.
func WithWatchOverrides(overrides map[string]any) WatcherOption {
	return func(w *Watcher) {
		w.overrides = overrides
	}
}

// NewWatcher loads path once and prepares to watch it. Call Start to begin
// polling.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		logger:   slog.Default(),
		stamps:   make(map[string]fileStamp),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, err := load(w.path, w.profile, w.overrides)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	w.stamps = stampAll(w.watchedPaths(cfg))
	return w, nil
}

// watchedPaths lists the files whose change triggers a reload.
func (w *Watcher) watchedPaths(cfg *Config) []string {
	if w.path == "" {
		return nil
	}
	paths := []string{w.path}
	if p := profileConfigPath(w.path, w.profile); p != "" {
		paths = append(paths, p)
	}
	if cfg != nil && cfg.Governance.PolicyFile != "" {
		paths = append(paths, cfg.Governance.PolicyFile)
	}
	return paths
}

func stampAll(paths []string) map[string]fileStamp {
	stamps := make(map[string]fileStamp, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			stamps[p] = fileStamp{modTime: info.ModTime(), size: info.Size()}
		}
	}
	return stamps
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start polls until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop ends polling and waits for the poller to exit. Start must have
// been called.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.changed() {
				w.reload()
			}
		}
	}
}

// changed compares the current stamps with the recorded ones. A file that
// disappears counts as a change only once it comes back.
func (w *Watcher) changed() bool {
	w.mu.RLock()
	paths := w.watchedPaths(w.config)
	prev := w.stamps
	w.mu.RUnlock()

	for p, stamp := range stampAll(paths) {
		old, ok := prev[p]
		if !ok || !stamp.modTime.Equal(old.modTime) || stamp.size != old.size {
			return true
		}
	}
	return false
}

func (w *Watcher) reload() {
	cfg, err := load(w.path, w.profile, w.overrides)

	w.mu.Lock()
	if err != nil {
		// Record the broken state so the same edit is not retried each tick.
		w.stamps = stampAll(w.watchedPaths(w.config))
		w.mu.Unlock()
		w.logger.Error("config reload failed", "path", w.path, "error", err)
		return
	}
	w.config = cfg
	w.stamps = stampAll(w.watchedPaths(cfg))
	listeners := append([]func(*Config){}, w.listeners...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path, "profile", w.profile)
	for _, fn := range listeners {
		fn(cfg)
	}
}

// WatchConfig creates a watcher for configPath with the profile overlay
// and starts it. It returns the watcher and the initial config.
func WatchConfig(ctx context.Context, configPath, profile string, opts ...WatcherOption) (*Watcher, *Config, error) {
	opts = append(opts, WithWatchProfile(profile))
	w, err := NewWatcher(configPath, opts...)
	if err != nil {
		return nil, nil, err
	}
	w.Start(ctx)
	return w, w.Config(), nil
}

// WatchWithCLI is WatchConfig driven by the same arguments as LoadWithCLI;
// --set overrides stay applied across reloads.
func WatchWithCLI(ctx context.Context, args []string, opts ...WatcherOption) (*Watcher, *Config, error) {
	path, profile, overrides, err := parseCLI(args)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, WithWatchOverrides(overrides))
	return WatchConfig(ctx, path, profile, opts...)
}

// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry resolves extension identifiers to constructed instances.
//
// The registry is a static factory table: an identifier maps to a function
// that builds a fresh extension. Artifacts on disk are resolved by their
// base name, so "com.launcher.weather.ext" loads the factory registered as
// "com.launcher.weather". Artifact bytes are never interpreted here.
package registry

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
)

// Factory builds a new extension instance.
type Factory func() (extension.Extension, error)

// Loader maps identifiers to factories.
type Loader struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for soft failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns an empty loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		factories: make(map[string]Factory),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register associates id with factory. The last registration wins.
func (l *Loader) Register(id string, factory Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[id] = factory
	l.logger.Debug("registered extension", "extension_id", id)
}

// RegisterFunc is Register for factories that cannot fail.
func (l *Loader) RegisterFunc(id string, fn func() extension.Extension) {
	l.Register(id, func() (extension.Extension, error) { return fn(), nil })
}

// Registered returns the registered identifiers in sorted order.
func (l *Loader) Registered() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.factories))
	for id := range l.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve invokes the factory registered for id.
// It returns CodeNotFound when nothing is registered and CodeExtensionFault
// when the factory fails, panics or returns nil.
func (l *Loader) Resolve(id string) (ext extension.Extension, err error) {
	l.mu.RLock()
	factory, ok := l.factories[id]
	l.mu.RUnlock()
	if !ok || factory == nil {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("extension %s not found in registry", id), nil).
			WithContext("extension_id", id)
	}

	defer func() {
		if r := recover(); r != nil {
			ext = nil
			err = errors.New(errors.CodeExtensionFault, fmt.Sprintf("factory for %s panicked", id), fmt.Errorf("%v", r)).
				WithContext("extension_id", id)
		}
	}()

	ext, err = factory()
	if err != nil {
		return nil, errors.New(errors.CodeExtensionFault, fmt.Sprintf("factory for %s failed", id), err).
			WithContext("extension_id", id)
	}
	if ext == nil {
		return nil, errors.New(errors.CodeExtensionFault, fmt.Sprintf("factory for %s returned nil", id), nil).
			WithContext("extension_id", id)
	}
	return ext, nil
}

// LoadFromIdentifier is the soft form of Resolve: failures are logged and
// reported as not found.
func (l *Loader) LoadFromIdentifier(id string) (extension.Extension, bool) {
	ext, err := l.Resolve(id)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			l.logger.Warn("extension not found in registry", "extension_id", id)
		} else {
			l.logger.Error("failed to load extension", "extension_id", id, "error", err)
		}
		return nil, false
	}
	return ext, true
}

// LoadFromFile resolves the artifact at path by its base name.
func (l *Loader) LoadFromFile(path string) (extension.Extension, bool) {
	return l.LoadFromIdentifier(IdentifierFromName(path))
}

// IdentifierFromName strips the directory and the final suffix from an
// artifact name: "/x/com.launcher.notes.ext" -> "com.launcher.notes".
func IdentifierFromName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

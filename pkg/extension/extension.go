// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package extension defines the contract every launcher extension implements.
//
// An extension hooks into launcher events, answers assistant queries and may
// contribute a widget, a search provider or a theme. Every hook has a no-op
// default in Base, so an implementation embeds Base and overrides only what
// it uses:
//
//	type Clock struct{ extension.Base }
//
//	func NewClock() *Clock {
//		return &Clock{Base: extension.NewBase(extension.Descriptor{ID: "com.example.clock", Name: "Clock"})}
//	}
//
// Hooks may return an error or panic; the manager isolates both per
// extension. Extensions must not retain the LauncherContext they are given.
package extension

import "context"

// Extension is the capability surface of a pluggable launcher unit.
type Extension interface {
	// ID returns the unique, non-blank identifier (e.g. "com.launcher.weather").
	ID() string

	// Descriptor returns the immutable metadata of this instance.
	Descriptor() Descriptor

	// Lifecycle hooks.
	OnInstall(ctx context.Context) error
	OnEnable(ctx context.Context) error
	OnDisable(ctx context.Context) error
	OnUninstall(ctx context.Context) error

	// Event hooks. Fire-and-forget; a returned error is only logged.
	OnLauncherStart(ctx context.Context) error
	OnAppLaunched(ctx context.Context, appID string) error
	OnAppDrawerOpened(ctx context.Context) error
	OnHomeScreenLongPress(ctx context.Context, pos GridPosition) error

	// OnAIQuery answers a free-text query. A nil response with a nil error
	// means the extension cannot handle the query.
	OnAIQuery(ctx context.Context, query string, lc LauncherContext) (*Response, error)

	// UI contributions. Called lazily and possibly repeatedly; must be cheap
	// and free of side effects. Nil means "nothing to contribute".
	ProvideWidget() *Widget
	ProvideSearchProvider() SearchProvider
	ProvideTheme() *Theme
}

// GridPosition is a cell on the home screen grid.
type GridPosition struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Base provides the default (no-op) implementation of every hook.
type Base struct {
	desc Descriptor
}

// NewBase returns a Base carrying the given descriptor.
func NewBase(desc Descriptor) Base {
	desc.Permissions = append([]Permission(nil), desc.Permissions...)
	return Base{desc: desc}
}

// ID implements Extension.
func (b Base) ID() string { return b.desc.ID }

// Descriptor implements Extension. The returned value is a copy.
func (b Base) Descriptor() Descriptor {
	d := b.desc
	d.Permissions = append([]Permission(nil), b.desc.Permissions...)
	return d
}

func (Base) OnInstall(context.Context) error   { return nil }
func (Base) OnEnable(context.Context) error    { return nil }
func (Base) OnDisable(context.Context) error   { return nil }
func (Base) OnUninstall(context.Context) error { return nil }

func (Base) OnLauncherStart(context.Context) error                     { return nil }
func (Base) OnAppLaunched(context.Context, string) error               { return nil }
func (Base) OnAppDrawerOpened(context.Context) error                   { return nil }
func (Base) OnHomeScreenLongPress(context.Context, GridPosition) error { return nil }

func (Base) OnAIQuery(context.Context, string, LauncherContext) (*Response, error) {
	return nil, nil
}

func (Base) ProvideWidget() *Widget                { return nil }
func (Base) ProvideSearchProvider() SearchProvider { return nil }
func (Base) ProvideTheme() *Theme                  { return nil }

var _ Extension = Base{}

// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package core aggregates component health for the status command. The
// extension manager, the assistant and the preference store each register
// a checker.
package core

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jllopis/launcher/pkg/errors"
)

// HealthStatus orders from healthy to unhealthy.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "HEALTHY"
	// HealthDegraded means working with reduced capacity, e.g. faults in the
	// last dispatch or no assistant backend.
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthHealthy:
		return 0
	case HealthDegraded:
		return 1
	}
	return 2
}

// HealthResult is one component's report.
type HealthResult struct {
	Status    HealthStatus      `json:"status"`
	Component string            `json:"component"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	LastCheck time.Time         `json:"last_check"`
	Error     error             `json:"-"`
}

// HealthChecker reports a component's health. ctx bounds the check.
type HealthChecker interface {
	Check(ctx context.Context) HealthResult
}

// CheckFunc adapts a function to HealthChecker. A zero LastCheck is
// stamped with the current time.
type CheckFunc func(ctx context.Context) HealthResult

func (f CheckFunc) Check(ctx context.Context) HealthResult {
	res := f(ctx)
	if res.LastCheck.IsZero() {
		res.LastCheck = time.Now()
	}
	return res
}

// Static reports the same status and message on every check.
func Static(status HealthStatus, message string) CheckFunc {
	return func(context.Context) HealthResult {
		return HealthResult{Status: status, Message: message}
	}
}

// HealthRegistry runs named checkers and caches their results for a TTL
// so repeated status calls do not hit remote backends.
type HealthRegistry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	checkers map[string]HealthChecker
	cache    map[string]HealthResult
}

// NewHealthRegistry creates a registry. Zero ttl means ten seconds and a
// negative one disables caching.
func NewHealthRegistry(ttl time.Duration) *HealthRegistry {
	if ttl == 0 {
		ttl = 10 * time.Second
	}
	return &HealthRegistry{
		ttl:      ttl,
		now:      time.Now,
		checkers: map[string]HealthChecker{},
		cache:    map[string]HealthResult{},
	}
}

// RegisterChecker sets the checker for name and drops its cached result.
func (r *HealthRegistry) RegisterChecker(name string, checker HealthChecker) {
	r.mu.Lock()
	r.checkers[name] = checker
	delete(r.cache, name)
	r.mu.Unlock()
}

// Check runs one named checker.
func (r *HealthRegistry) Check(ctx context.Context, name string) (HealthResult, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	r.mu.RUnlock()
	if !ok {
		return HealthResult{}, errors.Newf(errors.CodeNotFound, "health checker not registered: %s", name).
			WithContext("component", name)
	}
	return r.run(ctx, name, checker), nil
}

// CheckAll runs every checker concurrently. Results are ordered by
// component and the overall status is the worst one seen.
func (r *HealthRegistry) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	checkers := make([]HealthChecker, len(names))
	slices.Sort(names)
	for i, name := range names {
		checkers[i] = r.checkers[name]
	}
	r.mu.RUnlock()

	results := make([]HealthResult, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.run(ctx, names[i], checkers[i])
		}()
	}
	wg.Wait()

	overall := HealthHealthy
	for _, res := range results {
		if res.Status.severity() > overall.severity() {
			overall = res.Status
		}
	}
	return results, overall
}

func (r *HealthRegistry) run(ctx context.Context, name string, checker HealthChecker) HealthResult {
	if res, ok := r.cached(name); ok {
		return res
	}
	res := checker.Check(ctx)
	res.Component = name
	if res.Status == "" {
		res.Status = HealthUnhealthy
	}
	if res.LastCheck.IsZero() {
		res.LastCheck = r.now()
	}
	// A result cut short by the caller is not worth keeping.
	if r.ttl > 0 && ctx.Err() == nil {
		r.mu.Lock()
		r.cache[name] = res
		r.mu.Unlock()
	}
	return res
}

func (r *HealthRegistry) cached(name string) (HealthResult, bool) {
	if r.ttl <= 0 {
		return HealthResult{}, false
	}
	r.mu.RLock()
	res, ok := r.cache[name]
	r.mu.RUnlock()
	return res, ok && r.now().Sub(res.LastCheck) < r.ttl
}

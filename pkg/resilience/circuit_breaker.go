// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/jllopis/launcher/pkg/errors"
)

// ErrCircuitOpen is the cause of every error returned while a breaker is open.
var ErrCircuitOpen = stderrors.New("circuit breaker open")

// State is the position of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig configures a Breaker. Zero fields take defaults.
type BreakerConfig struct {
	Name string
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Probes is the number of half-open successes needed to close again.
	Probes int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// Counts decides whether an error is a failure. Nil counts everything
	// except context cancellation.
	Counts func(error) bool
	// OnStateChange runs after every transition, outside the lock.
	OnStateChange func(name string, from, to State)
}

// Breaker stops calling a dependency that keeps failing.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	streak   int // failures while closed, successes while half-open
	openedAt time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "breaker"
	}
	if cfg.Threshold < 1 {
		cfg.Threshold = 5
	}
	if cfg.Probes < 1 {
		cfg.Probes = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool { return !stderrors.Is(err, context.Canceled) }
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Call runs fn unless the breaker is open and records the outcome. fn runs
// without the lock, so calls may overlap.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.Lock()
	from := b.state
	b.advance()
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)

	if to == StateOpen {
		return errors.New(errors.CodeLLMError, "circuit breaker open", ErrCircuitOpen).
			WithContext("breaker", b.cfg.Name)
	}

	err := fn(ctx)

	b.mu.Lock()
	from = b.state
	switch {
	case err != nil && b.cfg.Counts(err):
		b.streak++
		if b.state == StateHalfOpen || b.streak >= b.cfg.Threshold {
			b.trip()
		}
	case err == nil && b.state == StateHalfOpen:
		b.streak++
		if b.streak >= b.cfg.Probes {
			b.state, b.streak = StateClosed, 0
		}
	case err == nil:
		b.streak = 0
	}
	to = b.state
	b.mu.Unlock()
	b.notify(from, to)
	return err
}

// advance moves an open breaker to half-open after the cooldown.
// Callers hold the lock.
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) > b.cfg.Cooldown {
		b.state, b.streak = StateHalfOpen, 0
	}
}

func (b *Breaker) trip() {
	b.state, b.streak, b.openedAt = StateOpen, 0, b.now()
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state, probing the cooldown first.
func (b *Breaker) State() State {
	b.mu.Lock()
	from := b.state
	b.advance()
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return to
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state, b.streak = StateClosed, 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

// Open forces the breaker open for one cooldown.
func (b *Breaker) Open() {
	b.mu.Lock()
	from := b.state
	b.trip()
	b.mu.Unlock()
	b.notify(from, StateOpen)
}

// IsCircuitOpen reports whether err was returned by an open breaker.
func IsCircuitOpen(err error) bool {
	return stderrors.Is(err, ErrCircuitOpen)
}

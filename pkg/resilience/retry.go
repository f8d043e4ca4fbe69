// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides retry, timeout and circuit breaker helpers
// for calls that leave the process, such as the assistant's LLM fallback
// and remote MCP extensions.
package resilience

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"time"

	"github.com/jllopis/launcher/pkg/errors"
)

// Backoff is an exponential delay schedule.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration // zero means uncapped
	Factor  float64       // zero means 2
	Jitter  float64       // fraction of the delay, 0.1 is ±10%
}

// Delay returns the wait before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	factor := b.Factor
	if factor == 0 {
		factor = 2
	}
	d := float64(b.Initial)
	for i := 1; i < n; i++ {
		d *= factor
		if b.Max > 0 && d >= float64(b.Max) {
			break
		}
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Policy decides how often a failing call is repeated.
type Policy struct {
	// Attempts counts the first call; values below 1 mean a single call.
	Attempts int
	Backoff  Backoff
	// Retryable filters errors worth another attempt. Nil uses IsRecoverable.
	Retryable func(error) bool
	// OnRetry, when set, runs before each wait.
	OnRetry func(n int, err error, wait time.Duration)
}

// DefaultPolicy makes three attempts starting at 100ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Backoff:  Backoff{Initial: 100 * time.Millisecond, Max: 10 * time.Second, Factor: 2, Jitter: 0.1},
	}
}

// Do calls fn until it succeeds, returns a non-retryable error or the
// attempts run out. The last error is returned unchanged; cancellation
// while waiting yields errors.CodeContextLost.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRecoverable
	}
	attempts := max(p.Attempts, 1)

	var err error
	for n := 0; n < attempts; n++ {
		if n > 0 {
			wait := p.Backoff.Delay(n)
			if p.OnRetry != nil {
				p.OnRetry(n, err, wait)
			}
			if werr := sleep(ctx, wait); werr != nil {
				return errors.New(errors.CodeContextLost, "retry abandoned", stderrors.Join(werr, err)).
					WithContext("attempt", n+1).
					WithContext("attempts", attempts)
			}
		}
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

// Retry is Policy.Do for calls that produce a value.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRecoverable honours the Recoverable flag of a LauncherError anywhere in
// the chain. Context cancellation is never retried; other foreign errors are.
func IsRecoverable(err error) bool {
	var le *errors.LauncherError
	switch {
	case err == nil:
		return false
	case stderrors.As(err, &le):
		return le.Recoverable
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

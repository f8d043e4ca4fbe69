// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jllopis/launcher/pkg/errors"
)

// WithTimeout runs fn with a context bounded by d. A zero d runs fn with ctx
// unchanged. When the bound, not the parent, expires the error is
// errors.CodeTimeout and recoverable.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(tctx)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && stderrors.Is(tctx.Err(), context.DeadlineExceeded) {
			return timeoutError(d, err)
		}
		return err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return errors.New(errors.CodeContextLost, "operation cancelled", ctx.Err())
		}
		return timeoutError(d, tctx.Err())
	}
}

// WithTimeoutResult is WithTimeout for functions that return a value.
func WithTimeoutResult[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := WithTimeout(ctx, d, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func timeoutError(d time.Duration, cause error) *errors.LauncherError {
	return errors.New(errors.CodeTimeout, "operation exceeded timeout", cause).
		WithContext("timeout", d.String()).
		WithRecoverable(true)
}

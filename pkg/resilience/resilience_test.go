package resilience

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jllopis/launcher/pkg/errors"
)

func fastRetry() Policy {
	p := DefaultPolicy()
	p.Backoff = Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond}
	return p
}

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	err := fastRetry().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return stderrors.New("transient error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0
	p := fastRetry()
	p.Attempts = 2
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return stderrors.New("always fails")
	})
	if err == nil || err.Error() != "always fails" {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryNonRecoverable(t *testing.T) {
	attempts := 0
	err := fastRetry().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New(errors.CodeInvalidInput, "bad request", nil)
	})
	if !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryRecoverableLauncherError(t *testing.T) {
	attempts := 0
	err := fastRetry().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New(errors.CodeTimeout, "timed out", nil).WithRecoverable(true)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultPolicy()
	config.Backoff.Initial = 200 * time.Millisecond

	attempts := 0
	err := config.Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return stderrors.New("transient error")
	})
	if !errors.IsCode(err, errors.CodeContextLost) {
		t.Fatalf("expected context lost error, got %v", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryOnRetryHook(t *testing.T) {
	p := fastRetry()
	var seen []int
	p.OnRetry = func(n int, err error, wait time.Duration) {
		if err == nil || wait < 0 {
			t.Errorf("retry %d: err=%v wait=%v", n, err, wait)
		}
		seen = append(seen, n)
	}
	p.Retryable = func(err error) bool { return err.Error() != "stop" }

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return stderrors.New("stop")
		}
		return stderrors.New("again")
	})
	if err == nil || err.Error() != "stop" {
		t.Fatalf("expected filter to stop retries, got %v", err)
	}
	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("unexpected retry notifications %v", seen)
	}
}

func TestRetryResult(t *testing.T) {
	attempts := 0
	result, err := Retry(context.Background(), fastRetry(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", stderrors.New("transient")
		}
		return "success", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result != "success" || attempts != 2 {
		t.Errorf("unexpected result %q after %d attempts", result, attempts)
	}
}

func TestIsRecoverable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", stderrors.New("boom"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"launcher recoverable", errors.New(errors.CodeRateLimit, "slow down", nil).WithRecoverable(true), true},
		{"launcher fatal", errors.New(errors.CodeLLMError, "bad key", nil), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRecoverable(tc.err); got != tc.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 35 * time.Millisecond}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Errorf("retry %d: expected %v, got %v", i+1, w, got)
		}
	}

	jittered := Backoff{Initial: 100 * time.Millisecond, Jitter: 0.1}
	for range 20 {
		if d := jittered.Delay(1); d < 90*time.Millisecond || d > 110*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	le := errors.AsLauncherError(err)
	if le == nil || le.Code != errors.CodeTimeout || !le.Recoverable {
		t.Fatalf("expected recoverable timeout, got %v", err)
	}

	if err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := WithTimeout(context.Background(), 0, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("expected nil with zero timeout, got %v", err)
	}
}

func TestWithTimeoutParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if errors.IsCode(err, errors.CodeTimeout) {
		t.Fatalf("parent cancellation must not report a timeout: %v", err)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestWithTimeoutResult(t *testing.T) {
	v, err := WithTimeoutResult(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %d (%v)", v, err)
	}

	v, err = WithTimeoutResult(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 7, ctx.Err()
	})
	if !errors.IsCode(err, errors.CodeTimeout) || v != 0 {
		t.Fatalf("expected timeout with zero value, got %d (%v)", v, err)
	}
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewBreaker(BreakerConfig{Threshold: 3, Name: "test"})
	if cb.State() != StateClosed {
		t.Errorf("expected initial state closed")
	}
	for i := 0; i < 5; i++ {
		if err := cb.Call(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
			t.Errorf("call %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected state to remain closed after success")
	}
}

func TestBreakerOpens(t *testing.T) {
	var transitions []string
	cb := NewBreaker(BreakerConfig{
		Threshold: 2,
		Name:      "test",
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), func(ctx context.Context) error {
			return stderrors.New("failure")
		})
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected state open after 2 failures")
	}
	if len(transitions) != 1 || transitions[0] != "test:closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		t.Fatalf("should not execute in open state")
		return nil
	})
	if !IsCircuitOpen(err) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if IsRecoverable(err) {
		t.Errorf("open breaker errors must not be retried")
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	cb := NewBreaker(BreakerConfig{Threshold: 1})
	_ = cb.Call(context.Background(), func(ctx context.Context) error { return context.Canceled })
	if cb.State() != StateClosed {
		t.Errorf("cancellation should not trip the breaker")
	}
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	cb := NewBreaker(BreakerConfig{Threshold: 2})
	fail := func(ctx context.Context) error { return stderrors.New("fail") }
	_ = cb.Call(context.Background(), fail)
	_ = cb.Call(context.Background(), func(ctx context.Context) error { return nil })
	_ = cb.Call(context.Background(), fail)
	if cb.State() != StateClosed {
		t.Errorf("non-consecutive failures must not open the breaker")
	}
}

func TestBreakerHalfOpen(t *testing.T) {
	cb := NewBreaker(BreakerConfig{Threshold: 1, Probes: 2, Cooldown: time.Minute})
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	cb.now = func() time.Time { return time.Unix(0, now.Load()) }

	_ = cb.Call(context.Background(), func(ctx context.Context) error { return stderrors.New("fail") })
	if cb.State() != StateOpen {
		t.Fatalf("expected circuit to be open")
	}

	now.Add(int64(2 * time.Minute))
	_ = cb.Call(context.Background(), func(ctx context.Context) error { return nil })
	if cb.State() != StateHalfOpen {
		t.Errorf("expected half-open after cooldown")
	}

	_ = cb.Call(context.Background(), func(ctx context.Context) error { return nil })
	if cb.State() != StateClosed {
		t.Errorf("expected closed after probes succeed")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewBreaker(BreakerConfig{Threshold: 3, Cooldown: time.Minute})
	base := time.Now()
	cb.now = func() time.Time { return base }
	cb.Open()

	base = base.Add(2 * time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open")
	}
	_ = cb.Call(context.Background(), func(ctx context.Context) error { return stderrors.New("still down") })
	if cb.State() != StateOpen {
		t.Errorf("a failure in half-open should reopen the breaker")
	}
}

func TestBreakerReset(t *testing.T) {
	cb := NewBreaker(BreakerConfig{Threshold: 1})
	_ = cb.Call(context.Background(), func(ctx context.Context) error { return stderrors.New("fail") })
	if cb.State() != StateOpen {
		t.Fatalf("expected circuit to be open")
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after reset")
	}
	if err := cb.Call(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("call failed after reset: %v", err)
	}
}

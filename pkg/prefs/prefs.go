// Package prefs persists which extensions the user has enabled so the set
// survives restarts. The manager keeps enabled state in memory only.
package prefs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jllopis/launcher/pkg/observable"
)

// Store persists the enabled set in enable order.
type Store interface {
	Enabled(ctx context.Context) ([]string, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// Manager is the part of the extension manager prefs needs.
type Manager interface {
	Enable(ctx context.Context, id string) bool
	EnabledValue() observable.Observable[[]string]
}

// Filter narrows the ids restored by Sync, e.g. through a permission gate.
type Filter func(ctx context.Context, ids []string) []string

// MemoryStore keeps preferences in memory.
type MemoryStore struct {
	mu      sync.Mutex
	enabled []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Enabled implements Store.
func (s *MemoryStore) Enabled(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.enabled...), nil
}

// SetEnabled implements Store.
func (s *MemoryStore) SetEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.enabled, id)
	switch {
	case enabled && idx < 0:
		s.enabled = append(s.enabled, id)
	case !enabled && idx >= 0:
		s.enabled = append(s.enabled[:idx:idx], s.enabled[idx+1:]...)
	}
	return nil
}

// Sync enables every persisted id that passes the filters, in persisted
// order, and returns the ids whose state changed. Ids that are not loaded
// are skipped by the manager.
func Sync(ctx context.Context, m Manager, st Store, filters ...Filter) ([]string, error) {
	ids, err := st.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		ids = f(ctx, ids)
	}
	var restored []string
	for _, id := range ids {
		if m.Enable(ctx, id) {
			restored = append(restored, id)
		}
	}
	return restored, nil
}

// Follow writes every later change of the manager's enabled set through to
// st until ctx is done or the returned stop func is called. stop flushes
// the final state and waits for the writer to finish.
func Follow(ctx context.Context, m Manager, st Store, logger *slog.Logger) (stop func()) {
	if logger == nil {
		logger = slog.Default()
	}
	obs := m.EnabledValue()
	ch, cancel := obs.Subscribe()
	baseline := <-ch

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				baseline = apply(context.WithoutCancel(ctx), st, logger, baseline, obs.Get())
				return
			case <-done:
				baseline = apply(ctx, st, logger, baseline, obs.Get())
				return
			case next, ok := <-ch:
				if !ok {
					return
				}
				baseline = apply(ctx, st, logger, baseline, next)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-finished
	}
}

// apply persists the difference between prev and next and returns the new
// baseline. A failed write leaves prev in place for that id so the next
// change retries it.
func apply(ctx context.Context, st Store, logger *slog.Logger, prev, next []string) []string {
	baseline := append([]string(nil), prev...)
	for _, id := range prev {
		if indexOf(next, id) >= 0 {
			continue
		}
		if err := st.SetEnabled(ctx, id, false); err != nil {
			logger.WarnContext(ctx, "persist disable failed", "extension_id", id, "error", err)
			continue
		}
		baseline = remove(baseline, id)
	}
	for _, id := range next {
		if indexOf(prev, id) >= 0 {
			continue
		}
		if err := st.SetEnabled(ctx, id, true); err != nil {
			logger.WarnContext(ctx, "persist enable failed", "extension_id", id, "error", err)
			continue
		}
		baseline = append(baseline, id)
	}
	return baseline
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func remove(ids []string, id string) []string {
	if i := indexOf(ids, id); i >= 0 {
		return append(ids[:i:i], ids[i+1:]...)
	}
	return ids
}

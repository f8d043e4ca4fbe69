// Package observable provides a value holder that publishes every change to
// its subscribers.
package observable

import "sync"

// Observable is the read-only view of a Value.
type Observable[T any] interface {
	Get() T
	Subscribe() (<-chan T, func())
}

// Value holds a T and notifies subscribers when it changes.
// Values are treated as immutable snapshots: callers must not mutate what
// Get returns or what they pass to Set.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	nextID  int
	subs    map[int]chan T
}

// New returns a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, subs: make(map[int]chan T)}
}

// Get returns the current snapshot.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the value and publishes it.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = next
	v.publishLocked(next)
}

// Update applies fn to the current value under the write lock and publishes
// the result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	v.publishLocked(v.current)
	return v.current
}

// Subscribe returns a channel that first receives the current value and
// then every later one. A subscriber that falls behind only sees the most
// recent value; writers never block. Call cancel to stop receiving.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	ch <- v.current
	v.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			close(ch)
			v.mu.Unlock()
		})
	}
	return ch, cancel
}

func (v *Value[T]) publishLocked(next T) {
	for _, ch := range v.subs {
		select {
		case ch <- next:
		default:
			// Drop the stale pending value and replace it.
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}

var _ Observable[int] = (*Value[int])(nil)

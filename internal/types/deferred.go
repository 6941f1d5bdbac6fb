package types

import (
	"context"
	"sync"
)

// Deferred is a single-assignment result completed later, possibly from
// another goroutine. The first Complete wins; later calls are ignored.
type Deferred[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	completed bool
	callbacks []func(T)
}

// NewDeferred creates a pending result
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolved creates an already completed result
func Resolved[T any](v T) *Deferred[T] {
	d := NewDeferred[T]()
	d.Complete(v)
	return d
}

// Complete sets the value and runs registered callbacks. It reports
// whether this call was the one that completed the result. Every callback
// runs even if an earlier one panics; the first panic is re-raised once
// all callbacks have run.
func (d *Deferred[T]) Complete(v T) bool {
	d.mu.Lock()
	if d.completed {
		d.mu.Unlock()
		return false
	}
	d.value = v
	d.completed = true
	callbacks := d.callbacks
	d.callbacks = nil
	close(d.done)
	d.mu.Unlock()

	var first any
	for _, cb := range callbacks {
		if p := invoke(cb, v); p != nil && first == nil {
			first = p
		}
	}
	if first != nil {
		panic(first)
	}
	return true
}

func invoke[T any](fn func(T), v T) (p any) {
	defer func() { p = recover() }()
	fn(v)
	return nil
}

// Then runs fn with the value once completed. If already completed, fn
// runs immediately on the calling goroutine.
func (d *Deferred[T]) Then(fn func(T)) {
	d.mu.Lock()
	if !d.completed {
		d.callbacks = append(d.callbacks, fn)
		d.mu.Unlock()
		return
	}
	v := d.value
	d.mu.Unlock()
	fn(v)
}

// Done is closed once the result is completed
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Value returns the value and whether it has been set
func (d *Deferred[T]) Value() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.completed
}

// Wait blocks until completion or context cancellation
func (d *Deferred[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		v, _ := d.Value()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

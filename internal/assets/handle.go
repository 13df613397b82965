package assets

import (
	"context"
	"fmt"
	"sync/atomic"
)

// LoadState is the progress of an asynchronous load.
type LoadState int32

const (
	StateLoading LoadState = iota
	StateLoaded
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoadState(%d)", int32(s))
	}
}

// Handle is the pollable result of an asynchronous load. Its accessors
// never block, except Wait.
type Handle[T any] struct {
	state atomic.Int32
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on its own goroutine and returns a handle to its result.
// A panic in fn fails the handle instead of crashing the process.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	go func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("load panicked: %v", r)
			}
			h.finish(v, err)
		}()
		v, err = fn(ctx)
	}()
	return h
}

// Ready returns an already loaded handle.
func Ready[T any](v T) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	h.finish(v, nil)
	return h
}

// Failed returns an already failed handle.
func Failed[T any](err error) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	var zero T
	h.finish(zero, err)
	return h
}

func (h *Handle[T]) finish(v T, err error) {
	if err != nil {
		h.err = err
		h.state.Store(int32(StateFailed))
	} else {
		h.value = v
		h.state.Store(int32(StateLoaded))
	}
	close(h.done)
}

// LoadState reports the current state.
func (h *Handle[T]) LoadState() LoadState {
	return LoadState(h.state.Load())
}

// Get returns the loaded value, or false while loading or after a failure.
func (h *Handle[T]) Get() (T, bool) {
	if h.LoadState() != StateLoaded {
		var zero T
		return zero, false
	}
	return h.value, true
}

// Err returns the failure cause, or nil.
func (h *Handle[T]) Err() error {
	if h.LoadState() != StateFailed {
		return nil
	}
	return h.err
}

// Done is closed once the load finishes.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the load finishes or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		if h.err != nil {
			var zero T
			return zero, h.err
		}
		return h.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

package es

import (
	"context"
	"sync"
)

// Future is the pending result of a submitted work. It completes exactly
// once; later Complete or Fail calls are ignored.
type Future[R any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     R
	err       error
	callbacks []func(R, error)
}

func NewFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

func FailedFuture[R any](err error) *Future[R] {
	f := NewFuture[R]()
	f.Fail(err)
	return f
}

func CompletedFuture[R any](value R) *Future[R] {
	f := NewFuture[R]()
	f.Complete(value)
	return f
}

func (f *Future[R]) Complete(value R) bool {
	return f.finish(value, nil)
}

func (f *Future[R]) Fail(err error) bool {
	var zero R
	return f.finish(zero, err)
}

func (f *Future[R]) finish(value R, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, callback := range callbacks {
		callback(value, err)
	}
	return true
}

// OnComplete runs callback on the completing goroutine, or right away when
// the future is already done. Callbacks must not block.
func (f *Future[R]) OnComplete(callback func(R, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, callback)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	callback(value, err)
}

func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[R]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get waits for the result or for ctx to end. A ctx error does not cancel
// the work itself.
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

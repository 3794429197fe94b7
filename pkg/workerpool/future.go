package workerpool

import (
	"context"
	"fmt"
)

// Future holds the eventual result of a task submitted with SubmitFunc.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// SubmitFunc enqueues fn on the pool and returns a Future for its result.
// A panic inside fn is recovered and reported as the Future's error.
func SubmitFunc[T any](p *Pool, fn func() (T, error)) (*Future[T], error) {
	f := &Future[T]{done: make(chan struct{})}

	err := p.Submit(func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("workerpool: task panicked: %v", r)
			}
		}()
		f.value, f.err = fn()
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Await blocks until the task finishes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

package app

import (
	"context"
	"time"
)

// ProducerSignal lets a consumer sleep until a producer has inserted
// something. Its capacity equals the maximum number of insertions of a load,
// so Notify never blocks.
type ProducerSignal struct {
	ch chan struct{}
}

func NewProducerSignal(capacity int) *ProducerSignal {
	return &ProducerSignal{ch: make(chan struct{}, max(capacity, 0))}
}

// Notify records one insertion.
func (s *ProducerSignal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Await consumes one pending notification, waiting up to timeout for it.
// It returns false on timeout, which is the normal outcome once producers are done.
func (s *ProducerSignal) Await(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	}
}

// AwaitContext is Await bounded by ctx instead of a timeout.
func (s *ProducerSignal) AwaitContext(ctx context.Context) bool {
	select {
	case <-s.ch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *ProducerSignal) Pending() int {
	return len(s.ch)
}

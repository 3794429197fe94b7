package app

import "sync/atomic"

// CompletionTracker counts finished workers of the current load. The worker
// whose Finish brings the count to the expected value marks the load complete.
type CompletionTracker struct {
	expected  atomic.Int64
	finished  atomic.Int64
	completed atomic.Bool
	done      atomic.Pointer[chan struct{}]
}

// NewCompletionTracker returns a tracker in the complete state: no load in flight.
func NewCompletionTracker() *CompletionTracker {
	t := &CompletionTracker{}
	t.Reset(0)
	return t
}

// Reset prepares the tracker for a load of n workers. It must happen before
// any of those workers is started. With n == 0 the tracker is complete at once.
func (t *CompletionTracker) Reset(n int) {
	done := make(chan struct{})

	t.completed.Store(false)
	t.finished.Store(0)
	t.expected.Store(int64(n))
	t.done.Store(&done)

	if n == 0 {
		close(done)
		t.completed.Store(true)
	}
}

// Finish records one finished worker and reports whether it was the last one.
// Exactly one caller per load observes true.
func (t *CompletionTracker) Finish() bool {
	v := t.finished.Add(1)
	if v != t.expected.Load() {
		return false
	}

	t.completed.Store(true)
	close(*t.done.Load())
	return true
}

func (t *CompletionTracker) IsComplete() bool {
	return t.completed.Load()
}

// Done is closed when the current load completes.
func (t *CompletionTracker) Done() <-chan struct{} {
	return *t.done.Load()
}

// Progress returns finished and expected worker counts.
func (t *CompletionTracker) Progress() (finished, expected int) {
	return int(t.finished.Load()), int(t.expected.Load())
}

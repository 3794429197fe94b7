package app

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"jpeg-image-loader/internal/domain"
)

// fileLoader decodes single files into the store. It is shared by the
// sequential path and every loadTask of a parallel load.
type fileLoader struct {
	logger   *zap.Logger
	decoder  domain.ImageDecoder
	store    *ImageStore
	failures *failureLog
	limiter  ratelimit.Limiter
	delay    time.Duration
}

// load decodes path and inserts it. The artificial delay is applied only
// after a successful decode. Decoder panics are turned into a DecodeError.
func (f *fileLoader) load(path string, signal *ProducerSignal) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.fail(&domain.DecodeError{Path: path, Err: fmt.Errorf("decoder panicked: %v", r)})
			ok = false
		}
	}()

	f.limiter.Take()

	record, err := f.decoder.Decode(path)
	if err != nil {
		f.fail(err)
		return false
	}

	f.store.Insert(path, record)
	signal.Notify()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return true
}

func (f *fileLoader) fail(err error) {
	f.failures.add(err)
	f.logger.Warn("Unable to load image", zap.Error(err))
}

// loadTask is one worker's share of a parallel load.
type loadTask struct {
	id      int
	paths   []string
	files   *fileLoader
	tracker *CompletionTracker
	signal  *ProducerSignal
	loaded  *atomic.Int64
	logger  *zap.Logger
}

// run loads every assigned path and then finishes exactly once on the tracker,
// whatever happens to the individual files.
func (t *loadTask) run() int {
	start := time.Now()
	count := 0

	// nothing may touch the loader after Finish: the load is over for observers
	defer func() {
		t.logger.Debug("Worker finished",
			zap.Int("worker", t.id),
			zap.Int("loaded", count),
			zap.Int("assigned", len(t.paths)),
			zap.Duration("elapsed", time.Since(start)))
		t.tracker.Finish()
	}()

	t.logger.Debug("Starting worker", zap.Int("worker", t.id), zap.Int("files", len(t.paths)))
	for _, path := range t.paths {
		if t.files.load(path, t.signal) {
			count++
			t.loaded.Add(1)
		}
	}
	return count
}

// abandon finishes a task that could not be dispatched, so the load still completes.
func (t *loadTask) abandon(err error) {
	t.files.failures.add(fmt.Errorf("worker %d not dispatched (%d files): %w", t.id, len(t.paths), err))
	t.logger.Error("Unable to dispatch worker", zap.Int("worker", t.id), zap.Error(err))
	t.tracker.Finish()
}

// failureLog accumulates per-file errors of the current load
type failureLog struct {
	mu    sync.Mutex
	err   error
	count int
}

func (f *failureLog) add(err error) {
	f.mu.Lock()
	f.err = multierr.Append(f.err, err)
	f.count++
	f.mu.Unlock()
}

func (f *failureLog) errors() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *failureLog) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *failureLog) reset() {
	f.mu.Lock()
	f.err = nil
	f.count = 0
	f.mu.Unlock()
}

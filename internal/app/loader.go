package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jpeg-image-loader/internal/domain"
	"jpeg-image-loader/pkg/workerpool"
)

// ImageLoader loads the images of a directory into a shared store, either
// sequentially or split across workers, and serves them to consumers.
type ImageLoader struct {
	logger  *zap.Logger
	config  *domain.Config
	scanner domain.DirectoryScanner
	pool    *workerpool.Pool

	store    *ImageStore
	tracker  *CompletionTracker
	signal   atomic.Pointer[ProducerSignal]
	failures *failureLog
	files    *fileLoader

	// mu serialises load dispatch, pool resize and the loaded directory marker
	mu        sync.Mutex
	loadedDir string
}

func NewImageLoader(logger *zap.Logger, config *domain.Config, decoder domain.ImageDecoder,
	scanner domain.DirectoryScanner, pool *workerpool.Pool) *ImageLoader {

	limiter := ratelimit.NewUnlimited()
	if config.DecodeRate > 0 {
		limiter = ratelimit.New(config.DecodeRate)
	}

	store := NewImageStore()
	failures := &failureLog{}

	l := &ImageLoader{
		logger:   logger,
		config:   config,
		scanner:  scanner,
		pool:     pool,
		store:    store,
		tracker:  NewCompletionTracker(),
		failures: failures,
		files: &fileLoader{
			logger:   logger,
			decoder:  decoder,
			store:    store,
			failures: failures,
			limiter:  limiter,
			delay:    config.Delay(),
		},
	}
	l.signal.Store(NewProducerSignal(0))
	return l
}

// LoadSequential decodes every image of dir in the calling goroutine and
// returns how many were loaded. Only a missing directory is an error.
// While it runs the load is in flight, as for LoadParallel.
func (l *ImageLoader) LoadSequential(dir string) (int, error) {
	l.mu.Lock()
	if !l.tracker.IsComplete() {
		l.mu.Unlock()
		return 0, errLoadInProgress()
	}

	paths, err := l.scanner.ScanImages(dir)
	if err != nil {
		l.mu.Unlock()
		return 0, err
	}

	signal := NewProducerSignal(len(paths))
	l.signal.Store(signal)
	l.failures.reset()
	l.loadedDir = dir

	// последовательная загрузка считается одним воркером
	l.tracker.Reset(1)
	l.mu.Unlock()
	defer l.tracker.Finish()

	start := time.Now()
	count := 0
	for _, path := range paths {
		if l.files.load(path, signal) {
			count++
		}
	}

	l.logger.Info("Sequential load finished",
		zap.String("dir", dir),
		zap.Int("loaded", count),
		zap.Int("failed", l.failures.len()),
		zap.Duration("elapsed", time.Since(start)))
	return count, nil
}

// LoadParallel splits the images of dir across workers and dispatches them
// with the given strategy. It returns without waiting for the load.
func (l *ImageLoader) LoadParallel(dir string, workers int, strategy domain.Strategy) (*LoadHandle, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", domain.ErrInvalidConfig, workers)
	}

	switch strategy {
	case domain.StrategyPooled, domain.StrategyFuture:
		if l.pool.IsClosed() {
			return nil, domain.ErrPoolClosed
		}
	case domain.StrategyRaw:
	default:
		return nil, fmt.Errorf("%w: %s cannot be dispatched in parallel", domain.ErrUnknownStrategy, strategy)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.tracker.IsComplete() {
		return nil, errLoadInProgress()
	}

	paths, err := l.scanner.ScanImages(dir)
	if err != nil {
		return nil, err
	}

	chunks, err := Partition(paths, workers)
	if err != nil {
		return nil, err
	}

	signal := NewProducerSignal(len(paths))
	l.signal.Store(signal)
	l.failures.reset()
	l.loadedDir = dir

	// Сброс трекера до запуска первого воркера
	l.tracker.Reset(len(chunks))

	h := &LoadHandle{
		ID:       uuid.New(),
		Dir:      dir,
		Strategy: strategy,
		Files:    len(paths),
		done:     l.tracker.Done(),
		started:  time.Now(),
	}
	logger := l.logger.With(zap.String("load_id", h.ID.String()))

	logger.Info("Starting parallel load",
		zap.String("dir", dir),
		zap.String("strategy", strategy.String()),
		zap.Int("files", len(paths)),
		zap.Int("workers", len(chunks)))

	for i, chunk := range chunks {
		h.ChunkSizes = append(h.ChunkSizes, len(chunk))

		task := &loadTask{
			id:      i,
			paths:   chunk,
			files:   l.files,
			tracker: l.tracker,
			signal:  signal,
			loaded:  &h.loaded,
			logger:  logger,
		}

		switch strategy {
		case domain.StrategyPooled:
			if err := l.pool.Submit(func() { task.run() }); err != nil {
				task.abandon(err)
			}
		case domain.StrategyRaw:
			h.group.Go(func() error {
				_, err := runRecovered(task.run)
				return err
			})
		case domain.StrategyFuture:
			f, err := workerpool.SubmitFunc(l.pool, func() (int, error) {
				return task.run(), nil
			})
			if err != nil {
				task.abandon(err)
				continue
			}
			h.futures = append(h.futures, f)
		}
	}

	return h, nil
}

// Load runs a complete load with any strategy and waits for it.
func (l *ImageLoader) Load(ctx context.Context, dir string, workers int, strategy domain.Strategy) (int, error) {
	if strategy == domain.StrategySequential {
		return l.LoadSequential(dir)
	}

	h, err := l.LoadParallel(dir, workers, strategy)
	if err != nil {
		return 0, err
	}
	return h.Wait(ctx)
}

// Consume pops images and hands them to fn until the current load is
// complete and the store is drained. It may start before, during or after a load.
func (l *ImageLoader) Consume(ctx context.Context, fn func(*domain.ImageRecord)) (int, error) {
	count := 0
	for {
		if record, ok := l.Pop(); ok {
			fn(record)
			count++
			continue
		}

		if l.IsLoadComplete() {
			// inserts happen before the last Finish, so one more pop sees them all
			if record, ok := l.Pop(); ok {
				fn(record)
				count++
				continue
			}
			return count, nil
		}

		if err := ctx.Err(); err != nil {
			return count, err
		}
		l.WaitForNextInsertion(l.config.PollTimeout())
	}
}

// Pop removes and returns any resident image.
func (l *ImageLoader) Pop() (*domain.ImageRecord, bool) {
	return l.store.PopAny()
}

// Image returns the image loaded from path without removing it.
func (l *ImageLoader) Image(path string) (*domain.ImageRecord, bool) {
	return l.store.Get(path)
}

func (l *ImageLoader) LoadedPaths() []string {
	return l.store.Paths()
}

func (l *ImageLoader) LoadedDir() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadedDir
}

func (l *ImageLoader) Len() int {
	return l.store.Len()
}

func (l *ImageLoader) IsEmpty() bool {
	return l.store.IsEmpty()
}

func (l *ImageLoader) IsLoadComplete() bool {
	return l.tracker.IsComplete()
}

// WaitForNextInsertion blocks until a producer inserts an image or timeout
// elapses. A timeout after the load completed is the normal way out.
func (l *ImageLoader) WaitForNextInsertion(timeout time.Duration) bool {
	return l.signal.Load().Await(timeout)
}

// Failures returns the per-file errors of the last load, combined.
func (l *ImageLoader) Failures() error {
	return l.failures.errors()
}

func (l *ImageLoader) FailedCount() int {
	return l.failures.len()
}

// ResizePool changes the worker pool size. It is rejected while a load is in flight.
func (l *ImageLoader) ResizePool(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: pool size must be positive, got %d", domain.ErrInvalidConfig, size)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.tracker.IsComplete() {
		l.logger.Warn("A load is ongoing, cannot resize pool", zap.Int("size", size))
		return domain.ErrPoolBusy
	}

	if err := l.pool.Resize(size); err != nil {
		if errors.Is(err, workerpool.ErrClosed) {
			return domain.ErrPoolClosed
		}
		return err
	}
	return nil
}

// Reset clears the store and the loaded directory marker. Call it only
// when IsLoadComplete is true.
func (l *ImageLoader) Reset() {
	if !l.tracker.IsComplete() {
		l.logger.Warn("Resetting images while a load is in flight")
	}

	l.store.Reset()

	l.mu.Lock()
	l.loadedDir = ""
	l.mu.Unlock()
}

// Close shuts down the worker pool, waiting up to timeout for queued work.
func (l *ImageLoader) Close(timeout time.Duration) error {
	return l.pool.Close(timeout)
}

// runRecovered runs a raw worker and turns an escaped panic into an error.
// The task has already finished on the tracker by then.
func runRecovered(run func() int) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("raw worker panicked: %v", r)
		}
	}()
	return run(), nil
}

func errLoadInProgress() error {
	return fmt.Errorf("%w: wait for the current load to complete", domain.ErrLoadInProgress)
}

// LoadHandle tracks one dispatched parallel load.
type LoadHandle struct {
	ID         uuid.UUID
	Dir        string
	Strategy   domain.Strategy
	Files      int
	ChunkSizes []int

	done    <-chan struct{}
	started time.Time
	loaded  atomic.Int64
	group   errgroup.Group
	futures []*workerpool.Future[int]
}

// Workers is the number of workers the load was split into.
func (h *LoadHandle) Workers() int {
	return len(h.ChunkSizes)
}

// Loaded is the number of images inserted so far.
func (h *LoadHandle) Loaded() int {
	return int(h.loaded.Load())
}

// Done is closed once every worker has finished.
func (h *LoadHandle) Done() <-chan struct{} {
	return h.done
}

func (h *LoadHandle) Elapsed() time.Duration {
	return time.Since(h.started)
}

// Wait blocks until the load completes and returns the number of images
// loaded. Future results are summed and their errors joined; a raw worker
// that panicked outside a file decode is reported through the errgroup.
func (h *LoadHandle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return h.Loaded(), ctx.Err()
	}

	switch h.Strategy {
	case domain.StrategyRaw:
		return h.Loaded(), h.group.Wait()
	case domain.StrategyPooled:
		return h.Loaded(), nil
	}

	total := 0
	var errs error
	for _, f := range h.futures {
		n, err := f.Await(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		total += n
	}
	return total, errs
}

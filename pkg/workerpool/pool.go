// Package workerpool provides a resizable pool of goroutines with an
// unbounded FIFO queue. Tasks are either fire-and-forget (Submit) or
// return a Future (SubmitFunc).
package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidSize     = errors.New("workerpool: size must be positive")
	ErrClosed          = errors.New("workerpool: pool is shut down")
	ErrShutdownTimeout = errors.New("workerpool: timed out waiting for tasks to drain")
	ErrNotShutdown     = errors.New("workerpool: AwaitTermination called before Shutdown")
)

// Pool runs submitted tasks on at most Size() goroutines.
// Submissions beyond that are queued, never rejected for capacity.
type Pool struct {
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	size    int
	running int
	active  int
	closed  bool
	nextID  int
	wg      sync.WaitGroup

	// terminated is closed once every worker has exited after Shutdown
	terminated chan struct{}

	completed atomic.Int64
	panicked  atomic.Int64
}

// Stats is a snapshot of pool occupancy
type Stats struct {
	Size      int
	Running   int
	Active    int
	Pending   int
	Completed int64
	Panicked  int64
}

func New(size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		logger:     logger,
		size:       size,
		terminated: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	p.spawnLocked()
	p.mu.Unlock()

	logger.Debug("Worker pool started", zap.Int("size", size))
	return p, nil
}

// Submit enqueues a task and returns immediately. Panics inside the task
// are recovered and logged; the caller never observes them.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return errors.New("workerpool: nil task")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// Resize changes the number of goroutines. Growing starts new workers
// immediately; shrinking lets surplus workers exit after their current task.
func (p *Pool) Resize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	old := p.size
	p.size = size
	p.spawnLocked()
	p.cond.Broadcast()

	p.logger.Debug("Worker pool resized", zap.Int("from", old), zap.Int("to", size))
	return nil
}

// Shutdown stops accepting tasks. Queued and running tasks still complete.
// Calling it more than once is a no-op.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.cond.Broadcast()

	// после закрытия новых воркеров не будет, wg больше не растёт
	go func() {
		p.wg.Wait()
		close(p.terminated)
	}()
	p.logger.Debug("Worker pool shutting down", zap.Int("pending", len(p.queue)))
}

// AwaitTermination waits until every worker has exited. Shutdown must be
// called first, otherwise ErrNotShutdown is returned at once.
func (p *Pool) AwaitTermination(timeout time.Duration) error {
	if !p.IsClosed() {
		return ErrNotShutdown
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.terminated:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

// Close is Shutdown followed by AwaitTermination.
func (p *Pool) Close(timeout time.Duration) error {
	p.Shutdown()
	return p.AwaitTermination(timeout)
}

func (p *Pool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Size:      p.size,
		Running:   p.running,
		Active:    p.active,
		Pending:   len(p.queue),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// spawnLocked starts workers until running matches size. p.mu must be held.
func (p *Pool) spawnLocked() {
	for p.running < p.size {
		p.running++
		p.nextID++
		p.wg.Add(1)
		go p.worker(p.nextID)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		for len(p.queue) == 0 && !p.closed && p.running <= p.size {
			p.cond.Wait()
		}

		if p.running > p.size || len(p.queue) == 0 {
			// shrunk, or shut down with an empty queue
			p.running--
			p.mu.Unlock()
			return
		}

		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		p.run(id, task)

		p.mu.Lock()
		p.active--
	}
}

func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error("Task panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
		p.completed.Add(1)
	}()

	task()
}

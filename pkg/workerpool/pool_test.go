package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := New(size, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(5 * time.Second) })
	return p
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		p, err := New(size, nil)
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrInvalidSize)
	}
}

func TestSubmitRunsEveryTask(t *testing.T) {
	p := newTestPool(t, 4)

	const n = 200
	var wg sync.WaitGroup
	var count atomic.Int64
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()

	assert.EqualValues(t, n, count.Load())
}

func TestConcurrencyIsBoundedBySize(t *testing.T) {
	const size = 3
	p := newTestPool(t, size)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			c := current.Add(1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.Positive(t, peak.Load())
}

func TestSubmitFuncReturnsValue(t *testing.T) {
	p := newTestPool(t, 2)

	f, err := SubmitFunc(p, func() (int, error) { return 42, nil })
	require.NoError(t, err)

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, f.IsDone())
}

func TestSubmitFuncPropagatesError(t *testing.T) {
	p := newTestPool(t, 2)
	boom := errors.New("boom")

	f, err := SubmitFunc(p, func() (string, error) { return "", boom })
	require.NoError(t, err)

	_, err = f.Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSubmitFuncRecoversPanic(t *testing.T) {
	p := newTestPool(t, 1)

	f, err := SubmitFunc(p, func() (int, error) { panic("kaboom") })
	require.NoError(t, err)

	_, err = f.Await(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// the worker survives the panic
	f2, err := SubmitFunc(p, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	v, err := f2.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFireAndForgetPanicIsContained(t *testing.T) {
	p := newTestPool(t, 1)

	require.NoError(t, p.Submit(func() { panic("ignored") }))
	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped processing after a panic")
	}
	assert.EqualValues(t, 1, p.Stats().Panicked)
}

func TestAwaitRespectsContext(t *testing.T) {
	p := newTestPool(t, 1)
	release := make(chan struct{})
	defer close(release)

	f, err := SubmitFunc(p, func() (int, error) {
		<-release
		return 0, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResize(t *testing.T) {
	p := newTestPool(t, 2)

	assert.ErrorIs(t, p.Resize(0), ErrInvalidSize)
	assert.Equal(t, 2, p.Size())

	require.NoError(t, p.Resize(6))
	assert.Equal(t, 6, p.Size())
	assert.Equal(t, 6, p.Stats().Running)

	require.NoError(t, p.Resize(1))
	assert.Equal(t, 1, p.Size())
	assert.Eventually(t, func() bool { return p.Stats().Running == 1 }, 2*time.Second, 5*time.Millisecond)

	// still functional after shrinking
	f, err := SubmitFunc(p, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestShutdownDrainsQueueAndRejectsNewWork(t *testing.T) {
	p, err := New(1, zaptest.NewLogger(t))
	require.NoError(t, err)

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		}))
	}

	p.Shutdown()
	p.Shutdown()
	assert.True(t, p.IsClosed())
	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
	assert.ErrorIs(t, p.Resize(3), ErrClosed)

	_, err = SubmitFunc(p, func() (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, p.AwaitTermination(5*time.Second))
	assert.EqualValues(t, 10, count.Load())
	assert.Zero(t, p.Stats().Running)
}

func TestAwaitTerminationTimesOut(t *testing.T) {
	p, err := New(1, zaptest.NewLogger(t))
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-release }))

	assert.ErrorIs(t, p.Close(20*time.Millisecond), ErrShutdownTimeout)

	close(release)
	require.NoError(t, p.AwaitTermination(5*time.Second))
}

func TestAwaitTerminationRequiresShutdown(t *testing.T) {
	p := newTestPool(t, 2)

	start := time.Now()
	assert.ErrorIs(t, p.AwaitTermination(time.Second), ErrNotShutdown)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	p.Shutdown()
	require.NoError(t, p.AwaitTermination(time.Second))
	// repeated waits see the same terminated state
	require.NoError(t, p.AwaitTermination(time.Millisecond))
}

func TestWorkerIDsAreNotReusedAfterResize(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p, err := New(2, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(5 * time.Second) })

	// both workers must hold one task each before either panics
	panicOnBoth := func() {
		var started sync.WaitGroup
		started.Add(2)
		for i := 0; i < 2; i++ {
			require.NoError(t, p.Submit(func() {
				started.Done()
				started.Wait()
				panic("boom")
			}))
		}
	}
	workerIDs := func(from int) []int64 {
		var ids []int64
		for _, e := range logs.FilterMessage("Task panicked").All()[from:] {
			ids = append(ids, e.ContextMap()["worker"].(int64))
		}
		return ids
	}

	panicOnBoth()
	require.Eventually(t, func() bool { return logs.FilterMessage("Task panicked").Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []int64{1, 2}, workerIDs(0))

	require.NoError(t, p.Resize(1))
	require.Eventually(t, func() bool { return p.Stats().Running == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Resize(2))

	panicOnBoth()
	require.Eventually(t, func() bool { return logs.FilterMessage("Task panicked").Len() == 4 }, 2*time.Second, 5*time.Millisecond)
	ids := workerIDs(2)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Contains(t, ids, int64(3))
}

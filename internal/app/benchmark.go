package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"jpeg-image-loader/internal/domain"
	"jpeg-image-loader/pkg/imageops"
)

// Benchmark scenarios
const (
	BenchSequential   = "sequential"
	BenchParallel     = "parallel"
	BenchRaw          = "raw"
	BenchFuture       = "future"
	BenchSequentialOp = "sequential-op"
	BenchParallelOp   = "parallel-op"
)

var BenchScenarios = []string{
	BenchSequential, BenchParallel, BenchRaw, BenchFuture, BenchSequentialOp, BenchParallelOp,
}

// BenchmarkSuite times the loading strategies of an ImageLoader.
type BenchmarkSuite struct {
	logger   *zap.Logger
	loader   *ImageLoader
	progress io.Writer
}

// NewBenchmarkSuite creates a suite. If progress is not nil, consumer drains
// render a progress bar on it.
func NewBenchmarkSuite(logger *zap.Logger, loader *ImageLoader, progress io.Writer) *BenchmarkSuite {
	return &BenchmarkSuite{
		logger:   logger,
		loader:   loader,
		progress: progress,
	}
}

// Run executes scenario runs times on dir and reports mean and deviation.
func (b *BenchmarkSuite) Run(ctx context.Context, scenario, dir string, workers, runs int) (*domain.BenchResult, error) {
	if runs <= 0 {
		runs = 1
	}

	result := &domain.BenchResult{Name: scenario, Workers: workers, Runs: runs}
	durations := make([]float64, 0, runs)

	for i := 0; i < runs; i++ {
		b.loader.Reset()

		start := time.Now()
		images, strategy, err := b.runOnce(ctx, scenario, dir, workers)
		elapsed := time.Since(start)
		if err != nil {
			return nil, err
		}

		b.logger.Info("Benchmark run finished",
			zap.String("scenario", scenario),
			zap.Int("run", i+1),
			zap.Int("images", images),
			zap.Duration("elapsed", elapsed))

		result.Images = images
		result.Strategy = strategy
		durations = append(durations, float64(elapsed))
	}
	b.loader.Reset()

	mean, std := imageops.MeanStdDev(durations)
	result.Mean = time.Duration(mean)
	result.StdDev = time.Duration(std)
	return result, nil
}

// RunAll executes every scenario once per run and stops at the first failure.
func (b *BenchmarkSuite) RunAll(ctx context.Context, dir string, workers, runs int) ([]*domain.BenchResult, error) {
	results := make([]*domain.BenchResult, 0, len(BenchScenarios))
	for _, scenario := range BenchScenarios {
		r, err := b.Run(ctx, scenario, dir, workers, runs)
		if err != nil {
			return results, fmt.Errorf("scenario %s: %w", scenario, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (b *BenchmarkSuite) runOnce(ctx context.Context, scenario, dir string, workers int) (int, domain.Strategy, error) {
	switch scenario {
	case BenchSequential:
		n, err := b.loader.LoadSequential(dir)
		return n, domain.StrategySequential, err

	case BenchParallel:
		n, err := b.loader.Load(ctx, dir, workers, domain.StrategyPooled)
		return n, domain.StrategyPooled, err

	case BenchRaw:
		n, err := b.loader.Load(ctx, dir, workers, domain.StrategyRaw)
		return n, domain.StrategyRaw, err

	case BenchFuture:
		n, err := b.loader.Load(ctx, dir, workers, domain.StrategyFuture)
		return n, domain.StrategyFuture, err

	case BenchSequentialOp:
		total, err := b.loader.LoadSequential(dir)
		if err != nil {
			return 0, domain.StrategySequential, err
		}
		n, err := b.drain(ctx, int64(total))
		return n, domain.StrategySequential, err

	case BenchParallelOp:
		// консьюмер забирает изображения, пока воркеры ещё работают
		h, err := b.loader.LoadParallel(dir, workers, domain.StrategyPooled)
		if err != nil {
			return 0, domain.StrategyPooled, err
		}
		n, err := b.drain(ctx, int64(h.Files))
		return n, domain.StrategyPooled, err

	default:
		return 0, 0, fmt.Errorf("%w: unknown benchmark scenario %q", domain.ErrInvalidConfig, scenario)
	}
}

// drain pops every image of the current load and computes its mean luminance.
func (b *BenchmarkSuite) drain(ctx context.Context, expected int64) (int, error) {
	var bar *progressbar.ProgressBar
	if b.progress != nil {
		bar = progressbar.NewOptions64(expected,
			progressbar.OptionSetWriter(b.progress),
			progressbar.OptionSetDescription("draining"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
		defer bar.Finish()
	}

	return b.loader.Consume(ctx, func(record *domain.ImageRecord) {
		if _, err := imageops.Mean(record.Image); err != nil {
			b.logger.Warn("Unable to compute mean", zap.String("path", record.Path), zap.Error(err))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	})
}

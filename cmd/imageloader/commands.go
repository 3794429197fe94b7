package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jpeg-image-loader/internal/app"
	"jpeg-image-loader/internal/domain"
	"jpeg-image-loader/internal/infrastructure"
	"jpeg-image-loader/pkg/imageops"
	"jpeg-image-loader/pkg/workerpool"
)

// environment is what every subcommand needs once the config is read
type environment struct {
	logger *zap.Logger
	config *domain.Config
	loader *app.ImageLoader
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "imageloader",
		Short:         "Load a directory of JPEG images concurrently",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "Path to config file")
	infrastructure.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newLoadCommand(), newBenchCommand(), newVersionCommand())
	return root
}

// setup reads the config and builds the loader with its worker pool.
func setup(cmd *cobra.Command) (*environment, error) {
	// Инициализация логгера
	logger := initLogger("info")

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Чтение конфигурации
	configReader := infrastructure.NewYAMLConfigReader(logger, cmd.Flags())
	config, err := configReader.ReadConfig(configPath)
	if err != nil {
		logger.Error("Failed to read config", zap.Error(err))
		return nil, err
	}

	// Обновляем уровень логирования
	_ = logger.Sync()
	logger = initLogger(config.LogLevel, config.LogFile)

	pool, err := workerpool.New(config.PoolSize, logger)
	if err != nil {
		return nil, err
	}

	loader := app.NewImageLoader(logger, config,
		infrastructure.NewJPEGDecoder(logger, config.MaxPixels),
		infrastructure.NewDirScanner(logger),
		pool)

	return &environment{logger: logger, config: config, loader: loader}, nil
}

func (e *environment) close() {
	if err := e.loader.Close(e.config.ShutdownTimeout()); err != nil {
		e.logger.Warn("Worker pool did not drain in time", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the configured directory, drain it and save a grayscale sample",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := signalContext()
			defer cancel()
			return runLoad(ctx, env)
		},
	}
}

func runLoad(ctx context.Context, env *environment) error {
	logger, config := env.logger, env.config
	if config.Directory == "" {
		return fmt.Errorf("%w: no directory given", domain.ErrInvalidConfig)
	}

	strategy, err := domain.ParseStrategy(config.Strategy)
	if err != nil {
		return err
	}

	logger.Info("Starting image load",
		zap.String("dir", config.Directory),
		zap.String("strategy", strategy.String()),
		zap.Int("workers", config.Workers))

	// Загрузка и потребление идут одновременно для параллельных стратегий
	var expected int64
	if strategy == domain.StrategySequential {
		n, err := env.loader.LoadSequential(config.Directory)
		if err != nil {
			return err
		}
		expected = int64(n)
	} else {
		h, err := env.loader.LoadParallel(config.Directory, config.Workers, strategy)
		if err != nil {
			return err
		}
		expected = int64(h.Files)
		defer func() {
			logger.Info("Parallel load finished",
				zap.String("load_id", h.ID.String()),
				zap.Int("loaded", h.Loaded()),
				zap.Duration("elapsed", h.Elapsed()))
		}()
	}

	bar := progressbar.NewOptions64(expected,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("loading"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())

	var sample *domain.ImageRecord
	var luminance []float64
	consumed, err := env.loader.Consume(ctx, func(record *domain.ImageRecord) {
		if sample == nil {
			sample = record
		}
		if m, err := imageops.Mean(record.Image); err == nil {
			luminance = append(luminance, m)
		}
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	mean, std := imageops.MeanStdDev(luminance)
	logger.Info("Images consumed",
		zap.Int("count", consumed),
		zap.Int("failed", env.loader.FailedCount()),
		zap.Float64("mean_luminance", mean),
		zap.Float64("stddev_luminance", std))
	if failures := env.loader.Failures(); failures != nil {
		logger.Debug("Load failures", zap.Error(failures))
	}

	if sample == nil {
		logger.Warn("No images loaded, nothing to save", zap.String("dir", config.Directory))
		return nil
	}

	gray, err := imageops.Grayscale(sample.Image)
	if err != nil {
		return err
	}
	writer := infrastructure.NewJPEGWriter(logger, infrastructure.DefaultJPEGQuality)
	if err := writer.Save(config.Output, domain.NewImageRecord(sample.Path, gray)); err != nil {
		return err
	}

	logger.Info("Saved grayscale sample", zap.String("source", sample.Path), zap.String("output", config.Output))
	return nil
}

func newBenchCommand() *cobra.Command {
	var scenario string
	var repeat int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time the load strategies on the configured directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if env.config.Directory == "" {
				return fmt.Errorf("%w: no directory given", domain.ErrInvalidConfig)
			}

			ctx, cancel := signalContext()
			defer cancel()

			var progress io.Writer = os.Stderr
			if quiet {
				progress = nil
			}
			suite := app.NewBenchmarkSuite(env.logger, env.loader, progress)

			var results []*domain.BenchResult
			if scenario == "all" {
				results, err = suite.RunAll(ctx, env.config.Directory, env.config.Workers, repeat)
			} else {
				var r *domain.BenchResult
				r, err = suite.Run(ctx, scenario, env.config.Directory, env.config.Workers, repeat)
				if r != nil {
					results = append(results, r)
				}
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%-14s %-10s workers=%-3d images=%-5d runs=%-3d mean=%-12s stddev=%s\n",
					r.Name, r.Strategy, r.Workers, r.Images, r.Runs, r.Mean, r.StdDev)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "all", "Scenario to run, or all")
	cmd.Flags().IntVar(&repeat, "repeat", 3, "Runs per scenario")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not render progress bars")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

package infrastructure

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"jpeg-image-loader/internal/domain"
)

type YAMLConfigReader struct {
	logger *zap.Logger
	flags  *pflag.FlagSet
}

// NewYAMLConfigReader creates a reader. Flags explicitly set on the given
// flag set override values from the file; flags may be nil.
func NewYAMLConfigReader(logger *zap.Logger, flags *pflag.FlagSet) *YAMLConfigReader {
	return &YAMLConfigReader{logger: logger, flags: flags}
}

func (r *YAMLConfigReader) ReadConfig(path string) (*domain.Config, error) {
	var config domain.Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Info("Config file not found, using defaults", zap.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Применяем аргументы командной строки
	if err := r.applyCommandLineFlags(&config); err != nil {
		return nil, err
	}

	// Устанавливаем значения по умолчанию
	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// RegisterFlags declares the flags understood by applyCommandLineFlags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("dir", "d", "", "Directory to load images from")
	flags.StringP("strategy", "s", "", "Load strategy: sequential, pooled, raw, future")
	flags.IntP("workers", "w", 0, "Number of loader workers")
	flags.Int("pool-size", 0, "Worker pool size (default: number of CPUs)")
	flags.Int("delay", 0, "Artificial delay in ms after each decoded image")
	flags.Int("decode-rate", 0, "Maximum decodes per second across workers (0 = unlimited)")
	flags.Int("max-pixels", 0, "Largest image, in pixels, that may be decoded")
	flags.Int("poll-timeout", 0, "Consumer wait timeout in ms")
	flags.String("log-level", "", "Log level")
	flags.String("output", "", "Where to save the grayscale sample image")
}

func (r *YAMLConfigReader) applyCommandLineFlags(config *domain.Config) error {
	if r.flags == nil {
		return nil
	}

	var errs []error
	str := func(name string, dst *string) {
		if r.flags.Lookup(name) == nil || !r.flags.Changed(name) {
			return
		}
		v, err := r.flags.GetString(name)
		errs = append(errs, err)
		*dst = v
	}
	num := func(name string, dst *int) {
		if r.flags.Lookup(name) == nil || !r.flags.Changed(name) {
			return
		}
		v, err := r.flags.GetInt(name)
		errs = append(errs, err)
		*dst = v
	}

	// явно заданный ноль не должен превращаться в значение по умолчанию
	count := func(name string, dst *int) {
		num(name, dst)
		if r.flags.Lookup(name) != nil && r.flags.Changed(name) && *dst <= 0 {
			errs = append(errs, fmt.Errorf("%w: --%s must be positive, got %d", domain.ErrInvalidConfig, name, *dst))
		}
	}

	str("dir", &config.Directory)
	str("strategy", &config.Strategy)
	count("workers", &config.Workers)
	count("pool-size", &config.PoolSize)
	num("delay", &config.DelayMs)
	num("decode-rate", &config.DecodeRate)
	num("max-pixels", &config.MaxPixels)
	num("poll-timeout", &config.PollTimeoutMs)
	str("log-level", &config.LogLevel)
	str("output", &config.Output)

	return errors.Join(errs...)
}

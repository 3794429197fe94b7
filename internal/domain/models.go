package domain

import (
	"fmt"
	"image"
	"runtime"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Directory         string `yaml:"directory"`
	Strategy          string `yaml:"strategy"`
	Workers           int    `yaml:"workers"`
	PoolSize          int    `yaml:"pool_size"`
	DelayMs           int    `yaml:"delay_ms"`
	DecodeRate        int    `yaml:"decode_rate"`
	MaxPixels         int    `yaml:"max_pixels"`
	PollTimeoutMs     int    `yaml:"poll_timeout_ms"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
	LogLevel          string `yaml:"log_level"`
	LogFile           string `yaml:"log_file"`
	Output            string `yaml:"output"`
}

const (
	DefaultWorkers           = 4
	DefaultMaxPixels         = 100_000_000
	DefaultPollTimeoutMs     = 500
	DefaultShutdownTimeoutMs = 5000
	DefaultOutput            = "result.jpg"
)

// SetDefaults fills every zero value with its default.
func (c *Config) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyPooled.String()
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.PoolSize == 0 {
		c.PoolSize = runtime.NumCPU()
	}
	if c.MaxPixels == 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if c.PollTimeoutMs == 0 {
		c.PollTimeoutMs = DefaultPollTimeoutMs
	}
	if c.ShutdownTimeoutMs == 0 {
		c.ShutdownTimeoutMs = DefaultShutdownTimeoutMs
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
}

// Validate rejects configurations that cannot drive a load.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("%w: pool_size must be positive, got %d", ErrInvalidConfig, c.PoolSize)
	}
	if c.DelayMs < 0 || c.DecodeRate < 0 {
		return fmt.Errorf("%w: delay_ms and decode_rate cannot be negative", ErrInvalidConfig)
	}
	if _, err := ParseStrategy(c.Strategy); err != nil {
		return err
	}
	return nil
}

func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// ImageRecord is one decoded image. It has exactly one owner at a time:
// the decoding worker, the store, or the consumer that popped it.
type ImageRecord struct {
	Path   string
	Image  image.Image
	Width  int
	Height int
}

func NewImageRecord(path string, img image.Image) *ImageRecord {
	b := img.Bounds()
	return &ImageRecord{
		Path:   path,
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}

// Strategy selects how a load is executed
type Strategy int

const (
	StrategySequential Strategy = iota
	StrategyPooled
	StrategyRaw
	StrategyFuture
)

var strategyNames = map[Strategy]string{
	StrategySequential: "sequential",
	StrategyPooled:     "pooled",
	StrategyRaw:        "raw",
	StrategyFuture:     "future",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sequential", "seq":
		return StrategySequential, nil
	case "pooled", "pool":
		return StrategyPooled, nil
	case "raw", "thread":
		return StrategyRaw, nil
	case "future", "callable":
		return StrategyFuture, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// BenchResult is the outcome of one benchmark scenario
type BenchResult struct {
	Name     string
	Strategy Strategy
	Workers  int
	Images   int
	Runs     int
	Mean     time.Duration
	StdDev   time.Duration
}

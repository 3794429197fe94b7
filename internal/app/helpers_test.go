package app

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jpeg-image-loader/internal/domain"
	"jpeg-image-loader/internal/infrastructure"
	"jpeg-image-loader/pkg/workerpool"
)

var errBadImage = errors.New("bad image")

// fakeDecoder returns a tiny image for every path. Paths containing "bad"
// fail, paths containing "huge" fail with ErrOutOfMemory, paths containing
// "panic" panic. When gate is set every decode waits for it.
type fakeDecoder struct {
	gate  chan struct{}
	calls atomic.Int64
}

func (d *fakeDecoder) Decode(path string) (*domain.ImageRecord, error) {
	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}

	name := filepath.Base(path)
	switch {
	case strings.Contains(name, "bad"):
		return nil, &domain.DecodeError{Path: path, Err: errBadImage}
	case strings.Contains(name, "huge"):
		return nil, &domain.DecodeError{Path: path, Err: domain.ErrOutOfMemory}
	case strings.Contains(name, "panic"):
		panic("decoder exploded")
	}
	return domain.NewImageRecord(path, image.NewRGBA(image.Rect(0, 0, 4, 4))), nil
}

// makeImageDir creates jpg files image-00.jpg.. plus the extra names.
func makeImageDir(t *testing.T, jpgs int, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < jpgs; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("image-%02d.jpg", i)), nil, 0o644))
	}
	for _, name := range extra {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	return dir
}

func testConfig() *domain.Config {
	cfg := &domain.Config{PollTimeoutMs: 20}
	cfg.SetDefaults()
	return cfg
}

func newTestLoader(t *testing.T, cfg *domain.Config, decoder domain.ImageDecoder) *ImageLoader {
	t.Helper()
	logger := zaptest.NewLogger(t)

	pool, err := workerpool.New(cfg.PoolSize, logger)
	require.NoError(t, err)

	loader := NewImageLoader(logger, cfg, decoder, infrastructure.NewDirScanner(logger), pool)
	t.Cleanup(func() { _ = loader.Close(5 * time.Second) })
	return loader
}

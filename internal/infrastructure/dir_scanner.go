package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"jpeg-image-loader/internal/domain"
)

// ImageExtensions are matched case-sensitively against file names.
var ImageExtensions = []string{".jpg", ".jpeg"}

type DirScanner struct {
	logger *zap.Logger
}

func NewDirScanner(logger *zap.Logger) *DirScanner {
	return &DirScanner{logger: logger}
}

// ScanImages returns the absolute paths of the JPEG files directly inside
// dir, sorted by name. Subdirectories are skipped, not walked.
func (s *DirScanner) ScanImages(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		s.logger.Error("Requested path is not a directory", zap.String("dir", dir))
		return nil, fmt.Errorf("%w: %s", domain.ErrDirectoryNotFound, dir)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDirectoryNotFound, dir, err)
	}

	var paths []string
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !HasImageExtension(entry.Name()) {
			skipped++
			continue
		}
		paths = append(paths, filepath.Join(abs, entry.Name()))
	}

	s.logger.Debug("Directory scanned",
		zap.String("dir", abs),
		zap.Int("images", len(paths)),
		zap.Int("skipped", skipped))
	return paths, nil
}

func HasImageExtension(name string) bool {
	for _, ext := range ImageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

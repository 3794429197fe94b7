package app

import (
	"fmt"
	"slices"

	"jpeg-image-loader/internal/domain"
)

// Partition splits paths into at most workers contiguous, disjoint chunks.
// Chunk size is ceil(len/workers), the last chunk takes what is left, and
// no chunk is ever empty. Concatenating the chunks yields paths again.
func Partition(paths []string, workers int) ([][]string, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", domain.ErrInvalidConfig, workers)
	}

	n := len(paths)
	if n == 0 {
		return nil, nil
	}

	// Если воркеров больше, чем файлов, по одному файлу на воркер
	workers = min(workers, n)
	size := (n + workers - 1) / workers

	chunks := make([][]string, 0, workers)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		chunks = append(chunks, slices.Clone(paths[start:end]))
	}
	return chunks, nil
}

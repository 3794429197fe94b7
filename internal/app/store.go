package app

import (
	"sync"

	"jpeg-image-loader/internal/domain"
)

// ImageStore maps image paths to decoded records. All methods are safe for
// concurrent use by any number of producers and consumers.
type ImageStore struct {
	mu     sync.RWMutex
	images map[string]*domain.ImageRecord
}

func NewImageStore() *ImageStore {
	return &ImageStore{images: make(map[string]*domain.ImageRecord)}
}

// Insert stores record under path. A second insert for the same path replaces the first.
func (s *ImageStore) Insert(path string, record *domain.ImageRecord) {
	s.mu.Lock()
	s.images[path] = record
	s.mu.Unlock()
}

// PopAny removes and returns an arbitrary resident record.
// ok is false only when the store is empty.
func (s *ImageStore) PopAny() (record *domain.ImageRecord, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, rec := range s.images {
		delete(s.images, path)
		return rec, true
	}
	return nil, false
}

// Get returns the record for path without removing it.
func (s *ImageStore) Get(path string) (*domain.ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.images[path]
	return rec, ok
}

// Paths returns a snapshot of the resident keys in no particular order.
func (s *ImageStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.images))
	for path := range s.images {
		paths = append(paths, path)
	}
	return paths
}

func (s *ImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

func (s *ImageStore) IsEmpty() bool {
	return s.Len() == 0
}

// Reset drops every resident record. Callers must not reset while producers are inserting.
func (s *ImageStore) Reset() {
	s.mu.Lock()
	clear(s.images)
	s.mu.Unlock()
}

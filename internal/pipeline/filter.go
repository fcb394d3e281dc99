package pipeline

import (
	"image"
	"sync"
)

// Filter is one step of the solving chain. A filter reads the image produced
// by the previous step and returns the image for the next one; results other
// than the image go to storage under the filter's name.
type Filter interface {
	Name() string
	Process(img image.Image, storage *Storage) (image.Image, error)
}

// Dumper is implemented by filters that write extra debug files next to the
// image the chain dumps after them.
type Dumper interface {
	Dump(dir string, img image.Image, storage *Storage) error
}

// Storage carries filter results through one chain run.
type Storage struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStorage returns an empty Storage.
func NewStorage() *Storage {
	return &Storage{values: make(map[string]any)}
}

// Put stores the result of the named filter, replacing any previous value.
func (s *Storage) Put(filter string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[filter] = value
}

// Get returns the result stored by the named filter.
func (s *Storage) Get(filter string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[filter]
	return v, ok
}

// Lookup returns the result stored by the named filter if it has type T.
func Lookup[T any](s *Storage, filter string) (T, bool) {
	var zero T
	v, ok := s.Get(filter)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

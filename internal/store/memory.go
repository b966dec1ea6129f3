package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/i474232898/weight-tracker/internal/weight"
)

var (
	// ErrQuotaExceeded is returned when a save does not fit the configured quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// MemoryStore is a concurrency-safe in-memory override store. Samples are
// kept serialized under their key, like a browser key-value store, so an
// optional byte quota can be enforced.
type MemoryStore struct {
	mu sync.RWMutex

	// key: override key, value: serialized samples
	data map[string][]byte
	key  string

	quota int // max serialized bytes (0 = unlimited)
}

// NewMemoryStore creates a new MemoryStore under the fixed override key.
// If quota is <= 0, it is treated as unlimited.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		key:   weight.OverrideKey,
		quota: quota,
	}
}

// Load returns the stored samples, or none when nothing was saved yet.
func (s *MemoryStore) Load() ([]weight.Sample, error) {
	s.mu.RLock()
	raw, ok := s.data[s.key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	var samples []weight.Sample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, &weight.PersistenceError{Op: "load", Err: fmt.Errorf("corrupt data under %q: %w", s.key, err)}
	}
	return samples, nil
}

// Save replaces the stored samples.
func (s *MemoryStore) Save(samples []weight.Sample) error {
	if samples == nil {
		samples = []weight.Sample{}
	}
	raw, err := json.Marshal(samples)
	if err != nil {
		return &weight.PersistenceError{Op: "save", Err: err}
	}
	if s.quota > 0 && len(raw) > s.quota {
		return &weight.PersistenceError{Op: "save", Err: fmt.Errorf("%w: %d > %d bytes", ErrQuotaExceeded, len(raw), s.quota)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.key] = raw
	return nil
}

// SetRaw stores raw bytes under the override key without validation.
func (s *MemoryStore) SetRaw(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.key] = append([]byte(nil), raw...)
}

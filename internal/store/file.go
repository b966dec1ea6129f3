package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/i474232898/weight-tracker/internal/weight"
)

// FileStore persists overrides as a JSON file named after the override key.
type FileStore struct {
	root string
	key  string
	mu   sync.RWMutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root, key: weight.OverrideKey}
}

// Path returns the file the overrides are written to.
func (s *FileStore) Path() string {
	return filepath.Join(s.root, s.key+".json")
}

// Load returns the stored samples. A missing file means no overrides.
func (s *FileStore) Load() ([]weight.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &weight.PersistenceError{Op: "load", Err: err}
	}

	var samples []weight.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, &weight.PersistenceError{Op: "load", Err: fmt.Errorf("corrupt %s: %w", s.Path(), err)}
	}
	return samples, nil
}

// Save writes samples through a temporary file so a crash never leaves a
// truncated store behind.
func (s *FileStore) Save(samples []weight.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if samples == nil {
		samples = []weight.Sample{}
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return &weight.PersistenceError{Op: "save", Err: err}
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &weight.PersistenceError{Op: "save", Err: err}
	}
	tmp, err := os.CreateTemp(s.root, s.key+"-*.tmp")
	if err != nil {
		return &weight.PersistenceError{Op: "save", Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &weight.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &weight.PersistenceError{Op: "save", Err: err}
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return &weight.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

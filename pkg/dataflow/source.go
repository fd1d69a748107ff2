package dataflow

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Source reads and writes one document. Read returns an error matching
// fs.ErrNotExist when the document does not exist.
type Source interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// FileSource is a [Source] backed by a file.
type FileSource struct {
	Path string
}

// Read returns the file contents.
func (s FileSource) Read() ([]byte, error) {
	return os.ReadFile(s.Path)
}

// Write replaces the file atomically: data goes to a temp file in the same
// directory, which is then renamed over the target.
func (s FileSource) Write(data []byte) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", s.Path, err)
	}
	return nil
}

// MemorySource is an in-memory [Source] for tests.
type MemorySource struct {
	mu      sync.Mutex
	data    []byte
	present bool
	writes  int
}

// NewMemorySource returns a source holding data. A nil data slice means the
// document does not exist.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data, present: data != nil}
}

func (m *MemorySource) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemorySource) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.present = true
	m.writes++
	return nil
}

// Bytes returns the current contents, or nil if the document does not exist.
func (m *MemorySource) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil
	}
	return append([]byte(nil), m.data...)
}

// Writes returns how many times Write was called.
func (m *MemorySource) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

package backup

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
)

// MemoryTarget keeps backup objects in memory. Safe for concurrent use.
type MemoryTarget struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
}

// NewMemoryTarget creates an empty MemoryTarget.
func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{objects: make(map[string][]byte)}
}

func (m *MemoryTarget) Put(key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", key, size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.puts++
	return nil
}

func (m *MemoryTarget) Get(key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return errors.NewNotFound(key)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (m *MemoryTarget) Exists(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryTarget) ValidateSetup() error {
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryTarget) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns how many objects have been written.
func (m *MemoryTarget) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

var _ deck.BackupTarget = (*MemoryTarget)(nil)

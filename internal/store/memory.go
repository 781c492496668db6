package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryBackend keeps records in process memory. It is what tests and the
// "memory" backend setting run on.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]Record
	clock   int64
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

// NewMemory is shorthand for a Store over a fresh MemoryBackend.
func NewMemory(opts ...Option) *Store {
	return New(NewMemoryBackend(), opts...)
}

func (m *MemoryBackend) nextVersion() int64 {
	m.clock++
	return m.clock
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (m *MemoryBackend) Load(ctx context.Context, path string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[path]
	if !ok {
		return Record{}, false, nil
	}
	return Record{Value: clone(rec.Value), Version: rec.Version}, true, nil
}

func (m *MemoryBackend) Insert(ctx context.Context, path string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[path]; exists {
		return false, nil
	}
	m.records[path] = Record{Value: clone(value), Version: m.nextVersion()}
	return true, nil
}

func (m *MemoryBackend) Swap(ctx context.Context, path string, version int64, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, exists := m.records[path]
	if !exists || rec.Version != version {
		return false, nil
	}
	m.records[path] = Record{Value: clone(value), Version: m.nextVersion()}
	return true, nil
}

func (m *MemoryBackend) Put(ctx context.Context, path string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[path] = Record{Value: clone(value), Version: m.nextVersion()}
	return nil
}

func (m *MemoryBackend) Merge(ctx context.Context, path string, fields []byte) error {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(fields, &patch); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	merged := make(map[string]json.RawMessage, len(patch))
	if rec, exists := m.records[path]; exists {
		if err := json.Unmarshal(rec.Value, &merged); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	value, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	m.records[path] = Record{Value: value, Version: m.nextVersion()}
	return nil
}

func (m *MemoryBackend) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, path)
	return nil
}

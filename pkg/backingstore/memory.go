// Package backingstore provides read/write/delete callback implementations
// for github.com/gitpan/cachemmap's optional backing-store collaborator.
package backingstore

import "sync"

// Map is an in-memory backing store, useful in tests and examples. It is
// safe for concurrent use.
type Map struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMap returns an empty Map-backed store.
func NewMap() *Map {
	return &Map{data: make(map[string][]byte)}
}

// Read implements cachemmap.ReadFunc.
func (m *Map) Read(key []byte, _ any) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	return v, ok, nil
}

// Write implements cachemmap.WriteFunc.
func (m *Map) Write(key, value []byte, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete implements cachemmap.DeleteFunc.
func (m *Map) Delete(key, _ []byte, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

package spill

import "sync"

// MemoryTier keeps records in a map. It exercises the paging path without
// touching disk.
type MemoryTier struct {
	mu      sync.Mutex
	records map[string][]byte
	closed  bool
}

// NewMemoryTier creates an empty in-memory tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{records: make(map[string][]byte)}
}

func (m *MemoryTier) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTierClosed
	}
	m.records[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryTier) Load(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrTierClosed
	}
	data, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *MemoryTier) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTierClosed
	}
	delete(m.records, key)
	return nil
}

// Len returns the number of stored records.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryTier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	return nil
}

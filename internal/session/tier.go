package session

import "sync"

// Tier is one storage tier of the session store.
type Tier interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
	Clear() error
}

// MemoryTier is the ephemeral tier. It lives only as long as the process,
// like a browser tab's session storage.
type MemoryTier struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryTier returns an empty ephemeral tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{values: make(map[string]string)}
}

func (m *MemoryTier) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryTier) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryTier) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *MemoryTier) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
	return nil
}

package prefs

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps preferences in process memory. It is used by tests and by
// sessions that must not touch disk.
type MemoryStore struct {
	committed map[string]string
	staged    staging
	closed    bool
	commits   int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		committed: make(map[string]string),
		staged:    make(staging),
	}
}

// Get returns the value for key.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	if m.closed {
		return "", false, unavailable("get", key, errClosed)
	}
	if v, ok, staged := m.staged.lookup(key); staged {
		return v, ok, nil
	}
	v, ok := m.committed[key]
	return v, ok, nil
}

// Set stages value under key.
func (m *MemoryStore) Set(key, value string) error {
	if m.closed {
		return unavailable("set", key, errClosed)
	}
	m.staged.set(key, value)
	return nil
}

// Has reports whether key exists.
func (m *MemoryStore) Has(key string) (bool, error) {
	_, ok, err := m.Get(key)
	return ok, err
}

// Delete stages removal of key.
func (m *MemoryStore) Delete(key string) error {
	if m.closed {
		return unavailable("delete", key, errClosed)
	}
	m.staged.delete(key)
	return nil
}

// Commit applies staged changes.
func (m *MemoryStore) Commit() error {
	if m.closed {
		return unavailable("commit", "", errClosed)
	}
	for k, v := range m.staged {
		if v == nil {
			delete(m.committed, k)
			continue
		}
		m.committed[k] = *v
	}
	m.staged.reset()
	m.commits++
	return nil
}

// Commits returns how many times Commit has succeeded.
func (m *MemoryStore) Commits() int {
	return m.commits
}

// Close marks the store closed and drops staged changes.
func (m *MemoryStore) Close() error {
	m.closed = true
	m.staged.reset()
	return nil
}

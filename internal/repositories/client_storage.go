package repositories

import (
	"context"
	"sync"
	"time"
)

// MemoryClientStorage keeps every client's key/value namespace in process memory.
type MemoryClientStorage struct {
	mu         sync.Mutex
	namespaces map[string]*memoryNamespace
	now        func() time.Time
}

type memoryNamespace struct {
	items     map[string]string
	updatedAt time.Time
}

// NewMemoryClientStorage creates an empty store. now may be nil.
func NewMemoryClientStorage(now func() time.Time) *MemoryClientStorage {
	if now == nil {
		now = time.Now
	}
	return &MemoryClientStorage{
		namespaces: make(map[string]*memoryNamespace),
		now:        now,
	}
}

// ForClient returns the namespace view for clientID.
func (s *MemoryClientStorage) ForClient(clientID string) *MemoryStorage {
	return &MemoryStorage{parent: s, namespace: clientID}
}

// DeleteStale drops namespaces untouched since before.
func (s *MemoryClientStorage) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for name, ns := range s.namespaces {
		if ns.updatedAt.Before(before) {
			delete(s.namespaces, name)
			removed++
		}
	}
	return removed, nil
}

// MemoryStorage is one client's namespace.
type MemoryStorage struct {
	parent    *MemoryClientStorage
	namespace string
}

func (m *MemoryStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	ns, ok := m.parent.namespaces[m.namespace]
	if !ok {
		return "", false, nil
	}
	value, ok := ns.items[key]
	return value, ok, nil
}

func (m *MemoryStorage) SetItems(ctx context.Context, items map[string]string) error {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	ns, ok := m.parent.namespaces[m.namespace]
	if !ok {
		ns = &memoryNamespace{items: make(map[string]string)}
		m.parent.namespaces[m.namespace] = ns
	}
	for k, v := range items {
		ns.items[k] = v
	}
	ns.updatedAt = m.parent.now()
	return nil
}

func (m *MemoryStorage) RemoveItems(ctx context.Context, keys ...string) error {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	ns, ok := m.parent.namespaces[m.namespace]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(ns.items, k)
	}
	if len(ns.items) == 0 {
		delete(m.parent.namespaces, m.namespace)
	}
	return nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	delete(m.parent.namespaces, m.namespace)
	return nil
}

// Package storage provides the durable string-keyed slots stores hydrate from
// and write through to.
package storage

import (
	"context"
	"sync"
)

const (
	KeyCart     = "cart"
	KeyCustomer = "customer"
)

// Storage is a string-keyed slot store. Get reports ok=false for absent keys.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Memory struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.slots[key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

type namespaced struct {
	backend Storage
	prefix  string
}

// Namespaced scopes every key of backend under namespace, so several sessions
// can share one backend while each keeps its own "cart" and "customer" slots.
func Namespaced(backend Storage, namespace string) Storage {
	if namespace == "" {
		return backend
	}
	return &namespaced{backend: backend, prefix: namespace + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.backend.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.backend.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.backend.Delete(ctx, n.prefix+key)
}

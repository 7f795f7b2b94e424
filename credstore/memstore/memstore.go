// Package memstore provides the in-memory credstore.Store used in tests and
// short-lived processes.
package memstore

import (
	"sync"

	"github.com/vulnwatch/vulnwatch-client/credstore"
)

var _ credstore.Store = (*MemStore)(nil)

type MemStore struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

func (ms *MemStore) Get(key string) (string, bool) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	value, ok := ms.values[key]
	return value, ok
}

func (ms *MemStore) Set(key, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.values[key] = value
	return nil
}

func (ms *MemStore) Remove(key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	delete(ms.values, key)
	return nil
}

package memstore

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-tenant-session/kvstore"
)

var _ kvstore.Store = (*MemStore)(nil)

// MemStore keeps values in a map. It backs tab-scoped stores and tests.
type MemStore struct {
	values map[string][]byte
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values: make(map[string][]byte),
	}
}

func (ms *MemStore) Get(key string) ([]byte, bool, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	value, ok := ms.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (ms *MemStore) Set(key string, value []byte) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.values[key] = append([]byte(nil), value...)
	return nil
}

func (ms *MemStore) Remove(key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	delete(ms.values, key)
	return nil
}

func (ms *MemStore) Keys() ([]string, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	keys := make([]string, 0, len(ms.values))
	for k := range ms.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of keys held.
func (ms *MemStore) Len() int {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return len(ms.values)
}

package kv

import (
	"context"
	"strings"
	"sync"

	"github.com/tidwall/btree"
)

// Store is the minimal object interface a key/value service has to provide.
// Keys are slash separated and relative to the store's own prefix. Put and
// Delete must be atomic per key.
type Store interface {
	Name() string
	// Get returns ok=false for a missing key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete ignores missing keys.
	Delete(ctx context.Context, key string) error
	// List returns every key starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Pinger is implemented by stores that can verify their connection before
// a dataset is opened.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryStore keeps objects in an ordered in-memory map.
type MemoryStore struct {
	mu      sync.RWMutex
	objects *btree.Map[string, []byte]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: btree.NewMap[string, []byte](0),
	}
}

func (*MemoryStore) Name() string {
	return "memory"
}

func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	value, ok := ms.objects.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (ms *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.objects.Set(key, append([]byte(nil), value...))
	return nil
}

func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.objects.Delete(key)
	return nil
}

func (ms *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	keys := make([]string, 0)
	ms.objects.Ascend(prefix, func(key string, _ []byte) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

package storage

import (
	"context"
	"fmt"
	"sync"
)

var _ ObjectStore = (*MemStore)(nil)

// MemStore implements a minimal in memory ObjectStore for tests and local runs
type MemStore struct {
	mu    sync.RWMutex
	store map[string]Object
}

func NewMemStore() *MemStore {
	return &MemStore{
		store: map[string]Object{},
	}
}

func memKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *MemStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, found := m.store[memKey(bucket, key)]
	if !found {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	body := append([]byte(nil), obj.Body...)
	return &Object{Body: body, ContentType: obj.ContentType}, nil
}

func (m *MemStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[memKey(bucket, key)] = Object{
		Body:        append([]byte(nil), body...),
		ContentType: contentType,
	}
	return nil
}

func (m *MemStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.store[memKey(bucket, key)]
	return found, nil
}

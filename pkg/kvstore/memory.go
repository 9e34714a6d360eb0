package kvstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/eosnow-bet/dice/pkg/infra"
)

// MemoryStore keeps everything in a map. Used by tests and the dump
// command's dry-run mode; not durable.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	codec infra.Codec
}

func NewMemoryStore(codec infra.Codec) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		codec: codec,
	}
}

func (m *MemoryStore) GetName() string {
	return "memory"
}

func (m *MemoryStore) Get(key string) (string, error) {
	if key == "" {
		return "", infra.ErrKeyEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", infra.ErrKeyNotFound
	}
	return string(v), nil
}

func (m *MemoryStore) Set(key string, value string) error {
	if key == "" {
		return infra.ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(value)
	return nil
}

func (m *MemoryStore) SetAny(key string, value any) error {
	if err := checkKeyAndValue(key, value); err != nil {
		return err
	}
	data, err := m.codec.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *MemoryStore) GetAny(key string, value any) (bool, error) {
	if err := checkKeyAndValue(key, value); err != nil {
		return false, err
	}
	m.mu.RLock()
	data, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, m.codec.Unmarshal(data, value)
}

func (m *MemoryStore) List(prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, infra.ErrKeyEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*infra.KVPair, 0)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			cp := make([]byte, len(v))
			copy(cp, v)
			result = append(result, &infra.KVPair{Key: k, Value: cp})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *MemoryStore) Delete(key string) error {
	if key == "" {
		return infra.ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

package store

import (
	"context"
	"sync"

	"github.com/accessally/accessally/internal/identity"
)

// InMemoryStore is a simple in-process store for tests and local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[Namespace]map[identity.Token][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[Namespace]map[identity.Token][]byte)}
}

func (s *InMemoryStore) Get(_ context.Context, ns Namespace, key identity.Token) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[ns][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *InMemoryStore) Put(_ context.Context, ns Namespace, key identity.Token, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.records[ns]
	if !ok {
		bucket = make(map[identity.Token][]byte)
		s.records[ns] = bucket
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	bucket[key] = stored
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, ns Namespace, key identity.Token) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[ns][key]; !ok {
		return false, nil
	}
	delete(s.records[ns], key)
	return true, nil
}

func (s *InMemoryStore) Close() error { return nil }

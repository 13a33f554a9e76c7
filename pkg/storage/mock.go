package storage

import (
	"context"
	"sort"
	"sync"
)

// MockStorage is a non persistent in memory Storage, used for tests and the "memory" bucket.
type MockStorage struct {
	lock sync.RWMutex
	data map[string][]byte
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		data: make(map[string][]byte),
	}
}

func (s *MockStorage) Write(ctx context.Context, key string, body []byte, options *Options) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	c := make([]byte, len(body))
	copy(c, body)
	s.data[key] = c
	return nil
}

func (s *MockStorage) Read(ctx context.Context, key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	b, exists := s.data[key]
	if !exists {
		return nil, ErrNotFound
	}

	c := make([]byte, len(b))
	copy(c, b)
	return c, nil
}

func (s *MockStorage) Remove(ctx context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, exists := s.data[key]; !exists {
		return ErrNotFound
	}

	delete(s.data, key)
	return nil
}

func (s *MockStorage) Search(ctx context.Context, query map[string]string) ([][]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := s.keys(query["path"])
	result := make([][]byte, 0, len(keys))
	for _, key := range keys {
		b := s.data[key]
		c := make([]byte, len(b))
		copy(c, b)
		result = append(result, c)
	}

	return result, nil
}

func (s *MockStorage) List(ctx context.Context, path string) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.keys(path), nil
}

func (s *MockStorage) Clear(ctx context.Context, query map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, key := range s.keys(query["path"]) {
		delete(s.data, key)
	}
	return nil
}

func (s *MockStorage) Close() error {
	return nil
}

// keys returns the sorted keys directly under path. The lock must be held.
func (s *MockStorage) keys(path string) []string {
	all := make([]string, 0, len(s.data))
	for key := range s.data {
		all = append(all, key)
	}
	sort.Strings(all)

	return childKeys(all, path)
}

package settings

import (
	"context"
	"sync"
)

// MemoryStorage keeps settings in a map.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string]Settings
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]Settings)}
}

func (s *MemoryStorage) Get(ctx context.Context, userID string) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.data[userID]
	if !ok {
		return Settings{}, ErrSettingsNotFound
	}
	return st, nil
}

func (s *MemoryStorage) Modify(ctx context.Context, userID string, fn ModifyFunc) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found := s.data[userID]
	next, err := fn(cur, found)
	if err != nil {
		return Settings{}, err
	}
	s.data[userID] = next
	return next, nil
}

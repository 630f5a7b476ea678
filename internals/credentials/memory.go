package credentials

import (
	"sort"
	"sync"
)

// MemoryStore keeps secrets in memory only. Used by tests and as the
// session-only fallback when the OS keyring is unavailable.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[Key]string
}

// NewMemory returns an empty in-memory store
func NewMemory() *MemoryStore {
	return &MemoryStore{secrets: map[Key]string{}}
}

// Set implements Store. Concurrent writes to the same key are
// last-writer-wins.
func (s *MemoryStore) Set(key Key, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = secret
	return nil
}

// Get implements Store
func (s *MemoryStore) Get(key Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[key]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete implements Store
func (s *MemoryStore) Delete(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}

// List implements Store
func (s *MemoryStore) List() ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.secrets))
	for k := range s.secrets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Provider != keys[j].Provider {
			return keys[i].Provider < keys[j].Provider
		}
		return keys[i].Username < keys[j].Username
	})
	return keys, nil
}

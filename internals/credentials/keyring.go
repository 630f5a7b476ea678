package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

const keyringService = "craftauth"

// indexFile lists the stored keys (not the secrets!) so accounts can be
// enumerated – keyrings have no listing API
const indexFile = "accounts-index.json"

// KeyringStore keeps secrets in the OS keyring, one entry per
// (username, provider). A small JSON index in the global directory
// makes the entries enumerable.
type KeyringStore struct {
	globalDir string
	mu        sync.Mutex
}

// NewKeyring returns a keyring backed store. It probes the keyring once
// so a missing/locked secret service surfaces here instead of at the
// first login.
func NewKeyring(globalDir string) (*KeyringStore, error) {
	_, err := keyring.Get(keyringService, "craftauth-probe")
	if err != nil && err != keyring.ErrNotFound {
		return nil, fmt.Errorf("keyring unavailable: %w", err)
	}
	return &KeyringStore{globalDir: globalDir}, nil
}

// Set implements Store
func (s *KeyringStore) Set(key Key, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(keyringService, key.storageKey(), secret); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return s.updateIndex(func(keys []Key) []Key {
		for _, k := range keys {
			if k == key {
				return keys
			}
		}
		return append(keys, key)
	})
}

// Get implements Store
func (s *KeyringStore) Get(key Key) (string, error) {
	secret, err := keyring.Get(keyringService, key.storageKey())
	switch err {
	case nil:
		return secret, nil
	case keyring.ErrNotFound:
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("reading credential: %w", err)
	}
}

// Delete implements Store
func (s *KeyringStore) Delete(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// a missing entry is fine, logout is idempotent
	if err := keyring.Delete(keyringService, key.storageKey()); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return s.updateIndex(func(keys []Key) []Key {
		filtered := keys[:0]
		for _, k := range keys {
			if k != key {
				filtered = append(filtered, k)
			}
		}
		return filtered
	})
}

// List implements Store
func (s *KeyringStore) List() ([]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex()
}

func (s *KeyringStore) indexPath() string {
	return filepath.Join(s.globalDir, indexFile)
}

func (s *KeyringStore) readIndex() ([]Key, error) {
	raw, err := os.ReadFile(s.indexPath())
	switch {
	case err == nil:
		var keys []Key
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, fmt.Errorf("parsing account index: %w", err)
		}
		return keys, nil
	case os.IsNotExist(err):
		// no index means no accounts (yet)
		return nil, nil
	default:
		return nil, err
	}
}

func (s *KeyringStore) updateIndex(mutate func([]Key) []Key) error {
	keys, err := s.readIndex()
	if err != nil {
		return err
	}
	keys = mutate(keys)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Provider != keys[j].Provider {
			return keys[i].Provider < keys[j].Provider
		}
		return keys[i].Username < keys[j].Username
	})

	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.globalDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), raw, 0600)
}

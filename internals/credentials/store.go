// Package credentials persists long lived refresh secrets, keyed by
// (username, provider). The production backend is the OS keyring, tests
// and session-only mode use the in-memory backend.
package credentials

import "errors"

// ErrNotFound gets returned when no secret is stored for a key
var ErrNotFound = errors.New("credentials: no secret stored")

// Key addresses one stored secret
type Key struct {
	Username string `json:"username"`
	Provider string `json:"provider"`
}

func (k Key) storageKey() string {
	return k.Username + "#" + k.Provider
}

// Store is the secure persistence abstraction for refresh secrets.
// Implementations must be safe for concurrent use and must never leak
// secrets through error messages.
type Store interface {
	// Set stores (or replaces) the secret for key
	Set(key Key, secret string) error
	// Get returns the stored secret or ErrNotFound
	Get(key Key) (string, error)
	// Delete removes the secret. Deleting an absent key is not an error.
	Delete(key Key) error
	// List enumerates all stored keys
	List() ([]Key, error)
}

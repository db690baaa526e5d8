package credentials

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Store holds scraper account secrets keyed by platform and username
type Store interface {
	// Put saves the secret for an account
	Put(platform, username, secret string) error
	// Get returns the secret for an account or ErrNotFound
	Get(platform, username string) (string, error)
	// Delete removes the secret for an account
	Delete(platform, username string) error
}

// Errors
var (
	ErrNotFound         = errors.New("credentials not found")
	ErrInvalid          = errors.New("invalid credentials")
	ErrStoreUnavailable = errors.New("credential store unavailable")
	ErrReadOnly         = errors.New("credential store is read-only")
)

// Key is the storage key of an account secret
func Key(platform, username string) string {
	return strings.ToLower(platform) + ":" + strings.ToLower(username)
}

// Chain tries several stores in order. Reads return the first hit, writes
// go to the first store that accepts them, deletes go to all of them.
type Chain struct {
	stores []Store
}

// NewChain creates a chain over the given stores
func NewChain(stores ...Store) *Chain {
	return &Chain{stores: stores}
}

// NewDefaultChain prefers the system keychain and falls back to environment
// variables when no keychain is available.
func NewDefaultChain() *Chain {
	var stores []Store
	if k, err := NewKeyringStore(); err == nil {
		stores = append(stores, k)
	}
	stores = append(stores, NewEnvironmentStore())
	return NewChain(stores...)
}

// Put implements Store
func (c *Chain) Put(platform, username, secret string) error {
	if username == "" || secret == "" {
		return ErrInvalid
	}
	var lastErr error
	for _, s := range c.stores {
		if err := s.Put(platform, username, secret); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Get implements Store
func (c *Chain) Get(platform, username string) (string, error) {
	for _, s := range c.stores {
		if v, err := s.Get(platform, username); err == nil && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, Key(platform, username))
}

// Delete implements Store
func (c *Chain) Delete(platform, username string) error {
	deleted := false
	var lastErr error
	for _, s := range c.stores {
		if err := s.Delete(platform, username); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrReadOnly) && !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return ErrNotFound
}

// MemoryStore keeps secrets in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

// Put implements Store
func (m *MemoryStore) Put(platform, username, secret string) error {
	if username == "" {
		return ErrInvalid
	}
	m.mu.Lock()
	m.secrets[Key(platform, username)] = secret
	m.mu.Unlock()
	return nil
}

// Get implements Store
func (m *MemoryStore) Get(platform, username string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[Key(platform, username)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Delete implements Store
func (m *MemoryStore) Delete(platform, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(platform, username)
	if _, ok := m.secrets[k]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, k)
	return nil
}

// Mask hides all but the edges of a secret for display
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

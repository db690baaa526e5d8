package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "followwatch"

// KeyringStore implements Store using the system keychain
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when it is unusable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

// Put implements Store
func (k *KeyringStore) Put(platform, username, secret string) error {
	if username == "" {
		return ErrInvalid
	}
	if err := keyring.Set(keyringService, Key(platform, username), secret); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Get implements Store
func (k *KeyringStore) Get(platform, username string) (string, error) {
	v, err := keyring.Get(keyringService, Key(platform, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return v, nil
}

// Delete implements Store
func (k *KeyringStore) Delete(platform, username string) error {
	err := keyring.Delete(keyringService, Key(platform, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

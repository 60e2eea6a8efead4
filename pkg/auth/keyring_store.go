package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "reelgrab"
	keyringUser    = "instagram_session"
)

// KeyringStore keeps the session in the system keychain
type KeyringStore struct{}

// NewKeyringStore checks the keychain and fails when it cannot be written
func NewKeyringStore() (*KeyringStore, error) {
	const marker = "availability_check"
	if err := keyring.Set(keyringService, marker, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, marker)

	return &KeyringStore{}, nil
}

func (k *KeyringStore) Name() string { return StoreKeyring }

func (k *KeyringStore) Save(session *Session) error {
	if session == nil {
		return ErrInvalidSession
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := keyring.Set(keyringService, keyringUser, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Load() (*Session, error) {
	data, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (k *KeyringStore) Delete() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Exists() bool {
	_, err := keyring.Get(keyringService, keyringUser)
	return err == nil
}

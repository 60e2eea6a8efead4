// Package auth persists an optional Instagram session so the page and embed
// scrapers can send logged-in cookies.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Session holds the cookies of a logged-in Instagram browser session
type Session struct {
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks the session carries both cookies
func (s *Session) Validate() error {
	if s == nil {
		return ErrInvalidSession
	}
	if s.SessionID == "" {
		return errors.New("session ID is required")
	}
	if s.CSRFToken == "" {
		return errors.New("CSRF token is required")
	}
	return nil
}

// Store saves and loads the single configured session
type Store interface {
	Name() string
	Save(session *Session) error
	Load() (*Session, error)
	Delete() error
	Exists() bool
}

// Store kinds accepted by NewManager
const (
	StoreAuto    = "auto"
	StoreKeyring = "keyring"
	StoreFile    = "file"
	StoreEnv     = "env"
	StoreNone    = "none"
)

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []Store
}

// NewManager builds the store chain for kind. "auto" tries the system
// keychain, then the encrypted file, then the environment.
func NewManager(kind string) (*Manager, error) {
	var stores []Store

	switch kind {
	case "", StoreAuto:
		if ks, err := NewKeyringStore(); err == nil {
			stores = append(stores, ks)
		}
		fs, err := newDefaultFileStore()
		if err != nil {
			return nil, err
		}
		stores = append(stores, fs, NewEnvironmentStore())
	case StoreKeyring:
		ks, err := NewKeyringStore()
		if err != nil {
			return nil, err
		}
		stores = append(stores, ks)
	case StoreFile:
		fs, err := newDefaultFileStore()
		if err != nil {
			return nil, err
		}
		stores = append(stores, fs)
	case StoreEnv:
		stores = append(stores, NewEnvironmentStore())
	case StoreNone:
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over an explicit store chain
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

func newDefaultFileStore() (*EncryptedFileStore, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	fs, err := NewEncryptedFileStore(filepath.Join(configDir, "session.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	return fs, nil
}

// Save writes the session to the first store that accepts it and returns its name
func (m *Manager) Save(session *Session) (string, error) {
	if err := session.Validate(); err != nil {
		return "", err
	}
	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Save(session)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store session: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Load returns the session from the first store that has one
func (m *Manager) Load() (*Session, error) {
	for _, store := range m.stores {
		if s, err := store.Load(); err == nil && s != nil {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

// Delete removes the session from every writable store
func (m *Manager) Delete() error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete()
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrSessionNotFound):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	return ErrSessionNotFound
}

// Stores returns the names of the configured stores in lookup order
func (m *Manager) Stores() []string {
	names := make([]string, len(m.stores))
	for i, s := range m.stores {
		names[i] = s.Name()
	}
	return names
}

// getConfigDir returns the per-user configuration directory, creating it if needed
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "reelgrab")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "reelgrab")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "reelgrab")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "reelgrab")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeSession returns a copy with the cookie values masked
func SanitizeSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	return &Session{
		SessionID:    MaskString(s.SessionID),
		CSRFToken:    MaskString(s.CSRFToken),
		UserAgent:    s.UserAgent,
		LastModified: s.LastModified,
	}
}

// MaskString masks all but the first 4 and last 4 characters of a string
func MaskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

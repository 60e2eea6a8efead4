package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvSessionID = "REELGRAB_SESSION_ID"
	EnvCSRFToken = "REELGRAB_SESSION_CSRF_TOKEN"
	EnvUserAgent = "REELGRAB_SESSION_USER_AGENT"
)

// EnvironmentStore reads the session from environment variables. It is read-only.
type EnvironmentStore struct {
	lookup func(string) string
}

// NewEnvironmentStore creates an environment-backed store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{lookup: os.Getenv}
}

func (e *EnvironmentStore) Name() string { return StoreEnv }

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(*Session) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Load() (*Session, error) {
	sessionID := e.lookup(EnvSessionID)
	csrfToken := e.lookup(EnvCSRFToken)
	if sessionID == "" || csrfToken == "" {
		return nil, ErrSessionNotFound
	}

	return &Session{
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		UserAgent:    e.lookup(EnvUserAgent),
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists() bool {
	return e.lookup(EnvSessionID) != "" && e.lookup(EnvCSRFToken) != ""
}

package auth

import "sync"

// MockStore is an in-memory Store with error injection for tests
type MockStore struct {
	mu      sync.RWMutex
	session *Session

	SaveError   error
	LoadError   error
	DeleteError error
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Name() string { return "mock" }

func (m *MockStore) Save(session *Session) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if session == nil {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.session = &cp
	return nil
}

func (m *MockStore) Load() (*Session, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrSessionNotFound
	}
	cp := *m.session
	return &cp, nil
}

func (m *MockStore) Delete() error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrSessionNotFound
	}
	m.session = nil
	return nil
}

func (m *MockStore) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// NewMockManager creates a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

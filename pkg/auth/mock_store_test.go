package auth

import (
	"sync"
)

// MockStore implements CredentialStore for testing purposes
type MockStore struct {
	tokens map[string]*Token
	mu     sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]*Token)}
}

func (m *MockStore) Store(token *Token) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if token == nil || token.Profile == "" {
		return ErrInvalidCredentials
	}
	tokenCopy := *token
	m.tokens[token.Profile] = &tokenCopy
	return nil
}

func (m *MockStore) Retrieve(profile string) (*Token, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, exists := m.tokens[profile]
	if !exists {
		return nil, ErrCredentialsNotFound
	}
	tokenCopy := *token
	return &tokenCopy, nil
}

func (m *MockStore) List() ([]*Token, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tokens []*Token
	for _, token := range m.tokens {
		tokenCopy := *token
		tokens = append(tokens, &tokenCopy)
	}
	return tokens, nil
}

func (m *MockStore) Delete(profile string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[profile]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.tokens, profile)
	return nil
}

// Count returns the number of stored tokens
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

package auth

import (
	"os"
	"time"
)

// EnvAccessToken is the environment variable read by EnvironmentStore
const EnvAccessToken = "CITYHARVEST_ACCESS_TOKEN"

// EnvironmentStore is a read-only CredentialStore backed by the environment.
// It answers for every profile.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(token *Token) error {
	return ErrStoreUnavailable
}

// Retrieve gets the token from CITYHARVEST_ACCESS_TOKEN
func (e *EnvironmentStore) Retrieve(profile string) (*Token, error) {
	accessToken := os.Getenv(EnvAccessToken)
	if accessToken == "" {
		return nil, ErrCredentialsNotFound
	}

	if profile == "" {
		profile = DefaultProfile
	}

	return &Token{
		Profile:      profile,
		AccessToken:  accessToken,
		LastModified: time.Now(),
	}, nil
}

// List returns a single token if the environment variable is set
func (e *EnvironmentStore) List() ([]*Token, error) {
	token, err := e.Retrieve("")
	if err != nil {
		return []*Token{}, nil
	}
	return []*Token{token}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

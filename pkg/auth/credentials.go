// Package auth stores and resolves Graph API access tokens.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DefaultProfile names the token used when no profile is given
const DefaultProfile = "default"

// Token is a stored Graph API access token
type Token struct {
	Profile      string    `json:"profile"`
	AccessToken  string    `json:"access_token"`
	AppID        string    `json:"app_id,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving tokens
type CredentialStore interface {
	// Store saves the token under its profile
	Store(token *Token) error

	// Retrieve gets the token of a profile
	Retrieve(profile string) (*Token, error)

	// List returns all stored tokens
	List() ([]*Token, error)

	// Delete removes the token of a profile
	Delete(profile string) error
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the keyring (when available), the
// encrypted token file under dir and the environment. An empty dir selects the
// platform config directory.
func NewManager(dir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if dir == "" {
		configDir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		dir = configDir
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the token using the first store that accepts it
func (m *Manager) Store(token *Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("access token is required")
	}
	if token.Profile == "" {
		token.Profile = DefaultProfile
	}
	token.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(token)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the token of profile from the first store that has it
func (m *Manager) Retrieve(profile string) (*Token, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if token, err := store.Retrieve(profile); err == nil && token != nil {
			return token, nil
		}
	}
	return nil, fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
}

// Resolve returns configured when it is set and the stored token of profile
// otherwise.
func (m *Manager) Resolve(configured, profile string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	token, err := m.Retrieve(profile)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// List returns the most recent token of every profile across all stores
func (m *Manager) List() ([]*Token, error) {
	byProfile := make(map[string]*Token)

	for _, store := range m.stores {
		tokens, err := store.List()
		if err != nil {
			continue
		}
		for _, token := range tokens {
			if existing, ok := byProfile[token.Profile]; !ok || token.LastModified.After(existing.LastModified) {
				byProfile[token.Profile] = token
			}
		}
	}

	result := make([]*Token, 0, len(byProfile))
	for _, token := range byProfile {
		result = append(result, token)
	}
	return result, nil
}

// Delete removes the token of profile from all stores
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "cityharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "cityharvest")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "cityharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "cityharvest")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeToken returns a copy of token with the secret masked
func SanitizeToken(token *Token) *Token {
	if token == nil {
		return nil
	}
	masked := *token
	masked.AccessToken = MaskString(token.AccessToken)
	return &masked
}

// MaskString masks all but the first 4 and last 4 characters of a string
func MaskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

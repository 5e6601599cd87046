package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// EnvPassphrase overrides the generated passphrase of EncryptedFileStore
const EnvPassphrase = "CITYHARVEST_PASSPHRASE"

const (
	tokenFileVersion = 1
	saltSize         = 32
	keySize          = 32
	pbkdf2Iterations = 100000
)

// EncryptedFileStore keeps all profiles in one AES-GCM sealed file. The key is
// derived with PBKDF2 from CITYHARVEST_PASSPHRASE or from a .passphrase file
// generated next to the token file.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// tokenFile is the on-disk envelope; byte slices are base64 in JSON
type tokenFile struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Sealed  []byte `json:"sealed"`
}

// NewEncryptedFileStore opens the token file at path, creating its directory
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(filepath.Join(dir, ".passphrase"))
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store saves the token under its profile
func (e *EncryptedFileStore) Store(token *Token) error {
	if token == nil || token.Profile == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(tokens map[string]Token) error {
		tokens[token.Profile] = *token
		return nil
	})
}

// Retrieve gets the token of profile
func (e *EncryptedFileStore) Retrieve(profile string) (*Token, error) {
	if profile == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tokens, err := e.read()
	if err != nil {
		return nil, err
	}
	token, ok := tokens[profile]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &token, nil
}

// List returns every stored token
func (e *EncryptedFileStore) List() ([]*Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokens, err := e.read()
	if err != nil {
		return nil, err
	}
	list := make([]*Token, 0, len(tokens))
	for _, token := range tokens {
		list = append(list, &token)
	}
	return list, nil
}

// Delete removes the token of profile; the file goes away with the last one
func (e *EncryptedFileStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(tokens map[string]Token) error {
		if _, ok := tokens[profile]; !ok {
			return ErrCredentialsNotFound
		}
		delete(tokens, profile)
		return nil
	})
}

func (e *EncryptedFileStore) update(fn func(map[string]Token) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokens, err := e.read()
	if err != nil {
		return err
	}
	if err := fn(tokens); err != nil {
		return err
	}
	return e.write(tokens)
}

// read opens the token file; a missing file holds no tokens
func (e *EncryptedFileStore) read() (map[string]Token, error) {
	tokens := make(map[string]Token)

	raw, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return tokens, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var f tokenFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if f.Version != tokenFileVersion {
		return nil, fmt.Errorf("unsupported token file version %d", f.Version)
	}

	aead, err := e.aead(f.Salt)
	if err != nil {
		return nil, err
	}
	n := aead.NonceSize()
	if len(f.Sealed) < n {
		return nil, errors.New("decrypt token file: sealed data too short")
	}
	plain, err := aead.Open(nil, f.Sealed[:n], f.Sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt token file: %w", err)
	}

	if err := json.Unmarshal(plain, &tokens); err != nil {
		return nil, fmt.Errorf("parse tokens: %w", err)
	}
	return tokens, nil
}

// write seals tokens under a fresh salt and nonce and replaces the file
func (e *EncryptedFileStore) write(tokens map[string]Token) error {
	if len(tokens) == 0 {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
		return nil
	}

	plain, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	aead, err := e.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	raw, err := json.MarshalIndent(tokenFile{
		Version: tokenFileVersion,
		Salt:    salt,
		Sealed:  aead.Seal(nonce, nonce, plain, nil),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token file: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// loadPassphrase returns CITYHARVEST_PASSPHRASE, the saved passphrase at path,
// or a new random one saved there
func loadPassphrase(path string) ([]byte, error) {
	if p := os.Getenv(EnvPassphrase); p != "" {
		return []byte(p), nil
	}
	if p, err := os.ReadFile(path); err == nil && len(p) > 0 {
		return p, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate passphrase: %w", err)
	}
	p := []byte(base64.RawURLEncoding.EncodeToString(b))
	if err := os.WriteFile(path, p, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return p, nil
}

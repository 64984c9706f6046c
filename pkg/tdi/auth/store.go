package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"
)

type StorageMode string

const (
	StorageFile     StorageMode = "file"
	StorageKeychain StorageMode = "keychain"

	credentialsFile = "credentials.json"
	keyringService  = "tdi"
	keyringUser     = "credentials"
)

func ParseStorageMode(mode string) (StorageMode, error) {
	switch StorageMode(mode) {
	case "", StorageFile:
		return StorageFile, nil
	case StorageKeychain:
		return StorageKeychain, nil
	default:
		return "", fmt.Errorf("%w: unknown token storage %q (want file or keychain)", ErrConfiguration, mode)
	}
}

// Credential is the persisted form of a successful login. Unknown fields are
// ignored on read so provider-specific additions do not break older binaries.
type Credential struct {
	AccessToken AccessToken `json:"access_token"`
	ClientID    string      `json:"client_id,omitempty"`
	RedirectURI string      `json:"redirect_uri,omitempty"`
	TokenURL    string      `json:"token_url,omitempty"`
	SavedAt     time.Time   `json:"saved_at"`
}

func NewCredential(s *Session, token *AccessToken) *Credential {
	return &Credential{
		AccessToken: *token,
		ClientID:    s.ClientID,
		RedirectURI: s.RedirectURI,
		TokenURL:    s.TokenURL,
		SavedAt:     time.Now().UTC(),
	}
}

// TokenStore persists a single credential, either as Dir/credentials.json or
// in the OS keychain. It assumes a single writer.
type TokenStore struct {
	Dir         string
	StorageMode StorageMode
}

func (s *TokenStore) Path() string {
	return filepath.Join(s.Dir, credentialsFile)
}

// Save replaces the stored credential. File writes go through a temporary
// file and a rename, so readers see either the old or the new document.
func (s *TokenStore) Save(cred *Credential) error {
	if cred == nil || cred.AccessToken.AccessToken == "" {
		return fmt.Errorf("%w: refusing to store an empty token", ErrCredentialStore)
	}
	content, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal credential: %v", ErrCredentialStore, err)
	}
	if s.StorageMode == StorageKeychain {
		if err := keyring.Set(keyringService, keyringUser, string(content)); err != nil {
			return fmt.Errorf("%w: failed to write keychain: %v", ErrCredentialStore, err)
		}
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("%w: failed to create config dir: %v", ErrCredentialStore, err)
	}
	if err := writeFileAtomic(s.Path(), content, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialStore, err)
	}
	return nil
}

func (s *TokenStore) Load() (*Credential, error) {
	content, err := s.read()
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := json.Unmarshal(content, &cred); err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrCorruptCredentials, err)
	}
	if cred.AccessToken.AccessToken == "" {
		return nil, fmt.Errorf("%w (access_token missing)", ErrCorruptCredentials)
	}
	return &cred, nil
}

// BearerToken returns the stored access token for an Authorization header.
func (s *TokenStore) BearerToken() (string, error) {
	cred, err := s.Load()
	if err != nil {
		return "", err
	}
	return cred.AccessToken.AccessToken, nil
}

// Delete removes the stored credential. Deleting a missing credential is not
// an error.
func (s *TokenStore) Delete() error {
	if s.StorageMode == StorageKeychain {
		if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: failed to delete keychain entry: %v", ErrCredentialStore, err)
		}
		return nil
	}
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrCredentialStore, err)
	}
	return nil
}

func (s *TokenStore) read() ([]byte, error) {
	if s.StorageMode == StorageKeychain {
		secret, err := keyring.Get(keyringService, keyringUser)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, ErrNotAuthenticated
			}
			return nil, fmt.Errorf("%w: failed to read keychain: %v", ErrCredentialStore, err)
		}
		return []byte(secret), nil
	}
	content, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialStore, err)
	}
	return content, nil
}

func writeFileAtomic(path string, content []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync credential: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace credential: %w", err)
	}
	return nil
}

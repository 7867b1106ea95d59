// Package auth stores login credentials in the OS keyring so passwords
// never land in config files or shell history.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "igclient"

// Account is a stored login identity.
type Account struct {
	Username string
	Password string
}

// CredentialStore persists accounts.
type CredentialStore interface {
	Save(account Account) error
	Get(username string) (Account, error)
	Delete(username string) error
}

// ErrNotFound is returned when no credentials exist for a username.
var ErrNotFound = fmt.Errorf("credentials not found")

// KeyringStore stores passwords in the OS keyring.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-backed credential store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: keyringService}
}

func (s *KeyringStore) Save(account Account) error {
	if account.Username == "" {
		return fmt.Errorf("username required")
	}
	if err := keyring.Set(s.service, account.Username, account.Password); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (s *KeyringStore) Get(username string) (Account, error) {
	password, err := keyring.Get(s.service, username)
	if err != nil {
		if err == keyring.ErrNotFound {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	return Account{Username: username, Password: password}, nil
}

func (s *KeyringStore) Delete(username string) error {
	if err := keyring.Delete(s.service, username); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// Manager resolves the account to use for a session, remembering the last
// logged-in username across runs.
type Manager struct {
	store       CredentialStore
	defaultFile string
}

// NewManager creates a manager over a credential store.
func NewManager(store CredentialStore) *Manager {
	home, _ := os.UserHomeDir()
	return &Manager{
		store:       store,
		defaultFile: filepath.Join(home, ".config", "igclient", "account"),
	}
}

// Login saves the account and marks it as the default.
func (m *Manager) Login(account Account) error {
	if err := m.store.Save(account); err != nil {
		return err
	}
	return m.setDefault(account.Username)
}

// Logout deletes the account's credentials and clears the default if it
// pointed at it.
func (m *Manager) Logout(username string) error {
	if err := m.store.Delete(username); err != nil {
		return err
	}
	if def, _ := m.defaultUsername(); def == username {
		os.Remove(m.defaultFile)
	}
	return nil
}

// Resolve returns the account for username, falling back to the default
// account when username is empty.
func (m *Manager) Resolve(username string) (Account, error) {
	if username == "" {
		def, err := m.defaultUsername()
		if err != nil || def == "" {
			return Account{}, ErrNotFound
		}
		username = def
	}
	return m.store.Get(username)
}

func (m *Manager) defaultUsername() (string, error) {
	data, err := os.ReadFile(m.defaultFile)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (m *Manager) setDefault(username string) error {
	if err := os.MkdirAll(filepath.Dir(m.defaultFile), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(m.defaultFile, []byte(username+"\n"), 0600)
}

package cookies

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists session cookies between runs so a fresh login is only
// needed when the saved session has expired.
type Store interface {
	// Load returns the saved cookie values, or an empty map if nothing
	// has been saved yet.
	Load() (map[string]string, error)

	// Save persists the cookie values, replacing any previous contents.
	Save(cookies map[string]string) error
}

// FileStore saves cookies as plain JSON on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed cookie store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	cookies := make(map[string]string)
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}
	return cookies, nil
}

func (s *FileStore) Save(cookies map[string]string) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize cookie file: %w", err)
	}
	return nil
}

// MemoryStore keeps cookies in memory only. Used in tests and when
// persistence is disabled.
type MemoryStore struct {
	cookies map[string]string
}

// NewMemoryStore creates an in-memory cookie store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cookies: make(map[string]string)}
}

func (s *MemoryStore) Load() (map[string]string, error) {
	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Save(cookies map[string]string) error {
	s.cookies = make(map[string]string, len(cookies))
	for k, v := range cookies {
		s.cookies[k] = v
	}
	return nil
}

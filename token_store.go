package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
)

// TokenFileName is the fixed storage key for the bearer credential. It
// matches the key the browser build used so support tooling can find it.
const TokenFileName = "lumora-token"

// FileTokenStore persists the bearer token as a single file under a state
// directory. The value survives restarts of the same profile but not a move
// to a different machine, which is the intended scope.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a store rooted at dir, creating it if needed.
func NewFileTokenStore(dir string) (*FileTokenStore, error) {
	if dir == "" {
		return nil, errors.New("token store directory is required", errors.CategoryBadInput)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create token store directory")
	}

	return &FileTokenStore{path: filepath.Join(dir, TokenFileName)}, nil
}

// Save overwrites any existing stored token. The write goes through a temp
// file and rename so a crash never leaves a truncated credential.
func (s *FileTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write token")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to commit token")
	}

	return nil
}

// Read returns the last saved token, or false if none was saved or it was
// cleared. No validation of token shape is performed; it is opaque here.
func (s *FileTokenStore) Read() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", false
	}

	return token, true
}

// Clear removes the stored token. Clearing an already absent token is a no-op.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CategoryInternal, "failed to clear token")
	}

	return nil
}

// MemoryTokenStore is a volatile TokenStore used by tests and ephemeral
// environments where durability is not wanted.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

func (s *MemoryTokenStore) Read() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.token == "" {
		return "", false
	}
	return s.token, true
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}

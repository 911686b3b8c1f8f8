package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// DirectoryAccount is the record mirrored into the backend user directory
// when an identity is created. New accounts always start as RoleUser; role
// elevation happens backend-side.
type DirectoryAccount struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Role        Role   `json:"role"`
}

// DirectoryService posts new accounts to the backend user directory. The
// backend upserts, so repeating the write for a federated login that already
// has a record is harmless.
type DirectoryService struct {
	backend *BackendClient
	logger  Logger
}

var _ AccountDirectory = (*DirectoryService)(nil)

// NewDirectoryService returns an AccountDirectory backed by the shared client.
func NewDirectoryService(backend *BackendClient) *DirectoryService {
	return &DirectoryService{
		backend: backend,
		logger:  defLogger{},
	}
}

func (s *DirectoryService) WithLogger(l Logger) *DirectoryService {
	if l != nil {
		s.logger = l
	}
	return s
}

// RegisterAccount writes the directory record. Failure is surfaced to the
// caller but never rolls back the identity that was already created.
func (s *DirectoryService) RegisterAccount(ctx context.Context, account DirectoryAccount) error {
	if account.Role == "" {
		account.Role = RoleUser
	}

	if err := s.backend.Post(ctx, "/api/users", account, nil); err != nil {
		s.logger.Error("user directory write failed", "email", account.Email, "error", err)
		return errors.Wrap(err, ErrDirectoryWrite.Category, ErrDirectoryWrite.Message).
			WithTextCode(ErrDirectoryWrite.TextCode)
	}

	return nil
}

package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// ExchangeService mints an application bearer token by posting the verified
// identity's email to the backend and persisting the result. It must run once
// per identity-present event even when a token is already cached: after a
// multi-tab sign-out/sign-in the cached token may belong to a different
// principal.
type ExchangeService struct {
	backend *BackendClient
	tokens  TokenStore
	logger  Logger
}

var _ TokenExchanger = (*ExchangeService)(nil)

// NewExchangeService returns a TokenExchanger backed by the shared client.
func NewExchangeService(backend *BackendClient, tokens TokenStore) *ExchangeService {
	return &ExchangeService{
		backend: backend,
		tokens:  tokens,
		logger:  defLogger{},
	}
}

func (s *ExchangeService) WithLogger(l Logger) *ExchangeService {
	if l != nil {
		s.logger = l
	}
	return s
}

// Exchange posts the email to the token-minting endpoint, saves the token via
// the TokenStore, and returns it.
func (s *ExchangeService) Exchange(ctx context.Context, email string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}

	if err := s.backend.Post(ctx, "/api/jwt", map[string]string{"email": email}, &out); err != nil {
		s.logger.Error("token exchange request failed", "email", email, "error", err)
		return "", errors.Wrap(err, ErrExchangeFailed.Category, ErrExchangeFailed.Message).
			WithTextCode(ErrExchangeFailed.TextCode)
	}

	if out.Token == "" {
		s.logger.Error("token exchange returned an empty token", "email", email)
		return "", ErrExchangeFailed
	}

	if err := s.tokens.Save(out.Token); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to persist exchanged token")
	}

	return out.Token, nil
}

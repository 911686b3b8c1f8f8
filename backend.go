package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// UnauthorizedHandler is notified whenever any backend call returns 401, after
// the stored token has been cleared. The HTTP layer uses it to force
// navigation back to the login view.
type UnauthorizedHandler func()

// BackendClient is the shared HTTP client for the application backend. Every
// request path funnels through do, which applies the global 401 policy: an
// unauthorized response from anywhere clears the token store before the error
// reaches the caller.
type BackendClient struct {
	baseURL        string
	http           *http.Client
	tokens         TokenStore
	logger         Logger
	onUnauthorized UnauthorizedHandler
}

// BackendOption customizes the backend client.
type BackendOption func(*BackendClient)

// WithBackendHTTPClient overrides the underlying http.Client.
func WithBackendHTTPClient(c *http.Client) BackendOption {
	return func(b *BackendClient) {
		if c != nil {
			b.http = c
		}
	}
}

// WithBackendLogger overrides the logger.
func WithBackendLogger(l Logger) BackendOption {
	return func(b *BackendClient) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithUnauthorizedHandler registers the 401 notification hook.
func WithUnauthorizedHandler(fn UnauthorizedHandler) BackendOption {
	return func(b *BackendClient) {
		b.onUnauthorized = fn
	}
}

// NewBackendClient creates a client rooted at baseURL. tokens is required:
// the 401 policy and bearer-authorized requests both read through it.
func NewBackendClient(baseURL string, tokens TokenStore, opts ...BackendOption) *BackendClient {
	b := &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// Post sends a JSON body without authorization and decodes the response.
func (b *BackendClient) Post(ctx context.Context, path string, body, out any) error {
	return b.do(ctx, http.MethodPost, path, body, out, false)
}

// GetAuthorized sends a GET carrying the stored bearer token.
func (b *BackendClient) GetAuthorized(ctx context.Context, path string, out any) error {
	return b.do(ctx, http.MethodGet, path, nil, out, true)
}

func (b *BackendClient) do(ctx context.Context, method, path string, body, out any, authorized bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "failed to build backend request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authorized {
		if token, ok := b.tokens.Read(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := b.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "backend request failed")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return b.handleUnauthorized(method, path)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return errors.New("backend returned an error status", errors.CategoryOperation).
			WithMetadata(map[string]any{
				"status": res.StatusCode,
				"method": method,
				"path":   path,
			})
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to decode backend response")
		}
	}

	return nil
}

// handleUnauthorized applies the ambient 401 policy: clear the token first,
// then notify, then fail the caller.
func (b *BackendClient) handleUnauthorized(method, path string) error {
	if err := b.tokens.Clear(); err != nil {
		b.logger.Error("failed to clear token after 401", "error", err)
	}

	b.logger.Warn("backend rejected bearer token", "method", method, "path", path)

	if b.onUnauthorized != nil {
		b.onUnauthorized()
	}

	return ErrUnauthorizedResponse
}

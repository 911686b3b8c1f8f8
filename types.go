package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of a verified principal returned by the
// identity backend. The session controller keeps a read-only reference for
// the lifetime of the authenticated session; the backend owns mutation.
type Identity interface {
	Key() string
	Email() string
	DisplayName() string
	AvatarURL() string
}

// Unsubscribe releases a subscription handle.
type Unsubscribe func()

// IdentityProvider wraps the federated identity backend. OnIdentityChange is
// the sole trigger for session re-evaluation: the provider invokes the
// callback exactly once on subscribe with the current identity (or nil), and
// again on every sign-in or sign-out for the life of the process.
type IdentityProvider interface {
	RegisterWithPassword(ctx context.Context, email, password, displayName, avatarURL string) (Identity, error)
	LoginWithPassword(ctx context.Context, email, password string) (Identity, error)
	LoginWithFederatedPopup(ctx context.Context) (Identity, error)
	Logout(ctx context.Context) error
	OnIdentityChange(fn func(Identity)) Unsubscribe
}

// TokenStore persists the backend bearer token across restarts. The token is
// opaque here; Save is last-writer-wins, consistent with there being exactly
// one valid token per session at a time.
type TokenStore interface {
	Save(token string) error
	Read() (string, bool)
	Clear() error
}

// TokenExchanger mints an application bearer token for a verified identity,
// persisting it through the TokenStore.
type TokenExchanger interface {
	Exchange(ctx context.Context, email string) (string, error)
}

// RoleResolver fetches the authorization role for a verified identity.
// Implementations never fail: any error resolves to the default role.
type RoleResolver interface {
	ResolveRole(ctx context.Context, email string) Role
}

// AccountDirectory mirrors identities into the backend user directory.
type AccountDirectory interface {
	RegisterAccount(ctx context.Context, account DirectoryAccount) error
}

// SessionReader exposes the current session snapshot to route guards.
type SessionReader interface {
	Current() Session
}

// SessionAuthenticator holds the session-mutating operations the HTTP
// controller delegates to.
type SessionAuthenticator interface {
	Register(ctx context.Context, payload RegisterPayload) (Identity, error)
	Login(ctx context.Context, email, password string) (Identity, error)
	LoginWithFederatedPopup(ctx context.Context) (Identity, error)
	Logout(ctx context.Context) error
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetListenAddr() string
	GetTokenStorePath() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

// DefaultLogger returns the stdout fallback logger used when none is set.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

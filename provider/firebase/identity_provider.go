package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	auth "github.com/mahirsiam2004/Lumora-Client"
)

const (
	// DefaultEndpoint is the public identity toolkit REST endpoint.
	DefaultEndpoint = "https://identitytoolkit.googleapis.com/v1"

	// IdentifierProviderFirebase is the provider name used for identifiers.
	IdentifierProviderFirebase = "firebase"
)

// Broker runs an interactive federated sign-in flow and returns the verified
// identity. Cancellation surfaces as auth.ErrPopupDismissed.
type Broker interface {
	Authenticate(ctx context.Context) (*FirebaseIdentity, error)
}

// IdentityProviderConfig configures the Firebase identity provider.
type IdentityProviderConfig struct {
	// APIKey is the web API key of the Firebase project.
	APIKey string

	// Endpoint overrides the identity toolkit base URL (emulator, tests).
	Endpoint string

	// HTTPClient is an optional custom client.
	HTTPClient *http.Client

	// Broker handles interactive federated sign-in. Optional; without it
	// LoginWithFederatedPopup fails.
	Broker Broker

	// Logger is optional.
	Logger auth.Logger
}

// IdentityProvider implements auth.IdentityProvider against the Firebase
// identity toolkit REST API. It also owns the identity-change listener
// registry: every listener is invoked once on subscribe with the current
// identity, and again on each sign-in or sign-out.
type IdentityProvider struct {
	config   IdentityProviderConfig
	endpoint string
	http     *http.Client
	broker   Broker
	logger   auth.Logger

	mu        sync.Mutex
	current   *FirebaseIdentity
	listeners map[uint64]func(auth.Identity)
	nextID    uint64
}

var _ auth.IdentityProvider = (*IdentityProvider)(nil)

// NewIdentityProvider creates a Firebase-backed identity provider.
func NewIdentityProvider(cfg IdentityProviderConfig) (*IdentityProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("firebase: API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = auth.DefaultLogger()
	}

	return &IdentityProvider{
		config:    cfg,
		endpoint:  strings.TrimRight(endpoint, "/"),
		http:      client,
		broker:    cfg.Broker,
		logger:    logger,
		listeners: map[uint64]func(auth.Identity){},
	}, nil
}

// RegisterWithPassword creates the account, then attaches profile metadata.
// A profile attach failure is logged but does not undo the created account;
// the identity-change listeners already fired by then.
func (p *IdentityProvider) RegisterWithPassword(ctx context.Context, email, password, displayName, avatarURL string) (auth.Identity, error) {
	var res authResponse
	if err := p.post(ctx, "signUp", signUpRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &res); err != nil {
		return nil, err
	}

	identity := &FirebaseIdentity{
		key:         res.LocalID,
		email:       res.Email,
		displayName: displayName,
		avatarURL:   avatarURL,
		idToken:     res.IDToken,
	}

	p.setCurrent(identity)

	if displayName != "" || avatarURL != "" {
		var updated authResponse
		if err := p.post(ctx, "update", updateRequest{
			IDToken:           res.IDToken,
			DisplayName:       displayName,
			PhotoURL:          avatarURL,
			ReturnSecureToken: true,
		}, &updated); err != nil {
			p.logger.Warn("profile attach failed after sign-up", "email", email, "error", err)
		}
	}

	return identity, nil
}

// LoginWithPassword verifies credentials at the identity backend.
func (p *IdentityProvider) LoginWithPassword(ctx context.Context, email, password string) (auth.Identity, error) {
	var res authResponse
	if err := p.post(ctx, "signInWithPassword", signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &res); err != nil {
		return nil, err
	}

	identity := &FirebaseIdentity{
		key:         res.LocalID,
		email:       res.Email,
		displayName: res.DisplayName,
		avatarURL:   res.PhotoURL,
		idToken:     res.IDToken,
	}

	p.setCurrent(identity)

	return identity, nil
}

// LoginWithFederatedPopup delegates to the configured broker.
func (p *IdentityProvider) LoginWithFederatedPopup(ctx context.Context) (auth.Identity, error) {
	if p.broker == nil {
		return nil, errors.New("no federated sign-in broker configured", errors.CategoryOperation)
	}

	identity, err := p.broker.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	p.setCurrent(identity)

	return identity, nil
}

// Logout clears the local identity. There is no server session to tear down,
// so sign-out always succeeds and listeners fire synchronously.
func (p *IdentityProvider) Logout(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

// OnIdentityChange registers a listener. It fires once immediately with the
// current identity (nil while signed out), then on every change until the
// returned handle is called.
func (p *IdentityProvider) OnIdentityChange(fn func(auth.Identity)) auth.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(asIdentity(current))

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *IdentityProvider) setCurrent(identity *FirebaseIdentity) {
	p.mu.Lock()
	p.current = identity
	listeners := make([]func(auth.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	out := asIdentity(identity)
	for _, fn := range listeners {
		fn(out)
	}
}

// asIdentity avoids handing listeners a non-nil interface wrapping a nil
// pointer.
func asIdentity(identity *FirebaseIdentity) auth.Identity {
	if identity == nil {
		return nil
	}
	return identity
}

type signUpRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type updateRequest struct {
	IDToken           string `json:"idToken"`
	DisplayName       string `json:"displayName,omitempty"`
	PhotoURL          string `json:"photoUrl,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type authResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	IDToken     string `json:"idToken"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *IdentityProvider) post(ctx context.Context, action string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "firebase: failed to encode request")
	}

	url := fmt.Sprintf("%s/accounts:%s?key=%s", p.endpoint, action, p.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "firebase: failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "firebase: identity backend unreachable")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "firebase: failed to read response")
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr apiErrorResponse
		_ = json.Unmarshal(raw, &apiErr)
		return mapAPIError(apiErr.Error.Message, res.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "firebase: failed to decode response")
		}
	}

	return nil
}

// mapAPIError translates identity toolkit error codes into the session error
// taxonomy. Messages can carry suffixes like "WEAK_PASSWORD : ..." so codes
// match on prefix.
func mapAPIError(message string, status int) error {
	switch {
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return auth.ErrDuplicateAccount
	case strings.HasPrefix(message, "WEAK_PASSWORD"):
		return auth.ErrWeakPassword
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(message, "USER_DISABLED"):
		return auth.ErrInvalidCredentials
	default:
		return errors.New("firebase: identity backend error", errors.CategoryOperation).
			WithMetadata(map[string]any{
				"message": message,
				"status":  status,
			})
	}
}

// FirebaseIdentity represents a Firebase user implementing auth.Identity.
type FirebaseIdentity struct {
	key         string
	email       string
	displayName string
	avatarURL   string
	idToken     string
}

// NewFirebaseIdentity builds an identity from raw attributes. Used by the
// federated broker and by tests.
func NewFirebaseIdentity(key, email, displayName, avatarURL string) *FirebaseIdentity {
	return &FirebaseIdentity{
		key:         key,
		email:       email,
		displayName: displayName,
		avatarURL:   avatarURL,
	}
}

func (u *FirebaseIdentity) Key() string         { return u.key }
func (u *FirebaseIdentity) Email() string       { return u.email }
func (u *FirebaseIdentity) DisplayName() string { return u.displayName }
func (u *FirebaseIdentity) AvatarURL() string   { return u.avatarURL }

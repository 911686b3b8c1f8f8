package firebase

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	auth "github.com/mahirsiam2004/Lumora-Client"
	"golang.org/x/oauth2"
)

// FederatedBrokerConfig configures the interactive federated sign-in flow.
type FederatedBrokerConfig struct {
	// Issuer is the OIDC issuer, e.g. https://accounts.google.com.
	Issuer string

	// ClientID is the OAuth client ID.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// Scopes beyond "openid" (default: ["profile", "email"]).
	Scopes []string

	// OpenURL is invoked with the consent URL. Defaults to printing it for
	// the user to open manually.
	OpenURL func(url string) error

	// Logger is optional.
	Logger auth.Logger
}

func (c FederatedBrokerConfig) scopes() []string {
	scopes := []string{oidc.ScopeOpenID}
	if len(c.Scopes) > 0 {
		scopes = append(scopes, c.Scopes...)
	} else {
		scopes = append(scopes, "profile", "email")
	}
	return scopes
}

// FederatedBroker implements Broker with an authorization-code flow against
// a loopback redirect. The flow opens the provider's consent page, waits for
// the redirect on a local listener, exchanges the code, and verifies the ID
// token nonce before mapping claims onto an identity. Closing the consent
// page or cancelling the context surfaces as auth.ErrPopupDismissed.
type FederatedBroker struct {
	config       FederatedBrokerConfig
	verifier     *oidc.IDTokenVerifier
	oauth2Config oauth2.Config
	logger       auth.Logger
	openURL      func(url string) error
}

var _ Broker = (*FederatedBroker)(nil)

// NewFederatedBroker creates a broker using OIDC discovery against the
// configured issuer.
func NewFederatedBroker(ctx context.Context, cfg FederatedBrokerConfig) (*FederatedBroker, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("federated: client ID is required")
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "https://accounts.google.com"
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("federated: oidc discovery for %s: %w", issuer, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = auth.DefaultLogger()
	}

	openURL := cfg.OpenURL
	if openURL == nil {
		openURL = func(url string) error {
			fmt.Println("Open the following URL to sign in:")
			fmt.Println(url)
			return nil
		}
	}

	return &FederatedBroker{
		config: cfg,
		verifier: provider.Verifier(&oidc.Config{
			ClientID: cfg.ClientID,
		}),
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       cfg.scopes(),
		},
		logger:  logger,
		openURL: openURL,
	}, nil
}

type callbackResult struct {
	code string
	err  error
}

// Authenticate runs the interactive flow end to end.
func (b *FederatedBroker) Authenticate(ctx context.Context) (*FirebaseIdentity, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, auth.ErrPopupDismissed.Category, auth.ErrPopupDismissed.Message).
			WithTextCode(auth.ErrPopupDismissed.TextCode)
	}
	defer listener.Close()

	redirectURI := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	state := uuid.NewString()
	nonce := uuid.NewString()

	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("federated: state mismatch")}
			return
		}

		if errCode := query.Get("error"); errCode != "" {
			http.Error(w, "sign-in was cancelled", http.StatusBadRequest)
			results <- callbackResult{err: auth.ErrPopupDismissed}
			return
		}

		fmt.Fprintln(w, "Signed in. You can close this window.")
		results <- callbackResult{code: query.Get("code")}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = server.Serve(listener)
	}()
	defer server.Close()

	cfg := b.oauth2Config
	cfg.RedirectURL = redirectURI

	consentURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("nonce", nonce),
	)

	if err := b.openURL(consentURL); err != nil {
		return nil, errors.Wrap(err, auth.ErrPopupDismissed.Category, "failed to open the consent page").
			WithTextCode(auth.ErrPopupDismissed.TextCode)
	}

	var result callbackResult
	select {
	case <-ctx.Done():
		return nil, auth.ErrPopupDismissed
	case result = <-results:
	}

	if result.err != nil {
		return nil, result.err
	}

	token, err := cfg.Exchange(ctx, result.code)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "federated: code exchange failed").
			WithCode(errors.CodeUnauthorized)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("federated: no id_token in code exchange response", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	idToken, err := b.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "federated: invalid ID token").
			WithCode(errors.CodeUnauthorized)
	}

	if subtle.ConstantTimeCompare([]byte(nonce), []byte(idToken.Nonce)) != 1 {
		return nil, errors.New("federated: ID token nonce mismatch", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "federated: failed to extract claims")
	}

	if claims.Email == "" {
		return nil, errors.New("federated: ID token missing email claim", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	b.logger.Debug("federated sign-in verified", "email", claims.Email)

	return NewFirebaseIdentity(idToken.Subject, claims.Email, claims.Name, claims.Picture), nil
}

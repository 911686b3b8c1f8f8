package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// SessionController orchestrates the identity provider, token exchange, and
// role resolution into one authoritative session state machine:
//
//	INITIALIZING -> AUTHENTICATED(role) | ANONYMOUS
//
// Both settled states re-enter loading whenever a new identity-change event
// arrives. Exactly one controller exists per running application; construct
// it at startup, call Start once, and Close on shutdown to dispose of the
// identity-change subscription.
type SessionController struct {
	provider  IdentityProvider
	exchanger TokenExchanger
	roles     RoleResolver
	directory AccountDirectory
	tokens    TokenStore
	logger    Logger
	sink      ActivitySink
	now       func() time.Time
	debug     bool

	mu          sync.Mutex
	seq         uint64
	identity    Identity
	role        Role
	loading     bool
	subscribers map[uint64]func(Session)
	nextSubID   uint64
	unsubscribe Unsubscribe
	ctx         context.Context
}

var (
	_ SessionReader        = (*SessionController)(nil)
	_ SessionAuthenticator = (*SessionController)(nil)
)

// ControllerOption customizes the session controller.
type ControllerOption func(*SessionController)

// WithControllerLogger overrides the logger.
func WithControllerLogger(l Logger) ControllerOption {
	return func(c *SessionController) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithControllerActivitySink sets the ActivitySink notified on session events.
func WithControllerActivitySink(sink ActivitySink) ControllerOption {
	return func(c *SessionController) {
		c.sink = normalizeActivitySink(sink)
	}
}

// WithControllerClock injects a custom clock (useful for tests).
func WithControllerClock(clock func() time.Time) ControllerOption {
	return func(c *SessionController) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithControllerDebug enables payload dumps on registration and login.
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *SessionController) {
		c.debug = debug
	}
}

// NewSessionController wires the collaborators together. The controller does
// not subscribe to identity changes until Start is called.
func NewSessionController(
	provider IdentityProvider,
	exchanger TokenExchanger,
	roles RoleResolver,
	directory AccountDirectory,
	tokens TokenStore,
	opts ...ControllerOption,
) *SessionController {
	c := &SessionController{
		provider:    provider,
		exchanger:   exchanger,
		roles:       roles,
		directory:   directory,
		tokens:      tokens,
		logger:      defLogger{},
		sink:        noopActivitySink{},
		now:         time.Now,
		loading:     true,
		subscribers: map[uint64]func(Session){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Start subscribes to identity changes. The provider fires the callback once
// immediately with the current identity, which resolves the INITIALIZING
// phase. ctx bounds the transition sequences spawned by future events.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return errors.New("session controller already started", errors.CategoryOperation)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.mu.Unlock()

	if token, ok := c.tokens.Read(); ok {
		if claims, err := InspectBearerToken(token); err != nil {
			c.logger.Warn("cached token is not inspectable", "error", err)
		} else if claims.ExpiredAt(c.now()) {
			c.logger.Info("cached token already expired, exchange will replace it")
		}
	}

	unsub := c.provider.OnIdentityChange(c.handleIdentityChange)

	c.mu.Lock()
	c.unsubscribe = unsub
	c.mu.Unlock()

	return nil
}

// Close disposes of the identity-change subscription. The session state is
// left as-is; the process is expected to be unloading.
func (c *SessionController) Close() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Current returns an immutable snapshot of the session state.
func (c *SessionController) Current() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CurrentIdentity returns the identity, or nil while anonymous.
func (c *SessionController) CurrentIdentity() Identity {
	return c.Current().Identity
}

// CurrentRole returns the resolved role; empty while anonymous.
func (c *SessionController) CurrentRole() Role {
	return c.Current().Role
}

// IsLoading reports whether a transition sequence is still in flight.
func (c *SessionController) IsLoading() bool {
	return c.Current().Loading
}

// OnChange registers an observer invoked with a snapshot after every state
// change, and once immediately with the current state. The returned handle
// removes the observer.
func (c *SessionController) OnChange(fn func(Session)) Unsubscribe {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	snap := c.snapshotLocked()
	c.mu.Unlock()

	fn(snap)

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// handleIdentityChange is the single code path into AUTHENTICATED and
// ANONYMOUS, regardless of which login method produced the event. Each
// invocation claims a sequence number; a sequence only commits if no later
// sequence claimed the machine while its network calls were in flight, which
// gives last-writer-wins without cancelling anything.
func (c *SessionController) handleIdentityChange(identity Identity) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.loading = true
	if identity == nil {
		c.identity = nil
		c.role = ""
	} else {
		// set immediately so identity-dependent UI renders without waiting
		c.identity = identity
	}
	snap := c.snapshotLocked()
	subs := c.subscribersLocked()
	ctx := c.ctx
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	notify(subs, snap)

	if identity == nil {
		if err := c.tokens.Clear(); err != nil {
			c.logger.Error("failed to clear token on sign-out event", "error", err)
		}
		c.emitEvent(ctx, ActivityEventSignOut, "", "", nil)
		c.commit(seq, "")
		return
	}

	email := identity.Email()

	if _, err := c.exchanger.Exchange(ctx, email); err != nil {
		// exchange failure must not block role resolution or leave the
		// session stuck in loading; resolution tolerates a missing token
		c.logger.Error("token exchange failed", "email", email, "error", err)
		c.emitEvent(ctx, ActivityEventExchangeFailure, email, "", map[string]any{"error": err.Error()})
	}

	role := c.roles.ResolveRole(ctx, email)

	if c.commit(seq, role) {
		c.emitEvent(ctx, ActivityEventSessionEstablished, email, role, nil)
	}
}

// commit finalizes a transition sequence. It reports false when a later
// sequence already claimed the machine, in which case the writes are
// discarded so stale results never overwrite newer state.
func (c *SessionController) commit(seq uint64, role Role) bool {
	c.mu.Lock()
	if c.seq != seq {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded transition", "seq", seq)
		return false
	}

	if c.identity != nil {
		c.role = role
	}
	c.loading = false
	snap := c.snapshotLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
	return true
}

// RegisterPayload carries the registration form fields.
type RegisterPayload struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	DisplayName string `form:"display_name" json:"display_name"`
	AvatarURL   string `form:"avatar_url" json:"avatar_url"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.AvatarURL, is.URL),
	)
}

// Register creates a federated-identity account with profile metadata, then
// mirrors it into the backend user directory. A directory failure is surfaced
// to the caller but does not roll back the created identity; token exchange
// and role resolution still run via the identity-change subscription.
func (c *SessionController) Register(ctx context.Context, payload RegisterPayload) (Identity, error) {
	if err := payload.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid registration payload")
	}

	if c.debug {
		fmt.Println("======= SESSION REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	identity, err := c.provider.RegisterWithPassword(ctx, payload.Email, payload.Password, payload.DisplayName, payload.AvatarURL)
	if err != nil {
		c.logger.Error("registration failed", "email", payload.Email, "error", err)
		return nil, err
	}

	c.emitEvent(ctx, ActivityEventRegistration, identity.Email(), RoleUser, nil)

	if err := c.directory.RegisterAccount(ctx, DirectoryAccount{
		Email:       identity.Email(),
		DisplayName: payload.DisplayName,
		PhotoURL:    payload.AvatarURL,
		Role:        RoleUser,
	}); err != nil {
		return identity, err
	}

	return identity, nil
}

// Login delegates to the identity provider. Token exchange and role
// resolution happen exclusively via the OnIdentityChange subscription, so
// every login method reaches AUTHENTICATED through one code path. A failed
// login leaves the session untouched.
func (c *SessionController) Login(ctx context.Context, email, password string) (Identity, error) {
	identity, err := c.provider.LoginWithPassword(ctx, email, password)
	if err != nil {
		c.emitEvent(ctx, ActivityEventSignInFailure, email, "", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.emitEvent(ctx, ActivityEventSignInSuccess, identity.Email(), "", map[string]any{"method": "password"})
	return identity, nil
}

// LoginWithFederatedPopup runs the interactive broker flow. On success the
// directory record is re-posted best-effort; the backend upserts, and a
// directory hiccup must not fail a completed sign-in.
func (c *SessionController) LoginWithFederatedPopup(ctx context.Context) (Identity, error) {
	identity, err := c.provider.LoginWithFederatedPopup(ctx)
	if err != nil {
		c.emitEvent(ctx, ActivityEventSignInFailure, "", "", map[string]any{"method": "federated", "error": err.Error()})
		return nil, err
	}

	if err := c.directory.RegisterAccount(ctx, DirectoryAccount{
		Email:       identity.Email(),
		DisplayName: identity.DisplayName(),
		PhotoURL:    identity.AvatarURL(),
		Role:        RoleUser,
	}); err != nil {
		c.logger.Warn("directory upsert after federated login failed", "email", identity.Email(), "error", err)
	}

	c.emitEvent(ctx, ActivityEventSignInSuccess, identity.Email(), "", map[string]any{"method": "federated"})
	return identity, nil
}

// Logout clears the local token before the provider's own sign-out resolves,
// so no in-flight request races with a token belonging to the just
// logged-out principal. State transitions to ANONYMOUS via the subscription.
func (c *SessionController) Logout(ctx context.Context) error {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Error("failed to clear token on logout", "error", err)
	}

	return c.provider.Logout(ctx)
}

func (c *SessionController) snapshotLocked() Session {
	return Session{
		Identity: c.identity,
		Role:     c.role,
		Loading:  c.loading,
	}
}

func (c *SessionController) subscribersLocked() []func(Session) {
	subs := make([]func(Session), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Session), snap Session) {
	for _, fn := range subs {
		if fn != nil {
			fn(snap)
		}
	}
}

func (c *SessionController) emitEvent(ctx context.Context, eventType ActivityEventType, email string, role Role, metadata map[string]any) {
	event := ActivityEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Email:     email,
		Role:      role,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}

	if err := normalizeActivitySink(c.sink).Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

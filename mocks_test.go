package auth_test

import (
	"context"
	"sync"

	auth "github.com/mahirsiam2004/Lumora-Client"
	"github.com/stretchr/testify/mock"
)

// testIdentity implements auth.Identity
type testIdentity struct {
	key         string
	email       string
	displayName string
	avatarURL   string
}

func newTestIdentity(email string) *testIdentity {
	return &testIdentity{
		key:         "uid-" + email,
		email:       email,
		displayName: "Test User",
	}
}

func (i *testIdentity) Key() string         { return i.key }
func (i *testIdentity) Email() string       { return i.email }
func (i *testIdentity) DisplayName() string { return i.displayName }
func (i *testIdentity) AvatarURL() string   { return i.avatarURL }

// fakeIdentityProvider is a controllable in-memory auth.IdentityProvider.
// Successful operations set the current identity and fire listeners
// synchronously, the way the real backend adapter does. Tests can also call
// emit directly to simulate out-of-band identity events.
type fakeIdentityProvider struct {
	mu        sync.Mutex
	listeners map[int]func(auth.Identity)
	nextID    int
	current   auth.Identity

	registerErr error
	loginErr    error
	popupErr    error
	logoutCalls int
	onLogout    func()
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{
		listeners: map[int]func(auth.Identity){},
	}
}

func (p *fakeIdentityProvider) emit(identity auth.Identity) {
	p.mu.Lock()
	p.current = identity
	listeners := make([]func(auth.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(identity)
	}
}

func (p *fakeIdentityProvider) RegisterWithPassword(ctx context.Context, email, password, displayName, avatarURL string) (auth.Identity, error) {
	if p.registerErr != nil {
		return nil, p.registerErr
	}
	identity := &testIdentity{
		key:         "uid-" + email,
		email:       email,
		displayName: displayName,
		avatarURL:   avatarURL,
	}
	p.emit(identity)
	return identity, nil
}

func (p *fakeIdentityProvider) LoginWithPassword(ctx context.Context, email, password string) (auth.Identity, error) {
	if p.loginErr != nil {
		return nil, p.loginErr
	}
	identity := newTestIdentity(email)
	p.emit(identity)
	return identity, nil
}

func (p *fakeIdentityProvider) LoginWithFederatedPopup(ctx context.Context) (auth.Identity, error) {
	if p.popupErr != nil {
		return nil, p.popupErr
	}
	identity := newTestIdentity("popup@example.com")
	p.emit(identity)
	return identity, nil
}

func (p *fakeIdentityProvider) Logout(ctx context.Context) error {
	p.mu.Lock()
	p.logoutCalls++
	hook := p.onLogout
	p.mu.Unlock()

	if hook != nil {
		hook()
	}

	p.emit(nil)
	return nil
}

func (p *fakeIdentityProvider) OnIdentityChange(fn func(auth.Identity)) auth.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// exchangerFunc adapts a function to auth.TokenExchanger
type exchangerFunc func(ctx context.Context, email string) (string, error)

func (f exchangerFunc) Exchange(ctx context.Context, email string) (string, error) {
	return f(ctx, email)
}

// resolverFunc adapts a function to auth.RoleResolver
type resolverFunc func(ctx context.Context, email string) auth.Role

func (f resolverFunc) ResolveRole(ctx context.Context, email string) auth.Role {
	return f(ctx, email)
}

func staticExchanger(token string) exchangerFunc {
	return func(context.Context, string) (string, error) {
		return token, nil
	}
}

func staticResolver(role auth.Role) resolverFunc {
	return func(context.Context, string) auth.Role {
		return role
	}
}

// MockDirectory implements auth.AccountDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) RegisterAccount(ctx context.Context, account auth.DirectoryAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// recordingSink collects activity events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byType(eventType auth.ActivityEventType) []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockSessionAuthenticator implements auth.SessionAuthenticator
type MockSessionAuthenticator struct {
	mock.Mock
}

func (m *MockSessionAuthenticator) Register(ctx context.Context, payload auth.RegisterPayload) (auth.Identity, error) {
	args := m.Called(ctx, payload)
	identity, _ := args.Get(0).(auth.Identity)
	return identity, args.Error(1)
}

func (m *MockSessionAuthenticator) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	args := m.Called(ctx, email, password)
	identity, _ := args.Get(0).(auth.Identity)
	return identity, args.Error(1)
}

func (m *MockSessionAuthenticator) LoginWithFederatedPopup(ctx context.Context) (auth.Identity, error) {
	args := m.Called(ctx)
	identity, _ := args.Get(0).(auth.Identity)
	return identity, args.Error(1)
}

func (m *MockSessionAuthenticator) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// staticSession implements auth.SessionReader with a fixed snapshot.
type staticSession struct {
	session auth.Session
}

func (s staticSession) Current() auth.Session {
	return s.session
}

// testConfig implements auth.Config
type testConfig struct{}

func (testConfig) GetBaseURL() string              { return "http://localhost:5000" }
func (testConfig) GetListenAddr() string           { return ":0" }
func (testConfig) GetTokenStorePath() string       { return "" }
func (testConfig) GetRejectedRouteKey() string     { return "rejected_route" }
func (testConfig) GetRejectedRouteDefault() string { return "/dashboard" }

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	auth "github.com/mahirsiam2004/Lumora-Client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T, provider *fakeIdentityProvider, opts ...any) (*auth.SessionController, *auth.MemoryTokenStore, *MockDirectory, *recordingSink) {
	t.Helper()

	tokens := auth.NewMemoryTokenStore()
	directory := &MockDirectory{}
	sink := &recordingSink{}

	exchanger := auth.TokenExchanger(staticExchanger("minted-token"))
	resolver := auth.RoleResolver(staticResolver(auth.RoleUser))

	for _, opt := range opts {
		switch v := opt.(type) {
		case exchangerFunc:
			exchanger = v
		case resolverFunc:
			resolver = v
		}
	}

	controller := auth.NewSessionController(
		provider,
		exchanger,
		resolver,
		directory,
		tokens,
		auth.WithControllerActivitySink(sink),
	)

	return controller, tokens, directory, sink
}

func TestSessionStartsInLoadingPhase(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, _, _ := newController(t, provider)

	session := controller.Current()
	assert.True(t, session.Loading)
	assert.Equal(t, auth.PhaseLoading, session.Phase())
	assert.False(t, session.Authenticated())
}

func TestStartSettlesAnonymousWhenNoIdentity(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, tokens, _, _ := newController(t, provider)
	require.NoError(t, tokens.Save("stale-token"))

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	session := controller.Current()
	assert.False(t, session.Loading)
	assert.False(t, session.Authenticated())
	assert.Equal(t, auth.Role(""), session.Role)

	// the sign-out path of the subscription clears the cached token
	_, ok := tokens.Read()
	assert.False(t, ok)
}

func TestStartTwiceFails(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, _, _ := newController(t, provider)

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	assert.Error(t, controller.Start(context.Background()))
}

func TestLoginEstablishesAuthenticatedSession(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, _, sink := newController(t, provider, staticResolver(auth.RoleAdmin))

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	identity, err := controller.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, identity)

	session := controller.Current()
	assert.False(t, session.Loading)
	assert.True(t, session.Authenticated())
	assert.Equal(t, "admin@example.com", session.Identity.Email())
	assert.Equal(t, auth.RoleAdmin, session.Role)

	require.Len(t, sink.byType(auth.ActivityEventSignInSuccess), 1)
	established := sink.byType(auth.ActivityEventSessionEstablished)
	require.Len(t, established, 1)
	assert.Equal(t, auth.RoleAdmin, established[0].Role)
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	provider := newFakeIdentityProvider()
	provider.loginErr = auth.ErrInvalidCredentials
	controller, _, _, sink := newController(t, provider)

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	_, err := controller.Login(context.Background(), "who@example.com", "nope")
	require.Error(t, err)
	assert.True(t, auth.IsAuthenticationError(err))

	session := controller.Current()
	assert.False(t, session.Authenticated())
	assert.False(t, session.Loading)
	require.Len(t, sink.byType(auth.ActivityEventSignInFailure), 1)
}

func TestExchangeRunsBeforeRoleResolution(t *testing.T) {
	provider := newFakeIdentityProvider()

	var mu sync.Mutex
	var order []string

	exchanger := exchangerFunc(func(ctx context.Context, email string) (string, error) {
		mu.Lock()
		order = append(order, "exchange")
		mu.Unlock()
		return "minted", nil
	})
	resolver := resolverFunc(func(ctx context.Context, email string) auth.Role {
		mu.Lock()
		order = append(order, "resolve")
		mu.Unlock()
		return auth.RoleUser
	})

	controller, _, _, _ := newController(t, provider, exchanger, resolver)
	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	_, err := controller.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"exchange", "resolve"}, order)
}

func TestExchangeRunsEvenWithCachedToken(t *testing.T) {
	provider := newFakeIdentityProvider()

	calls := 0
	exchanger := exchangerFunc(func(ctx context.Context, email string) (string, error) {
		calls++
		return "fresh-token", nil
	})

	controller, tokens, _, _ := newController(t, provider, exchanger)
	require.NoError(t, tokens.Save("cached-token"))

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	_, err := controller.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestExchangeFailureStillResolvesRole(t *testing.T) {
	provider := newFakeIdentityProvider()

	exchanger := exchangerFunc(func(ctx context.Context, email string) (string, error) {
		return "", auth.ErrExchangeFailed
	})

	controller, _, _, sink := newController(t, provider, exchanger, staticResolver(auth.RoleDecorator))
	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	_, err := controller.Login(context.Background(), "deco@example.com", "pw")
	require.NoError(t, err)

	session := controller.Current()
	assert.False(t, session.Loading, "exchange failure must not leave the session loading")
	assert.True(t, session.Authenticated())
	assert.Equal(t, auth.RoleDecorator, session.Role)

	require.Len(t, sink.byType(auth.ActivityEventExchangeFailure), 1)
}

func TestLogoutClearsTokenBeforeProviderSignOut(t *testing.T) {
	provider := newFakeIdentityProvider()

	var mu sync.Mutex
	var order []string

	controller, tokens, _, sink := newController(t, provider)
	provider.onLogout = func() {
		mu.Lock()
		_, ok := tokens.Read()
		order = append(order, "provider.logout")
		mu.Unlock()
		assert.False(t, ok, "token must already be cleared when the provider signs out")
	}

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	_, err := controller.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, tokens.Save("live-token"))

	require.NoError(t, controller.Logout(context.Background()))

	session := controller.Current()
	assert.False(t, session.Authenticated())
	assert.False(t, session.Loading)
	assert.Equal(t, auth.Role(""), session.Role)

	mu.Lock()
	assert.Equal(t, []string{"provider.logout"}, order)
	mu.Unlock()

	require.Len(t, sink.byType(auth.ActivityEventSignOut), 1)
}

func TestStaleTransitionIsDiscarded(t *testing.T) {
	provider := newFakeIdentityProvider()

	exchangeStarted := make(chan string, 2)
	releaseFirst := make(chan struct{})

	exchanger := exchangerFunc(func(ctx context.Context, email string) (string, error) {
		exchangeStarted <- email
		if email == "first@example.com" {
			<-releaseFirst
		}
		return "token-" + email, nil
	})
	resolver := resolverFunc(func(ctx context.Context, email string) auth.Role {
		if email == "first@example.com" {
			return auth.RoleAdmin
		}
		return auth.RoleUser
	})

	controller, _, _, _ := newController(t, provider, exchanger, resolver)
	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	done := make(chan struct{})
	go func() {
		provider.emit(newTestIdentity("first@example.com"))
		close(done)
	}()

	// wait until the first sequence claimed the machine and is blocked
	require.Equal(t, "first@example.com", <-exchangeStarted)

	// a newer event supersedes it and settles
	provider.emit(newTestIdentity("second@example.com"))
	require.Equal(t, "second@example.com", <-exchangeStarted)

	session := controller.Current()
	require.False(t, session.Loading)
	require.Equal(t, "second@example.com", session.Identity.Email())
	require.Equal(t, auth.RoleUser, session.Role)

	// let the stale sequence finish; its result must be dropped
	close(releaseFirst)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stale transition never finished")
	}

	session = controller.Current()
	assert.Equal(t, "second@example.com", session.Identity.Email())
	assert.Equal(t, auth.RoleUser, session.Role)
	assert.False(t, session.Loading)
}

func TestRegisterWritesDirectoryRecord(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, directory, sink := newController(t, provider)

	directory.On("RegisterAccount", mock.Anything, auth.DirectoryAccount{
		Email:       "new@example.com",
		DisplayName: "New User",
		PhotoURL:    "https://cdn.example.com/p.png",
		Role:        auth.RoleUser,
	}).Return(nil)

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	identity, err := controller.Register(context.Background(), auth.RegisterPayload{
		Email:       "new@example.com",
		Password:    "longenough",
		DisplayName: "New User",
		AvatarURL:   "https://cdn.example.com/p.png",
	})
	require.NoError(t, err)
	require.NotNil(t, identity)

	directory.AssertExpectations(t)
	require.Len(t, sink.byType(auth.ActivityEventRegistration), 1)
}

func TestRegisterInvalidPayloadRejected(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, directory, _ := newController(t, provider)

	_, err := controller.Register(context.Background(), auth.RegisterPayload{
		Email:    "not-an-email",
		Password: "pw",
	})
	require.Error(t, err)
	directory.AssertNotCalled(t, "RegisterAccount", mock.Anything, mock.Anything)
}

func TestRegisterDuplicateAccountSurfaced(t *testing.T) {
	provider := newFakeIdentityProvider()
	provider.registerErr = auth.ErrDuplicateAccount
	controller, _, directory, _ := newController(t, provider)

	_, err := controller.Register(context.Background(), auth.RegisterPayload{
		Email:       "dup@example.com",
		Password:    "longenough",
		DisplayName: "Dup",
	})
	require.Error(t, err)
	assert.True(t, auth.IsDuplicateAccountError(err))
	assert.True(t, auth.IsRegistrationError(err))
	directory.AssertNotCalled(t, "RegisterAccount", mock.Anything, mock.Anything)
}

func TestRegisterDirectoryFailureSurfacedWithoutRollback(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, directory, _ := newController(t, provider)

	directory.On("RegisterAccount", mock.Anything, mock.Anything).
		Return(errors.New("directory down"))

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	identity, err := controller.Register(context.Background(), auth.RegisterPayload{
		Email:       "new@example.com",
		Password:    "longenough",
		DisplayName: "New User",
	})
	require.Error(t, err)
	require.NotNil(t, identity, "the created identity is not rolled back")

	// the identity event still established a session
	session := controller.Current()
	assert.True(t, session.Authenticated())
}

func TestFederatedPopupDismissed(t *testing.T) {
	provider := newFakeIdentityProvider()
	provider.popupErr = auth.ErrPopupDismissed
	controller, _, _, sink := newController(t, provider)

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	_, err := controller.LoginWithFederatedPopup(context.Background())
	require.Error(t, err)
	assert.True(t, auth.IsPopupDismissedError(err))

	session := controller.Current()
	assert.False(t, session.Authenticated())
	assert.False(t, session.Loading)
	require.Len(t, sink.byType(auth.ActivityEventSignInFailure), 1)
}

func TestFederatedLoginUpsertsDirectory(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, directory, _ := newController(t, provider)

	directory.On("RegisterAccount", mock.Anything, mock.MatchedBy(func(account auth.DirectoryAccount) bool {
		return account.Email == "popup@example.com" && account.Role == auth.RoleUser
	})).Return(nil)

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	identity, err := controller.LoginWithFederatedPopup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "popup@example.com", identity.Email())

	directory.AssertExpectations(t)
}

func TestFederatedDirectoryFailureDoesNotFailLogin(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, directory, _ := newController(t, provider)

	directory.On("RegisterAccount", mock.Anything, mock.Anything).
		Return(errors.New("directory down"))

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	_, err := controller.LoginWithFederatedPopup(context.Background())
	require.NoError(t, err, "a completed federated sign-in is not failed by a directory hiccup")
}

func TestOnChangeFiresImmediatelyAndOnTransitions(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, _, _ := newController(t, provider)

	var mu sync.Mutex
	var snapshots []auth.Session

	unsubscribe := controller.OnChange(func(s auth.Session) {
		mu.Lock()
		snapshots = append(snapshots, s)
		mu.Unlock()
	})

	mu.Lock()
	require.Len(t, snapshots, 1, "observer fires once on subscribe")
	assert.True(t, snapshots[0].Loading)
	mu.Unlock()

	require.NoError(t, controller.Start(context.Background()))
	defer controller.Close()

	mu.Lock()
	settled := snapshots[len(snapshots)-1]
	count := len(snapshots)
	mu.Unlock()
	assert.False(t, settled.Loading)

	unsubscribe()

	_, err := controller.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, snapshots, count, "no notifications after unsubscribe")
	mu.Unlock()
}

func TestCloseDisposesSubscription(t *testing.T) {
	provider := newFakeIdentityProvider()
	controller, _, _, _ := newController(t, provider)

	require.NoError(t, controller.Start(context.Background()))
	controller.Close()

	settled := controller.Current()

	// events after Close no longer reach the controller
	provider.emit(newTestIdentity("late@example.com"))
	assert.Equal(t, settled, controller.Current())
}

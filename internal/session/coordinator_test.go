package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msu-forum/client_layer/internal/gateway"
	"github.com/msu-forum/client_layer/internal/wallet"
)

const linkedWallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func testSession(username string) gateway.Session {
	return gateway.Session{
		User: gateway.UserInfo{ID: 7, Username: username, Wallet: linkedWallet},
		Characters: []gateway.Character{
			{Name: "Mage", Data: gateway.CharacterData{Level: 42, ImageURL: "https://img"}},
		},
	}
}

// fakeBackend scripts the auth API and counts calls per operation.
type fakeBackend struct {
	mu           sync.Mutex
	calls        map[string]int
	lastWallet   string
	walletExists bool

	checkAuthErr error
	loginErr     error
	registerErr  error
	logoutErr    error
	checkAuthGate chan struct{} // when set, CheckAuth blocks until closed
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int)}
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeBackend) CheckWallet(_ context.Context, w string) (gateway.WalletStatus, error) {
	f.record("check_wallet")
	f.mu.Lock()
	f.lastWallet = w
	exists := f.walletExists
	f.mu.Unlock()
	return gateway.WalletStatus{Exists: exists}, nil
}

func (f *fakeBackend) Login(_ context.Context, w string) (gateway.Session, error) {
	f.record("login")
	f.mu.Lock()
	f.lastWallet = w
	f.mu.Unlock()
	if f.loginErr != nil {
		return gateway.Session{}, f.loginErr
	}
	return testSession("alice"), nil
}

func (f *fakeBackend) Register(_ context.Context, w string) (gateway.Session, error) {
	f.record("register")
	f.mu.Lock()
	f.lastWallet = w
	f.mu.Unlock()
	if f.registerErr != nil {
		return gateway.Session{}, f.registerErr
	}
	return testSession("fresh"), nil
}

func (f *fakeBackend) Logout(_ context.Context) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeBackend) CheckAuth(_ context.Context) (gateway.Session, error) {
	f.record("check_auth")
	if f.checkAuthGate != nil {
		<-f.checkAuthGate
	}
	if f.checkAuthErr != nil {
		return gateway.Session{}, f.checkAuthErr
	}
	return testSession("alice"), nil
}

func newTestCoordinator(b Backend, s Storage) *Coordinator {
	return NewCoordinator(b, s, zerolog.Nop())
}

func TestStartWithSnapshotSkipsNetwork(t *testing.T) {
	backend := newFakeBackend()
	storage := NewMemoryStorage()
	sess := testSession("cached")
	require.NoError(t, storage.Save(&sess))

	c := newTestCoordinator(backend, storage)
	id := c.Start(context.Background())

	assert.Equal(t, StateAuthenticated, id.State)
	assert.Equal(t, "cached", id.Session.User.Username)
	assert.Equal(t, 0, backend.count("check_auth"), "snapshot is trusted without a round trip")
}

func TestStartWithoutSnapshotChecksBackend(t *testing.T) {
	backend := newFakeBackend()
	storage := NewMemoryStorage()

	c := newTestCoordinator(backend, storage)
	id := c.Start(context.Background())

	assert.Equal(t, StateAuthenticated, id.State)
	assert.Equal(t, 1, backend.count("check_auth"))

	// The write-through persisted the fresh session.
	stored, err := storage.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "alice", stored.User.Username)
}

func TestCheckAuthFailureSettlesAnonymous(t *testing.T) {
	tests := []struct {
		name          string
		failure       error
		wantAuthError string
	}{
		// A rejected session just means logged out; a dead server gets a
		// message the UI can show.
		{"unauthorized", &gateway.Error{Kind: gateway.KindUnauthorized, Status: 401}, ""},
		{"unavailable", &gateway.Error{Kind: gateway.KindUnavailable}, "server unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.checkAuthErr = tt.failure
			storage := NewMemoryStorage()
			sess := testSession("stale")
			require.NoError(t, storage.Save(&sess))
			c := newTestCoordinator(backend, storage)

			// Force the network path: clear the snapshot before starting.
			require.NoError(t, storage.Clear())
			id := c.Start(context.Background())

			assert.Equal(t, StateAnonymous, id.State)
			assert.Nil(t, id.Session)
			assert.Equal(t, tt.wantAuthError, id.AuthError)
			stored, err := storage.Load()
			require.NoError(t, err)
			assert.Nil(t, stored, "snapshot cleared on failed auth check")
		})
	}
}

func TestCheckAuthSingleFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.checkAuthGate = make(chan struct{})
	c := newTestCoordinator(backend, NewMemoryStorage())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.CheckAuth(context.Background())
	}()

	require.Eventually(t, func() bool {
		return c.Identity().State == StateChecking
	}, time.Second, time.Millisecond)

	// Overlapping check returns the in-flight state without a second call.
	id := c.CheckAuth(context.Background())
	assert.Equal(t, StateChecking, id.State)
	assert.Equal(t, 1, backend.count("check_auth"))

	close(backend.checkAuthGate)
	wg.Wait()
	assert.Equal(t, StateAuthenticated, c.Identity().State)
}

func TestCheckAuthCachedIdentityShortCircuits(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCoordinator(backend, NewMemoryStorage())
	c.CheckAuth(context.Background())
	require.Equal(t, 1, backend.count("check_auth"))

	id := c.CheckAuth(context.Background())
	assert.Equal(t, StateAuthenticated, id.State)
	assert.Equal(t, 1, backend.count("check_auth"), "cached identity returned immediately")
}

func TestLoginSuccess(t *testing.T) {
	backend := newFakeBackend()
	storage := NewMemoryStorage()
	c := newTestCoordinator(backend, storage)

	id, err := c.Login(context.Background(), linkedWallet)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, id.State)
	assert.Empty(t, id.AuthError)

	stored, err := storage.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestLoginFailureKeepsPriorState(t *testing.T) {
	backend := newFakeBackend()
	backend.loginErr = &gateway.Error{Kind: gateway.KindServer, Status: 500}
	c := newTestCoordinator(backend, NewMemoryStorage())
	c.CheckAuth(context.Background())
	prior := c.Identity().State

	_, err := c.Login(context.Background(), linkedWallet)
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindServer))

	id := c.Identity()
	assert.Equal(t, prior, id.State, "failed login leaves the state machine where it was")
	assert.Equal(t, "server error", id.AuthError)
}

func TestRegisterFailureSurfacesKind(t *testing.T) {
	backend := newFakeBackend()
	backend.registerErr = &gateway.Error{Kind: gateway.KindUnavailable}
	c := newTestCoordinator(backend, NewMemoryStorage())

	_, err := c.Register(context.Background(), linkedWallet)
	require.Error(t, err)
	assert.Equal(t, "server unavailable", c.Identity().AuthError)
	assert.NotEqual(t, StateAuthenticated, c.Identity().State)
}

func TestLogoutDeterminism(t *testing.T) {
	for name, logoutErr := range map[string]error{
		"backend ok":          nil,
		"backend unreachable": &gateway.Error{Kind: gateway.KindUnavailable},
		"backend 500":         &gateway.Error{Kind: gateway.KindServer, Status: 500},
	} {
		t.Run(name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.logoutErr = logoutErr
			storage := NewMemoryStorage()
			c := newTestCoordinator(backend, storage)
			c.Start(context.Background())
			require.True(t, c.IsAuthenticated())

			id := c.Logout(context.Background())

			assert.Equal(t, StateAnonymous, id.State)
			assert.False(t, c.IsAuthenticated())
			stored, err := storage.Load()
			require.NoError(t, err)
			assert.Nil(t, stored, "snapshot absent after logout")
		})
	}
}

func TestLinkWalletRegistersUnknownWallet(t *testing.T) {
	backend := newFakeBackend()
	backend.walletExists = false
	c := newTestCoordinator(backend, NewMemoryStorage())

	// Lower-cased input is checksum-normalized before any backend call.
	c.LinkWallet(context.Background(), "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")

	assert.Equal(t, 1, backend.count("check_wallet"))
	assert.Equal(t, 1, backend.count("register"))
	assert.Equal(t, 0, backend.count("login"))
	assert.Equal(t, linkedWallet, backend.lastWallet)
	assert.True(t, c.IsAuthenticated())
}

func TestLinkWalletLogsInKnownWallet(t *testing.T) {
	backend := newFakeBackend()
	backend.walletExists = true
	c := newTestCoordinator(backend, NewMemoryStorage())

	c.LinkWallet(context.Background(), linkedWallet)

	assert.Equal(t, 1, backend.count("login"))
	assert.Equal(t, 0, backend.count("register"))
	assert.True(t, c.IsAuthenticated())
}

func TestLinkWalletInvalidAddressDoesNothing(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCoordinator(backend, NewMemoryStorage())

	c.LinkWallet(context.Background(), "not-an-address")

	assert.Equal(t, 0, backend.count("check_wallet"))
	assert.False(t, c.IsAuthenticated())
}

func TestAttachWalletTriggersLinkOnConnect(t *testing.T) {
	backend := newFakeBackend()
	backend.walletExists = true
	c := newTestCoordinator(backend, NewMemoryStorage())

	m := wallet.NewManager(nil, zerolog.Nop())
	detach := c.AttachWallet(m)
	defer detach()

	// Simulate the manager committing a connected state. Disconnect
	// transitions must not trigger a link.
	m.Disconnect()
	assert.Equal(t, 0, backend.count("check_wallet"))
}

func TestSubscribeObservesTransitions(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCoordinator(backend, NewMemoryStorage())

	var mu sync.Mutex
	var states []State
	cancel := c.Subscribe(func(id Identity) {
		mu.Lock()
		states = append(states, id.State)
		mu.Unlock()
	})
	defer cancel()

	c.Start(context.Background())
	c.Logout(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateChecking, StateAuthenticated, StateAnonymous}, states)
}

func TestGuard(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCoordinator(backend, NewMemoryStorage())
	g := NewGuard(c, "")

	ok, redirect := g.Allow()
	assert.False(t, ok)
	assert.Equal(t, "/", redirect)

	c.Start(context.Background())
	require.True(t, c.IsAuthenticated())

	ok, redirect = g.Allow()
	assert.True(t, ok)
	assert.Empty(t, redirect)

	c.Logout(context.Background())
	ok, _ = g.Allow()
	assert.False(t, ok)
}

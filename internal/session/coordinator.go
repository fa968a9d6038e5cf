// Package session reconciles wallet provider events, backend auth checks,
// and the locally persisted snapshot into one authoritative current-user
// state.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/msu-forum/client_layer/internal/gateway"
	"github.com/msu-forum/client_layer/internal/wallet"
)

// State is the coordinator's position in its identity state machine.
type State int

const (
	// StateUnknown holds before the persisted snapshot has been consulted.
	StateUnknown State = iota
	// StateChecking holds while a backend auth check is in flight.
	StateChecking
	// StateAuthenticated holds a current user.
	StateAuthenticated
	// StateAnonymous is the settled logged-out state.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "invalid"
	}
}

// Backend is the slice of the gateway the coordinator needs. Satisfied by
// *gateway.Client.
type Backend interface {
	CheckWallet(ctx context.Context, walletAddr string) (gateway.WalletStatus, error)
	Login(ctx context.Context, walletAddr string) (gateway.Session, error)
	Register(ctx context.Context, walletAddr string) (gateway.Session, error)
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (gateway.Session, error)
}

// Identity is the coordinator's observable state.
type Identity struct {
	State   State
	Session *gateway.Session // set only in StateAuthenticated
	// AuthError is the last login/register failure message, empty after a
	// successful transition.
	AuthError string
}

// Coordinator is the authoritative owner of the current-user state.
type Coordinator struct {
	backend Backend
	storage Storage
	log     zerolog.Logger

	mu        sync.Mutex
	state     State
	session   *gateway.Session
	authError string
	checking  bool
	linking   bool

	subsMu  sync.Mutex
	subs    map[int]func(Identity)
	nextSub int
}

// NewCoordinator creates a Coordinator in StateUnknown. Storage may be nil,
// in which case a MemoryStorage is used.
func NewCoordinator(backend Backend, storage Storage, log zerolog.Logger) *Coordinator {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Coordinator{
		backend: backend,
		storage: storage,
		log:     log,
		state:   StateUnknown,
		subs:    make(map[int]func(Identity)),
	}
}

// Identity returns the current observable state.
func (c *Coordinator) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identityLocked()
}

func (c *Coordinator) identityLocked() Identity {
	return Identity{State: c.state, Session: c.session, AuthError: c.authError}
}

// IsAuthenticated reports whether a user is currently authenticated. It is
// synchronous, performs no I/O, and reflects the latest committed state.
func (c *Coordinator) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAuthenticated
}

// CurrentUser returns the authenticated user, or nil.
func (c *Coordinator) CurrentUser() *gateway.UserInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	user := c.session.User
	return &user
}

// Subscribe registers fn to run after every identity transition. The
// returned function removes the subscription.
func (c *Coordinator) Subscribe(fn func(Identity)) func() {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Coordinator) notify(id Identity) {
	c.subsMu.Lock()
	fns := make([]func(Identity), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// transition commits a state change and its write-through persistence in one
// step. Every identity mutation funnels through here.
func (c *Coordinator) transition(state State, sess *gateway.Session, authError string) Identity {
	c.mu.Lock()
	c.state = state
	c.session = sess
	c.authError = authError
	id := c.identityLocked()
	c.mu.Unlock()

	if err := c.storage.Save(sess); err != nil {
		c.log.Warn().Err(err).Msg("persist session snapshot failed")
	}

	c.notify(id)
	return id
}

// Start hydrates from the persisted snapshot and, when none exists, runs a
// backend auth check. A present snapshot is trusted without a network round
// trip for the lifetime of the session.
func (c *Coordinator) Start(ctx context.Context) Identity {
	sess, err := c.storage.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("load session snapshot failed")
	}
	if sess != nil {
		c.log.Debug().Str("user", sess.User.Username).Msg("session restored from snapshot")
		return c.transition(StateAuthenticated, sess, "")
	}
	return c.CheckAuth(ctx)
}

// CheckAuth asks the backend whether a session is live. Concurrent calls
// while a check is in flight return the current identity without a second
// request; a cached authenticated identity short-circuits entirely. Any
// failure settles to StateAnonymous and clears the snapshot, so callers
// always reach a deterministic end state. It never returns an error.
func (c *Coordinator) CheckAuth(ctx context.Context) Identity {
	c.mu.Lock()
	if c.checking {
		id := c.identityLocked()
		c.mu.Unlock()
		return id
	}
	if c.session != nil {
		id := c.identityLocked()
		c.mu.Unlock()
		return id
	}
	c.checking = true
	c.state = StateChecking
	id := c.identityLocked()
	c.mu.Unlock()
	c.notify(id)

	sess, err := c.backend.CheckAuth(ctx)

	c.mu.Lock()
	c.checking = false
	c.mu.Unlock()

	if err != nil {
		if kind := gateway.KindOf(err); kind == gateway.KindUnavailable {
			// Distinguish "the server is down" from "you are logged out"
			// so the UI can say so.
			c.log.Warn().Msg("auth server unavailable, continuing anonymous")
			return c.transition(StateAnonymous, nil, kind.Message())
		}
		c.log.Debug().Msg("no live backend session")
		return c.transition(StateAnonymous, nil, "")
	}
	return c.transition(StateAuthenticated, &sess, "")
}

// Login exchanges a wallet address for a session. On failure the prior state
// is kept and the error is returned for per-call handling in the caller.
func (c *Coordinator) Login(ctx context.Context, walletAddr string) (Identity, error) {
	sess, err := c.backend.Login(ctx, walletAddr)
	if err != nil {
		c.setAuthError(gateway.KindOf(err).Message())
		return c.Identity(), err
	}
	return c.transition(StateAuthenticated, &sess, ""), nil
}

// Register creates an account for a wallet address. Same contract as Login.
func (c *Coordinator) Register(ctx context.Context, walletAddr string) (Identity, error) {
	sess, err := c.backend.Register(ctx, walletAddr)
	if err != nil {
		c.setAuthError(gateway.KindOf(err).Message())
		return c.Identity(), err
	}
	return c.transition(StateAuthenticated, &sess, ""), nil
}

// Logout notifies the backend best-effort and settles to StateAnonymous no
// matter what the backend does. The client must never believe it is still
// authenticated after Logout returns.
func (c *Coordinator) Logout(ctx context.Context) Identity {
	if err := c.backend.Logout(ctx); err != nil {
		c.log.Warn().Err(err).Msg("logout request failed, clearing local state anyway")
	}
	return c.transition(StateAnonymous, nil, "")
}

func (c *Coordinator) setAuthError(msg string) {
	c.mu.Lock()
	c.authError = msg
	id := c.identityLocked()
	c.mu.Unlock()
	c.notify(id)
}

// AttachWallet links wallet connection transitions to the identity state:
// each transition to connected triggers a registration check, then login or
// register. The returned function detaches.
func (c *Coordinator) AttachWallet(m *wallet.Manager) func() {
	return m.Subscribe(func(conn wallet.Connection) {
		if !conn.IsConnected {
			return
		}
		c.LinkWallet(context.Background(), conn.Account)
	})
}

// LinkWallet drives the check-registration/login/register chain for a
// connected wallet. Re-entrant calls while a chain is outstanding are
// suppressed.
func (c *Coordinator) LinkWallet(ctx context.Context, account string) {
	c.mu.Lock()
	if c.linking {
		c.mu.Unlock()
		return
	}
	c.linking = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.linking = false
		c.mu.Unlock()
	}()

	addr, err := wallet.ChecksumAddress(account)
	if err != nil {
		c.log.Warn().Str("account", account).Err(err).Msg("wallet address invalid, skipping link")
		return
	}

	status, err := c.backend.CheckWallet(ctx, addr)
	if err != nil {
		c.log.Warn().Err(err).Msg("wallet registration check failed")
		return
	}

	if status.Exists {
		_, err = c.Login(ctx, addr)
	} else {
		_, err = c.Register(ctx, addr)
	}
	if err != nil {
		c.log.Warn().Bool("registered", status.Exists).Err(err).Msg("wallet link failed")
	}
}

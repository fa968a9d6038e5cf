package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Connection is the observable wallet state. A disconnected connection
// carries no account, chain, or balance.
type Connection struct {
	IsConnected bool
	Account     string
	ChainID     string
	Balance     string
}

// Manager owns the wallet connection lifecycle: connect and disconnect
// requests, provider events, and network switching.
type Manager struct {
	provider Provider
	log      zerolog.Logger

	mu        sync.Mutex
	conn      Connection
	listening bool
	removers  []func()

	subsMu  sync.Mutex
	subs    map[int]func(Connection)
	nextSub int
}

// NewManager creates a Manager. A nil provider models the extension not
// being installed; Connect then fails with ErrNotInstalled.
func NewManager(provider Provider, log zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		log:      log,
		subs:     make(map[int]func(Connection)),
	}
}

// Connection returns the current state.
func (m *Manager) Connection() Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Subscribe registers fn to run after every connection transition. The
// returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Connection)) func() {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subsMu.Unlock()
	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

func (m *Manager) notify(conn Connection) {
	m.subsMu.Lock()
	fns := make([]func(Connection), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()
	for _, fn := range fns {
		fn(conn)
	}
}

// CheckInitialConnection silently restores a connection the provider already
// holds. No prompt is shown: eth_accounts returns an empty list when the
// user never approved this origin.
func (m *Manager) CheckInitialConnection(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	raw, err := m.provider.Request(ctx, "eth_accounts")
	if err != nil {
		return err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return fmt.Errorf("decode eth_accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil
	}
	return m.Connect(ctx)
}

// Connect prompts the provider for account access and populates the
// connection state with account, chain, and balance.
func (m *Manager) Connect(ctx context.Context) error {
	if m.provider == nil {
		return ErrNotInstalled
	}

	raw, err := m.provider.Request(ctx, "eth_requestAccounts")
	if err != nil {
		m.log.Warn().Err(err).Msg("wallet connect failed")
		return err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return fmt.Errorf("decode eth_requestAccounts: %w", err)
	}
	if len(accounts) == 0 {
		return errors.New("provider returned no accounts")
	}
	account := accounts[0]

	chainID, err := m.requestString(ctx, "eth_chainId")
	if err != nil {
		return err
	}

	balance := "0"
	if hexWei, err := m.requestString(ctx, "eth_getBalance", account, "latest"); err == nil {
		if eth, ferr := formatEther(hexWei); ferr == nil {
			balance = eth
		}
	}

	m.mu.Lock()
	m.conn = Connection{
		IsConnected: true,
		Account:     account,
		ChainID:     chainID,
		Balance:     balance,
	}
	conn := m.conn
	m.mu.Unlock()
	m.notify(conn)
	m.log.Info().Str("account", ShortAddress(account)).Str("chain", NetworkName(chainID)).Msg("wallet connected")

	m.ensureListeners()
	return nil
}

// Disconnect resets the connection to its zero state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.conn = Connection{}
	conn := m.conn
	m.mu.Unlock()
	m.notify(conn)
	m.log.Info().Msg("wallet disconnected")
}

func (m *Manager) ensureListeners() {
	m.mu.Lock()
	if m.listening {
		m.mu.Unlock()
		return
	}
	m.listening = true
	m.mu.Unlock()

	removeAccounts := m.provider.OnAccountsChanged(func(accounts []string) {
		if len(accounts) == 0 {
			m.Disconnect()
			return
		}
		// Reconnect under the new account.
		if err := m.Connect(context.Background()); err != nil {
			m.log.Warn().Err(err).Msg("reconnect after account change failed")
		}
	})
	removeChain := m.provider.OnChainChanged(func(chainID string) {
		m.mu.Lock()
		if !m.conn.IsConnected {
			m.mu.Unlock()
			return
		}
		m.conn.ChainID = chainID
		conn := m.conn
		m.mu.Unlock()
		m.notify(conn)
	})

	m.mu.Lock()
	m.removers = append(m.removers, removeAccounts, removeChain)
	m.mu.Unlock()
}

// Close removes provider listeners.
func (m *Manager) Close() {
	m.mu.Lock()
	removers := m.removers
	m.removers = nil
	m.listening = false
	m.mu.Unlock()
	for _, remove := range removers {
		remove()
	}
}

// SwitchNetwork asks the provider to switch to cfg's chain. When the
// provider does not know the chain (code 4902) it is added first.
func (m *Manager) SwitchNetwork(ctx context.Context, cfg NetworkConfig) error {
	if m.provider == nil {
		return ErrNotInstalled
	}
	_, err := m.provider.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": cfg.ChainID})
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == CodeUnrecognizedChain {
		return m.AddNetwork(ctx, cfg)
	}
	return err
}

// AddNetwork registers cfg's chain with the provider.
func (m *Manager) AddNetwork(ctx context.Context, cfg NetworkConfig) error {
	if m.provider == nil {
		return ErrNotInstalled
	}
	_, err := m.provider.Request(ctx, "wallet_addEthereumChain", cfg)
	return err
}

func (m *Manager) requestString(ctx context.Context, method string, params ...any) (string, error) {
	raw, err := m.provider.Request(ctx, method, params...)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode %s: %w", method, err)
	}
	return s, nil
}

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// formatEther converts a hex-encoded wei amount to a decimal ether string
// with trailing zeros trimmed.
func formatEther(hexWei string) (string, error) {
	wei, ok := new(big.Int).SetString(strings.TrimPrefix(hexWei, "0x"), 16)
	if !ok {
		return "", fmt.Errorf("invalid wei amount %q", hexWei)
	}
	quo, rem := new(big.Int).QuoRem(wei, weiPerEther, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String(), nil
	}
	frac := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")
	return quo.String() + "." + frac, nil
}

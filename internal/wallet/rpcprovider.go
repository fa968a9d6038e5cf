package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// RPCProvider implements Provider against a wallet bridge speaking JSON-RPC
// 2.0 over HTTP, with an optional websocket channel for accountsChanged and
// chainChanged pushes.
type RPCProvider struct {
	httpClient *http.Client
	url        string
	wsURL      string
	log        zerolog.Logger
	nextID     atomic.Uint64

	mu       sync.Mutex
	accSubs  map[int]func([]string)
	chainSub map[int]func(string)
	nextSub  int
	wsConn   *websocket.Conn
	closed   bool
}

// RPCProviderConfig configures an RPCProvider.
type RPCProviderConfig struct {
	// URL is the bridge's HTTP endpoint.
	URL string
	// WSURL is the bridge's websocket endpoint for event pushes. Empty
	// disables the event channel.
	WSURL   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewRPCProvider creates the provider. When a websocket URL is configured
// the event loop starts immediately and runs until Close.
func NewRPCProvider(cfg RPCProviderConfig) (*RPCProvider, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	p := &RPCProvider{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		wsURL:      cfg.WSURL,
		log:        cfg.Logger,
		accSubs:    make(map[int]func([]string)),
		chainSub:   make(map[int]func(string)),
	}
	if p.wsURL != "" {
		conn, _, err := websocket.DefaultDialer.Dial(p.wsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("dial event channel: %w", err)
		}
		p.wsConn = conn
		go p.readEvents(conn)
	}
	return p, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Request performs one JSON-RPC call.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      p.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}

	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() {
		return nil, &ProviderError{
			Code:    int(rpcErr.Get("code").Int()),
			Message: rpcErr.Get("message").String(),
		}
	}
	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		return nil, fmt.Errorf("rpc %s: response has neither result nor error", method)
	}
	return json.RawMessage(result.Raw), nil
}

// OnAccountsChanged registers a listener for account switches.
func (p *RPCProvider) OnAccountsChanged(fn func(accounts []string)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.accSubs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.accSubs, id)
		p.mu.Unlock()
	}
}

// OnChainChanged registers a listener for network switches.
func (p *RPCProvider) OnChainChanged(fn func(chainID string)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.chainSub[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.chainSub, id)
		p.mu.Unlock()
	}
}

// readEvents dispatches bridge pushes until the connection dies or Close is
// called. Messages carry {"event": name, ...} with event-specific fields.
func (p *RPCProvider) readEvents(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if !closed {
				p.log.Warn().Err(err).Msg("event channel closed")
			}
			return
		}

		switch gjson.GetBytes(message, "event").String() {
		case "accountsChanged":
			var accounts []string
			for _, a := range gjson.GetBytes(message, "accounts").Array() {
				accounts = append(accounts, a.String())
			}
			for _, fn := range p.accountListeners() {
				fn(accounts)
			}
		case "chainChanged":
			chainID := gjson.GetBytes(message, "chainId").String()
			for _, fn := range p.chainListeners() {
				fn(chainID)
			}
		default:
			p.log.Debug().RawJSON("message", message).Msg("ignoring unknown event")
		}
	}
}

func (p *RPCProvider) accountListeners() []func([]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fns := make([]func([]string), 0, len(p.accSubs))
	for _, fn := range p.accSubs {
		fns = append(fns, fn)
	}
	return fns
}

func (p *RPCProvider) chainListeners() []func(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fns := make([]func(string), 0, len(p.chainSub))
	for _, fn := range p.chainSub {
		fns = append(fns, fn)
	}
	return fns
}

// Close shuts down the event channel.
func (p *RPCProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	conn := p.wsConn
	p.wsConn = nil
	p.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Package wallet manages the connection to an external Ethereum wallet
// provider and reconciles its events into one observable connection state.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider is the wallet provider surface the client layer consumes. It is
// implemented by RPCProvider over JSON-RPC and by scripted fakes in tests.
type Provider interface {
	// Request performs one provider RPC call.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// OnAccountsChanged registers a listener for account switches. The
	// returned function removes it.
	OnAccountsChanged(fn func(accounts []string)) func()
	// OnChainChanged registers a listener for network switches.
	OnChainChanged(fn func(chainID string)) func()
}

// Provider RPC error codes defined by EIP-1193/EIP-1474 that the client
// layer branches on.
const (
	CodeUserRejected      = 4001
	CodeRequestPending    = -32002
	CodeUnrecognizedChain = 4902
)

// ProviderError is an error the provider returned with an RPC error code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrNotInstalled is returned when no provider is available at all.
var ErrNotInstalled = errors.New("wallet provider not installed")

// HumanMessage maps a wallet failure to the string shown next to the
// connect widget.
func HumanMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotInstalled) {
		return "Wallet not found. Please install a wallet extension"
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case CodeUserRejected:
			return "Connection rejected by user"
		case CodeRequestPending:
			return "A request is already pending. Please check your wallet"
		case CodeUnrecognizedChain:
			return "Unsupported network"
		}
	}
	return "Failed to connect to wallet: " + err.Error()
}

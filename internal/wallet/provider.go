package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// Kind identifies how a wallet provider is reached.
type Kind string

const (
	KindEmbedded Kind = "embedded" // key held by the host app
	KindInjected Kind = "injected" // external wallet over JSON-RPC
	KindNone     Kind = "none"
)

const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"

	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

type ProviderEvent struct {
	Name     string
	Accounts []string // accountsChanged
	ChainID  *big.Int // chainChanged
}

// Provider is an EIP-1193 style wallet.
type Provider interface {
	Kind() Kind
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// Events returns provider notifications, or nil if the provider emits none.
	Events() <-chan ProviderEvent
	// TransactOpts returns signing options for from on chainID.
	TransactOpts(ctx context.Context, from string, chainID *big.Int) (*bind.TransactOpts, error)
	Close() error
}

// None is the provider variant used when no wallet is available.
type None struct{}

func (None) Kind() Kind { return KindNone }

func (None) Request(context.Context, string, ...any) (json.RawMessage, error) {
	return nil, ErrNoProvider
}

func (None) Events() <-chan ProviderEvent { return nil }

func (None) TransactOpts(context.Context, string, *big.Int) (*bind.TransactOpts, error) {
	return nil, ErrNoProvider
}

func (None) Close() error { return nil }

// Available drops nil and KindNone providers, preserving order.
func Available(providers ...Provider) []Provider {
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil || p.Kind() == KindNone {
			continue
		}
		out = append(out, p)
	}
	return out
}

func requestAccounts(ctx context.Context, p Provider, method string) ([]string, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return accounts, nil
}

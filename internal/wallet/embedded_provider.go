package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// EmbeddedProvider is a wallet whose key lives inside the host application.
// Its single account is always authorized.
type EmbeddedProvider struct {
	key     *ecdsa.PrivateKey
	address string
	chainID *big.Int
}

func NewEmbeddedProvider(key *ecdsa.PrivateKey, chainID *big.Int) *EmbeddedProvider {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &EmbeddedProvider{
		key:     key,
		address: strings.ToLower(addr.Hex()),
		chainID: chainID,
	}
}

// NewEmbeddedProviderFromHex loads a hex private key, with or without 0x.
func NewEmbeddedProviderFromHex(hexKey string, chainID *big.Int) (*EmbeddedProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewEmbeddedProvider(key, chainID), nil
}

// NewEmbeddedProviderFromKeystore decrypts a go-ethereum keystore file.
func NewEmbeddedProviderFromKeystore(path, passphrase string, chainID *big.Int) (*EmbeddedProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return NewEmbeddedProvider(key.PrivateKey, chainID), nil
}

func (p *EmbeddedProvider) Kind() Kind { return KindEmbedded }

func (p *EmbeddedProvider) Address() string { return p.address }

func (p *EmbeddedProvider) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	switch method {
	case MethodAccounts, MethodRequestAccounts:
		return json.Marshal([]string{p.address})
	case MethodChainID:
		return json.Marshal((*hexutil.Big)(p.chainID))
	}
	return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "unsupported method " + method}
}

func (p *EmbeddedProvider) Events() <-chan ProviderEvent { return nil }

func (p *EmbeddedProvider) TransactOpts(ctx context.Context, from string, chainID *big.Int) (*bind.TransactOpts, error) {
	if !strings.EqualFold(from, p.address) {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "account " + from + " is not held by this wallet"}
	}
	opts, err := bind.NewKeyedTransactorWithChainID(p.key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (p *EmbeddedProvider) Close() error { return nil }

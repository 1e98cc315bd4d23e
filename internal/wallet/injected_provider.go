package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// rpcCaller is the subset of *rpc.Client the injected provider needs.
type rpcCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

// InjectedProvider talks to an external wallet over JSON-RPC. Account and
// chain changes are detected by polling, since plain HTTP endpoints cannot
// push notifications.
type InjectedProvider struct {
	client       rpcCaller
	pollInterval time.Duration
	log          *zap.Logger

	startOnce sync.Once
	events    chan ProviderEvent
	stop      context.CancelFunc
}

func DialInjectedProvider(ctx context.Context, url string, pollInterval time.Duration, log *zap.Logger) (*InjectedProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial injected wallet %s: %w", url, err)
	}
	return newInjectedProvider(client, pollInterval, log), nil
}

func newInjectedProvider(client rpcCaller, pollInterval time.Duration, log *zap.Logger) *InjectedProvider {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &InjectedProvider{
		client:       client,
		pollInterval: pollInterval,
		log:          log,
		events:       make(chan ProviderEvent, 8),
	}
}

func (p *InjectedProvider) Kind() Kind { return KindInjected }

func (p *InjectedProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, err
	}
	return raw, nil
}

// Events starts the change watcher on first use.
func (p *InjectedProvider) Events() <-chan ProviderEvent {
	p.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		p.stop = cancel
		go p.watch(ctx)
	})
	return p.events
}

func (p *InjectedProvider) watch(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var (
		lastAccounts []string
		lastChain    *big.Int
		primed       bool
	)

	for {
		accounts, accErr := requestAccounts(ctx, p, MethodAccounts)
		chainID, chainErr := p.chainID(ctx)

		if accErr != nil || chainErr != nil {
			p.log.Debug("injected wallet poll failed", zap.NamedError("accounts", accErr), zap.NamedError("chain", chainErr))
		} else {
			if primed && !slices.Equal(accounts, lastAccounts) {
				p.emit(ctx, ProviderEvent{Name: EventAccountsChanged, Accounts: accounts})
			}
			if primed && lastChain != nil && chainID.Cmp(lastChain) != 0 {
				p.emit(ctx, ProviderEvent{Name: EventChainChanged, ChainID: chainID})
			}
			lastAccounts, lastChain, primed = accounts, chainID, true
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *InjectedProvider) emit(ctx context.Context, ev ProviderEvent) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func (p *InjectedProvider) chainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := p.client.CallContext(ctx, &id, MethodChainID); err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}

// TransactOpts signs through the wallet's eth_signTransaction, so the key
// never leaves the wallet.
func (p *InjectedProvider) TransactOpts(ctx context.Context, from string, chainID *big.Int) (*bind.TransactOpts, error) {
	fromAddr := common.HexToAddress(from)
	return &bind.TransactOpts{
		From:    fromAddr,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != fromAddr {
				return nil, bind.ErrNotAuthorized
			}
			return p.signTransaction(ctx, addr, tx, chainID)
		},
	}, nil
}

func (p *InjectedProvider) signTransaction(ctx context.Context, from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	args := map[string]any{
		"from":    from,
		"gas":     hexutil.Uint64(tx.Gas()),
		"value":   (*hexutil.Big)(tx.Value()),
		"input":   hexutil.Bytes(tx.Data()),
		"nonce":   hexutil.Uint64(tx.Nonce()),
		"chainId": (*hexutil.Big)(chainID),
	}
	if tx.To() != nil {
		args["to"] = tx.To()
	}
	if tx.Type() == types.DynamicFeeTxType {
		args["maxFeePerGas"] = (*hexutil.Big)(tx.GasFeeCap())
		args["maxPriorityFeePerGas"] = (*hexutil.Big)(tx.GasTipCap())
	} else {
		args["gasPrice"] = (*hexutil.Big)(tx.GasPrice())
	}

	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, "eth_signTransaction", args); err != nil {
		return nil, err
	}
	encoded, err := decodeSignedTx(raw)
	if err != nil {
		return nil, err
	}
	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(encoded); err != nil {
		return nil, fmt.Errorf("decode signed transaction: %w", err)
	}
	return signed, nil
}

// decodeSignedTx accepts both a bare hex string and geth's {raw, tx} object.
func decodeSignedTx(raw json.RawMessage) ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(string(raw)), `"`) {
		var b hexutil.Bytes
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	}
	var wrapped struct {
		Raw hexutil.Bytes `json:"raw"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Raw) == 0 {
		return nil, errors.New("wallet returned an empty signed transaction")
	}
	return wrapped.Raw, nil
}

func (p *InjectedProvider) Close() error {
	if p.stop != nil {
		p.stop()
	}
	p.client.Close()
	return nil
}

package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

var (
	ErrNoSession     = errors.New("connect your wallet first")
	ErrReverted      = errors.New("transaction reverted")
	ErrEventNotFound = errors.New("event not found in receipt")
)

// Backend is the chain access every contract needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Signer yields signing options for the active wallet session.
type Signer interface {
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

func Dial(ctx context.Context, rpcURL string, log *zap.Logger) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	log.Info("rpc connected", zap.String("url", rpcURL), zap.String("chain_id", chainID.String()))
	return client, nil
}

// bound is the shared call/transact plumbing behind every contract wrapper.
type bound struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	backend  Backend
	log      *zap.Logger
}

func newBound(address string, parsed abi.ABI, backend Backend, log *zap.Logger) (bound, error) {
	addr, err := wallet.NormalizeAddress(address)
	if err != nil {
		return bound{}, err
	}
	a := common.HexToAddress(addr)
	return bound{
		address:  a,
		abi:      parsed,
		contract: bind.NewBoundContract(a, parsed, backend, backend, backend),
		backend:  backend,
		log:      log,
	}, nil
}

func (b *bound) Address() common.Address { return b.address }

func (b *bound) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (b *bound) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := b.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// transact submits one transaction, waits for its receipt and fails with
// ErrReverted when the receipt status is not successful. It never retries.
func (b *bound) transact(ctx context.Context, signer Signer, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	if signer == nil {
		return nil, ErrNoSession
	}
	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		if errors.Is(err, wallet.ErrNotConnected) {
			return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
		}
		return nil, err
	}
	opts.Context = ctx
	opts.Value = value

	tx, err := b.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", method, err)
	}
	b.log.Info("transaction submitted",
		zap.String("method", method),
		zap.String("contract", b.address.Hex()),
		zap.String("tx", tx.Hash().Hex()),
	)

	receipt, err := bind.WaitMined(ctx, b.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s %s", ErrReverted, method, tx.Hash().Hex())
	}
	b.log.Info("transaction confirmed",
		zap.String("method", method),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return receipt, nil
}

func lower(a common.Address) string {
	s, _ := wallet.NormalizeAddress(a.Hex())
	return s
}

package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// fakeChain answers eth_call and transaction submission for a handful of
// contracts by decoding calldata with their ABIs.
type fakeChain struct {
	Backend

	mu        sync.Mutex
	contracts map[common.Address]abi.ABI
	handlers  map[string]func(args []any) ([]any, error)
	calls     map[string]int
	sent      []sentTx
	reverts   map[string]bool
	logs      map[string][]*types.Log
}

type sentTx struct {
	method string
	args   []any
	value  *big.Int
	hash   common.Hash
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		contracts: make(map[common.Address]abi.ABI),
		handlers:  make(map[string]func([]any) ([]any, error)),
		calls:     make(map[string]int),
		reverts:   make(map[string]bool),
		logs:      make(map[string][]*types.Log),
	}
}

func (c *fakeChain) deploy(addr string, parsed abi.ABI) common.Address {
	a := common.HexToAddress(addr)
	c.contracts[a] = parsed
	return a
}

func (c *fakeChain) on(method string, fn func(args []any) ([]any, error)) {
	c.handlers[method] = fn
}

// onAt registers a handler for one contract only; it wins over on.
func (c *fakeChain) onAt(addr, method string, fn func(args []any) ([]any, error)) {
	c.handlers[common.HexToAddress(addr).Hex()+":"+method] = fn
}

func (c *fakeChain) callCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *fakeChain) decode(to *common.Address, data []byte) (*abi.Method, []any, error) {
	if to == nil || len(data) < 4 {
		return nil, nil, errors.New("bad call")
	}
	parsed, ok := c.contracts[*to]
	if !ok {
		return nil, nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	return method, args, err
}

func (c *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, args, err := c.decode(msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.calls[method.Name]++
	fn := c.handlers[msg.To.Hex()+":"+method.Name]
	if fn == nil {
		fn = c.handlers[method.Name]
	}
	c.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("execution reverted: no handler for %s", method.Name)
	}
	out, err := fn(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (c *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (c *fakeChain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (c *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(1)}, nil
}

func (c *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (c *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(2), nil }

func (c *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (c *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	method, args, err := c.decode(tx.To(), tx.Data())
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method.Name]++
	c.sent = append(c.sent, sentTx{method: method.Name, args: args, value: tx.Value(), hash: tx.Hash()})
	return nil
}

func (c *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sent {
		if s.hash != hash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if c.reverts[s.method] {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{
			Status:      status,
			TxHash:      hash,
			BlockNumber: big.NewInt(101),
			Logs:        c.logs[s.method],
		}, nil
	}
	return nil, ethereum.NotFound
}

func (c *fakeChain) sentMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.sent {
		out = append(out, s.method)
	}
	return out
}

// Well-known development key (anvil/hardhat account #0).
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAccount = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

type keySigner struct{}

func (keySigner) TransactOpts(context.Context) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(key, big.NewInt(8453))
}

type errSigner struct{ err error }

func (s errSigner) TransactOpts(context.Context) (*bind.TransactOpts, error) { return nil, s.err }

func nopLog() *zap.Logger { return zap.NewNop() }

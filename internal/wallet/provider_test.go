package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Well-known development key (anvil/hardhat account #0).
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const devAddr = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

func TestEmbeddedProvider(t *testing.T) {
	p, err := NewEmbeddedProviderFromHex(devKey, big.NewInt(8453))
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind() != KindEmbedded {
		t.Fatalf("kind = %s", p.Kind())
	}

	accounts, err := requestAccounts(context.Background(), p, MethodRequestAccounts)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0] != devAddr {
		t.Fatalf("accounts = %v, want [%s]", accounts, devAddr)
	}

	if _, err := p.Request(context.Background(), "eth_sign"); !errors.As(err, new(*ProviderError)) {
		t.Fatalf("unsupported method err = %v", err)
	}

	opts, err := p.TransactOpts(context.Background(), devAddr, big.NewInt(8453))
	if err != nil {
		t.Fatal(err)
	}
	if opts.From != MustAddress(devAddr) {
		t.Errorf("from = %s", opts.From.Hex())
	}
	if _, err := p.TransactOpts(context.Background(), otherAddr, big.NewInt(8453)); err == nil {
		t.Error("expected error signing for a foreign account")
	}
}

func TestAvailableFiltersNone(t *testing.T) {
	p := &fakeProvider{kind: KindInjected}
	got := Available(nil, None{}, p)
	if len(got) != 1 || got[0] != p {
		t.Fatalf("Available = %v", got)
	}
}

type scriptedRPC struct {
	mu       sync.Mutex
	accounts []string
	chainID  int64
}

func (s *scriptedRPC) CallContext(_ context.Context, result any, method string, _ ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v any
	switch method {
	case MethodAccounts:
		v = s.accounts
	case MethodChainID:
		v = (*hexutil.Big)(big.NewInt(s.chainID))
	default:
		return &ProviderError{Code: CodeUnsupportedMethod, Message: method}
	}
	b, _ := json.Marshal(v)
	return json.Unmarshal(b, result)
}

func (s *scriptedRPC) Close() {}

func (s *scriptedRPC) set(accounts []string, chainID int64) {
	s.mu.Lock()
	s.accounts, s.chainID = accounts, chainID
	s.mu.Unlock()
}

func TestInjectedProviderEmitsChanges(t *testing.T) {
	rpc := &scriptedRPC{accounts: []string{lowerCase}, chainID: 8453}
	p := newInjectedProvider(rpc, 10*time.Millisecond, zap.NewNop())
	defer p.Close()

	events := p.Events()
	time.Sleep(30 * time.Millisecond)

	rpc.set([]string{otherAddr}, 8453)
	ev := waitEvent(t, events)
	if ev.Name != EventAccountsChanged || len(ev.Accounts) != 1 || ev.Accounts[0] != otherAddr {
		t.Fatalf("unexpected event %+v", ev)
	}

	rpc.set([]string{otherAddr}, 1)
	ev = waitEvent(t, events)
	if ev.Name != EventChainChanged || ev.ChainID.Int64() != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestDecodeSignedTx(t *testing.T) {
	bare, err := decodeSignedTx(json.RawMessage(`"0x02f8"`))
	if err != nil || len(bare) != 2 {
		t.Fatalf("bare: %x, %v", bare, err)
	}
	wrapped, err := decodeSignedTx(json.RawMessage(`{"raw":"0x02f8aa","tx":{}}`))
	if err != nil || len(wrapped) != 3 {
		t.Fatalf("wrapped: %x, %v", wrapped, err)
	}
	if _, err := decodeSignedTx(json.RawMessage(`{"tx":{}}`)); err == nil {
		t.Fatal("expected error for missing raw")
	}
}

func waitEvent(t *testing.T, ch <-chan ProviderEvent) ProviderEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for provider event")
	}
	return ProviderEvent{}
}

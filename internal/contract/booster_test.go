package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vibescrow/backend/internal/models"
)

const dropAddr = "0xcdc74eeedc5ede1ef6033f22e8f0401af5b561ea"

func newTestBooster(t *testing.T) (*Booster, *fakeChain) {
	t.Helper()
	chain := newFakeChain()
	chain.deploy(dropAddr, BoosterDropABI)
	b, err := NewBooster(dropAddr, chain, nopLog())
	if err != nil {
		t.Fatal(err)
	}
	return b, chain
}

func rarityOut(r models.Rarity, random int64) []any {
	var seed [32]byte
	seed[31] = byte(random)
	return []any{uint8(r), big.NewInt(random), seed}
}

func TestTokenRarityResolved(t *testing.T) {
	tests := []struct {
		name   string
		rarity models.Rarity
		random int64
		want   bool
	}{
		{"all zero", models.RarityCommon, 0, false},
		{"common with randomness", models.RarityCommon, 42, true},
		{"rare without randomness", models.RarityRare, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := TokenRarity{Rarity: tt.rarity, RandomValue: big.NewInt(tt.random)}
			if got := r.Resolved(); got != tt.want {
				t.Errorf("Resolved() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetTokenRarity(t *testing.T) {
	b, chain := newTestBooster(t)
	chain.on("getTokenRarity", func(args []any) ([]any, error) {
		return rarityOut(models.RarityLegendary, 123456789), nil
	})

	card, err := b.Card(context.Background(), big.NewInt(5))
	if err != nil {
		t.Fatal(err)
	}
	if !card.Opened || card.Rarity != models.RarityLegendary || card.Multiplier != 4 {
		t.Errorf("card = %+v", card)
	}
	if card.Attributes != models.DeriveAttributes(big.NewInt(123456789)) {
		t.Errorf("attributes = %+v", card.Attributes)
	}
	if card.Contract != dropAddr {
		t.Errorf("contract = %s", card.Contract)
	}
}

func TestOwnedCards(t *testing.T) {
	b, chain := newTestBooster(t)
	chain.on("balanceOf", func([]any) ([]any, error) { return []any{big.NewInt(3)}, nil })
	chain.on("tokenOfOwnerByIndex", func(args []any) ([]any, error) {
		return []any{new(big.Int).Add(big.NewInt(100), args[1].(*big.Int))}, nil
	})
	chain.on("getTokenRarity", func(args []any) ([]any, error) {
		switch args[0].(*big.Int).Int64() {
		case 100:
			return rarityOut(models.RarityMythic, 77), nil
		case 101:
			return nil, errors.New("execution reverted: rarity not set")
		default:
			return rarityOut(models.RarityCommon, 0), nil
		}
	})

	cards, err := b.OwnedCards(context.Background(), testAccount, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 3 {
		t.Fatalf("got %d cards", len(cards))
	}
	if !cards[0].Opened || cards[0].Rarity != models.RarityMythic {
		t.Errorf("card 0 = %+v", cards[0])
	}
	for _, i := range []int{1, 2} {
		if cards[i].Opened || cards[i].RarityLabel != "Unopened" {
			t.Errorf("card %d should be an unopened pack: %+v", i, cards[i])
		}
	}

	summary := models.Summarize(cards)
	if summary.MythicCount != 1 || summary.UnopenedPacks != 2 || !summary.HasSpecialCards {
		t.Errorf("summary = %+v", summary)
	}
}

func transferLog(contract, from, to string, tokenID int64) *types.Log {
	return &types.Log{
		Address: common.HexToAddress(contract),
		Topics: []common.Hash{
			BoosterDropABI.Events["Transfer"].ID,
			common.BytesToHash(common.HexToAddress(from).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func TestMintedTokenID(t *testing.T) {
	b, _ := newTestBooster(t)
	zero := "0x0000000000000000000000000000000000000000"
	other := "0x1111111111111111111111111111111111111111"

	receipt := &types.Receipt{Logs: []*types.Log{
		transferLog(collectionAddr, zero, testAccount, 1),
		transferLog(dropAddr, other, testAccount, 2),
		transferLog(dropAddr, zero, other, 3),
		transferLog(dropAddr, zero, testAccount, 4),
	}}
	id, err := b.MintedTokenID(receipt, testAccount)
	if err != nil {
		t.Fatal(err)
	}
	if id.Int64() != 4 {
		t.Errorf("token id = %s, want 4", id)
	}

	if _, err := b.MintedTokenID(&types.Receipt{}, testAccount); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("empty receipt err = %v", err)
	}
}

func TestMintPaysPrice(t *testing.T) {
	b, chain := newTestBooster(t)
	price := big.NewInt(500_000_000_000_000)

	_, err := b.Mint(context.Background(), keySigner{}, big.NewInt(1), testAccount, testAccount, testAccount, price)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain.sent) != 1 || chain.sent[0].method != "mint" || chain.sent[0].value.Cmp(price) != 0 {
		t.Fatalf("sent = %+v", chain.sent)
	}
}

func TestLastOwnedToken(t *testing.T) {
	b, chain := newTestBooster(t)
	chain.on("balanceOf", func([]any) ([]any, error) { return []any{big.NewInt(4)}, nil })
	chain.on("tokenOfOwnerByIndex", func(args []any) ([]any, error) {
		return []any{new(big.Int).Mul(args[1].(*big.Int), big.NewInt(10))}, nil
	})

	id, err := b.LastOwnedToken(context.Background(), testAccount)
	if err != nil {
		t.Fatal(err)
	}
	if id.Int64() != 30 {
		t.Errorf("token id = %s, want index 3 -> 30", id)
	}
}

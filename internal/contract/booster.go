package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TokenRarity is the getTokenRarity result.
type TokenRarity struct {
	Rarity          models.Rarity
	RandomValue     *big.Int
	TokenRandomness [32]byte
}

// Resolved reports whether the randomness request for the token has been
// fulfilled. Before fulfilment the contract returns all zeroes.
func (t TokenRarity) Resolved() bool {
	return t.Rarity != 0 || (t.RandomValue != nil && t.RandomValue.Sign() != 0)
}

func (t TokenRarity) Card(contract string, tokenID *big.Int) models.BoosterCard {
	if !t.Resolved() {
		return models.NewUnopenedCard(contract, tokenID)
	}
	return models.NewOpenedCard(contract, tokenID, t.Rarity, t.RandomValue, hexutil.Encode(t.TokenRandomness[:]))
}

// Booster wraps the BoosterDrop contract: packs are ERC-721 tokens that
// resolve to a card rarity once opened.
type Booster struct {
	bound
}

func NewBooster(address string, backend Backend, log *zap.Logger) (*Booster, error) {
	b, err := newBound(address, BoosterDropABI, backend, log)
	if err != nil {
		return nil, fmt.Errorf("booster drop address: %w", err)
	}
	return &Booster{bound: b}, nil
}

func (b *Booster) GetTokenRarity(ctx context.Context, tokenID *big.Int) (*TokenRarity, error) {
	out, err := b.call(ctx, "getTokenRarity", tokenID)
	if err != nil {
		return nil, err
	}
	r := &TokenRarity{RandomValue: new(big.Int)}
	if v, ok := out[0].(uint8); ok {
		r.Rarity = models.Rarity(v)
	}
	if v, ok := out[1].(*big.Int); ok && v != nil {
		r.RandomValue = v
	}
	if v, ok := out[2].([32]byte); ok {
		r.TokenRandomness = v
	}
	return r, nil
}

func (b *Booster) GetMintPrice(ctx context.Context, amount *big.Int) (*big.Int, error) {
	return b.callBig(ctx, "getMintPrice", amount)
}

func (b *Booster) GetEntropyFee(ctx context.Context) (*big.Int, error) {
	return b.callBig(ctx, "getEntropyFee")
}

func (b *Booster) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	return b.callBig(ctx, "balanceOf", wallet.MustAddress(owner))
}

func (b *Booster) TokenOfOwnerByIndex(ctx context.Context, owner string, index *big.Int) (*big.Int, error) {
	return b.callBig(ctx, "tokenOfOwnerByIndex", wallet.MustAddress(owner), index)
}

func (b *Booster) OwnerOf(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := b.call(ctx, "ownerOf", tokenID)
	if err != nil {
		return "", err
	}
	addr, _ := out[0].(common.Address)
	return lower(addr), nil
}

func (b *Booster) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := b.call(ctx, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	uri, _ := out[0].(string)
	return uri, nil
}

// Mint buys amount packs for recipient, paying value.
func (b *Booster) Mint(ctx context.Context, signer Signer, amount *big.Int, recipient, referrer, originReferrer string, value *big.Int) (*types.Receipt, error) {
	return b.transact(ctx, signer, value, "mint",
		amount,
		wallet.MustAddress(recipient),
		wallet.MustAddress(referrer),
		wallet.MustAddress(originReferrer),
	)
}

// Open requests randomness for tokenIDs, paying the entropy fee.
func (b *Booster) Open(ctx context.Context, signer Signer, tokenIDs []*big.Int, fee *big.Int) (*types.Receipt, error) {
	return b.transact(ctx, signer, fee, "open", tokenIDs)
}

// MintedTokenID finds the Transfer(0x0 -> recipient) log emitted by this
// contract in receipt.
func (b *Booster) MintedTokenID(receipt *types.Receipt, recipient string) (*big.Int, error) {
	if receipt == nil {
		return nil, ErrEventNotFound
	}
	transferID := b.abi.Events["Transfer"].ID
	to := wallet.MustAddress(recipient)

	for _, l := range receipt.Logs {
		if l.Address != b.address || len(l.Topics) != 4 || l.Topics[0] != transferID {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != to {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[3].Bytes()), nil
	}
	return nil, ErrEventNotFound
}

// LastOwnedToken returns the token at index balance-1, the most recent
// acquisition on enumerable drops.
func (b *Booster) LastOwnedToken(ctx context.Context, owner string) (*big.Int, error) {
	balance, err := b.BalanceOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, fmt.Errorf("%s owns no tokens", owner)
	}
	return b.TokenOfOwnerByIndex(ctx, owner, new(big.Int).Sub(balance, big.NewInt(1)))
}

// Card reads one token's rarity and returns it as a card. Tokens whose
// randomness is unresolved come back unopened.
func (b *Booster) Card(ctx context.Context, tokenID *big.Int) (models.BoosterCard, error) {
	r, err := b.GetTokenRarity(ctx, tokenID)
	if err != nil {
		return models.BoosterCard{}, err
	}
	return r.Card(lower(b.address), tokenID), nil
}

// OwnedCards enumerates owner's tokens and reads each rarity with at most
// concurrency calls in flight. A rarity read that fails marks the token as
// an unopened pack.
func (b *Booster) OwnedCards(ctx context.Context, owner string, concurrency int) ([]models.BoosterCard, error) {
	owner, err := wallet.NormalizeAddress(owner)
	if err != nil {
		return nil, err
	}
	balance, err := b.BalanceOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !balance.IsInt64() {
		return nil, fmt.Errorf("balance out of range: %s", balance)
	}
	n := int(balance.Int64())
	if concurrency <= 0 {
		concurrency = 1
	}

	contract := lower(b.address)
	cards := make([]models.BoosterCard, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			tokenID, err := b.TokenOfOwnerByIndex(gctx, owner, big.NewInt(int64(i)))
			if err != nil {
				return fmt.Errorf("token at index %d: %w", i, err)
			}
			card, err := b.Card(gctx, tokenID)
			if err != nil {
				b.log.Debug("rarity not readable, treating as unopened", zap.String("token_id", tokenID.String()), zap.Error(err))
				card = models.NewUnopenedCard(contract, tokenID)
			}
			cards[i] = card
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cards, nil
}

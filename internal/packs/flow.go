package packs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vibescrow/backend/internal/contract"
	"github.com/vibescrow/backend/internal/events"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("invalid pack flow transition")
	ErrNothingRevealed   = errors.New("no revealed card to play with")
)

// Booster is the BoosterDrop surface the flow drives.
type Booster interface {
	RarityReader
	GetMintPrice(ctx context.Context, amount *big.Int) (*big.Int, error)
	Mint(ctx context.Context, signer contract.Signer, amount *big.Int, recipient, referrer, originReferrer string, value *big.Int) (*types.Receipt, error)
	MintedTokenID(receipt *types.Receipt, recipient string) (*big.Int, error)
	LastOwnedToken(ctx context.Context, owner string) (*big.Int, error)
	GetEntropyFee(ctx context.Context) (*big.Int, error)
	Open(ctx context.Context, signer contract.Signer, tokenIDs []*big.Int, fee *big.Int) (*types.Receipt, error)
	OwnedCards(ctx context.Context, owner string, concurrency int) ([]models.BoosterCard, error)
}

// Session is the active wallet. *wallet.Manager satisfies it.
type Session interface {
	Address() (string, error)
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

type Options struct {
	Poller      Poller
	Referrer    string // defaults to the zero address
	Concurrency int
	Contract    string // lowercase BoosterDrop address, stamped on revealed cards
}

// Flow drives one pack from selection or purchase to a revealed card and
// the game. Methods are safe for concurrent use but only one action runs
// at a time; a second call fails with ErrInvalidTransition.
type Flow struct {
	booster Booster
	session Session
	bus     events.Publisher
	alerter wallet.Alerter
	opts    Options
	log     *zap.Logger

	mu       sync.Mutex
	state    string
	revealed *models.BoosterCard
}

func NewFlow(booster Booster, session Session, bus events.Publisher, alerter wallet.Alerter, opts Options, log *zap.Logger) *Flow {
	if alerter == nil {
		alerter = wallet.AlertFunc(func(string) {})
	}
	if opts.Referrer == "" {
		opts.Referrer = wallet.ZeroAddress
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Flow{
		booster: booster,
		session: session,
		bus:     bus,
		alerter: alerter,
		opts:    opts,
		log:     log,
		state:   StateSelect,
	}
}

func (f *Flow) State() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Revealed returns the last revealed card, if any.
func (f *Flow) Revealed() (models.BoosterCard, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revealed == nil {
		return models.BoosterCard{}, false
	}
	return *f.revealed, true
}

func (f *Flow) transition(to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !IsValidTransition(f.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, to)
	}
	f.log.Debug("pack flow transition", zap.String("from", f.state), zap.String("to", to))
	f.state = to
	if to == StateSelect {
		f.revealed = nil
	}
	return nil
}

// fail returns the flow to select. Wallet rejections stay silent; anything
// else is alerted.
func (f *Flow) fail(err error, msg string) error {
	f.mu.Lock()
	f.state = StateSelect
	f.revealed = nil
	f.mu.Unlock()

	if wallet.IsUserRejection(err) {
		f.log.Info("pack flow cancelled by user")
		return err
	}
	f.log.Error(msg, zap.Error(err))
	if errors.Is(err, ErrRandomnessTimeout) {
		f.alerter.Alert("Pack opening timed out. Your pack is safe, try opening it again.")
	} else {
		f.alerter.Alert(msg + ": " + err.Error())
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Reset abandons the current pack and returns to select.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.state = StateSelect
	f.revealed = nil
	f.mu.Unlock()
}

// ListUnopened returns the session owner's packs whose randomness has not
// resolved.
func (f *Flow) ListUnopened(ctx context.Context) ([]models.BoosterCard, error) {
	owner, err := f.session.Address()
	if err != nil {
		return nil, err
	}
	cards, err := f.booster.OwnedCards(ctx, owner, f.opts.Concurrency)
	if err != nil {
		return nil, err
	}
	var packs []models.BoosterCard
	for _, c := range cards {
		if !c.Opened {
			packs = append(packs, c)
		}
	}
	return packs, nil
}

// Buy mints one pack to the session address and opens it.
func (f *Flow) Buy(ctx context.Context) (models.BoosterCard, error) {
	if err := f.transition(StatePurchasing); err != nil {
		return models.BoosterCard{}, err
	}

	owner, err := f.session.Address()
	if err != nil {
		return models.BoosterCard{}, f.fail(err, "Connect your wallet first")
	}

	one := big.NewInt(1)
	price, err := f.booster.GetMintPrice(ctx, one)
	if err != nil {
		return models.BoosterCard{}, f.fail(err, "Failed to read mint price")
	}
	f.log.Info("minting pack", zap.String("owner", owner), zap.String("price_wei", price.String()))

	receipt, err := f.booster.Mint(ctx, f.session, one, owner, f.opts.Referrer, f.opts.Referrer, price)
	if err != nil {
		return models.BoosterCard{}, f.fail(err, "Failed to buy pack")
	}

	tokenID, err := f.booster.MintedTokenID(receipt, owner)
	if err != nil {
		f.log.Warn("minted token not found in logs, reading last owned token", zap.Error(err))
		tokenID, err = f.booster.LastOwnedToken(ctx, owner)
		if err != nil {
			return models.BoosterCard{}, f.fail(err, "Failed to locate minted pack")
		}
	}
	f.log.Info("pack minted", zap.String("token_id", tokenID.String()))

	return f.open(ctx, tokenID)
}

// Open opens an already owned pack.
func (f *Flow) Open(ctx context.Context, tokenID *big.Int) (models.BoosterCard, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return models.BoosterCard{}, errors.New("invalid token id")
	}
	return f.open(ctx, tokenID)
}

func (f *Flow) open(ctx context.Context, tokenID *big.Int) (models.BoosterCard, error) {
	if err := f.transition(StateOpening); err != nil {
		return models.BoosterCard{}, err
	}

	fee, err := f.booster.GetEntropyFee(ctx)
	if err != nil {
		return models.BoosterCard{}, f.fail(err, "Failed to read entropy fee")
	}
	if _, err := f.booster.Open(ctx, f.session, []*big.Int{tokenID}, fee); err != nil {
		return models.BoosterCard{}, f.fail(err, "Failed to open pack")
	}
	f.log.Info("pack open submitted, waiting for randomness", zap.String("token_id", tokenID.String()))

	poller := f.opts.Poller
	if poller.OnAttempt == nil {
		poller.OnAttempt = func(attempt int, err error) {
			f.log.Debug("rarity poll", zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	rarity, err := poller.Wait(ctx, f.booster, tokenID)
	if err != nil {
		return models.BoosterCard{}, f.fail(err, "Failed to reveal card")
	}

	card := rarity.Card(f.opts.Contract, tokenID)
	f.mu.Lock()
	f.revealed = &card
	f.mu.Unlock()
	if err := f.transition(StateRevealed); err != nil {
		return models.BoosterCard{}, err
	}
	f.log.Info("card revealed",
		zap.String("token_id", tokenID.String()),
		zap.String("rarity", card.RarityLabel),
		zap.Float64("multiplier", card.Multiplier),
	)
	return card, nil
}

// Play hands the revealed card to the game surface.
func (f *Flow) Play(ctx context.Context) error {
	card, ok := f.Revealed()
	if !ok {
		return ErrNothingRevealed
	}
	if err := f.transition(StatePlaying); err != nil {
		return err
	}
	return f.bus.Publish(ctx, events.ChannelGame, StartGameEvent(card))
}

// StartGameEvent is the message that starts the game with a card's boost.
func StartGameEvent(card models.BoosterCard) events.Event {
	payload := map[string]any{
		"multiplier":  card.Multiplier,
		"rarity":      int(card.Rarity),
		"rarity_name": card.Rarity.String(),
	}
	if card.TokenID != nil {
		payload["token_id"] = card.TokenID.String()
	}
	return events.Event{Type: events.EventStartGame, Payload: payload}
}

// SetMultiplierEvent tells a running game which boost to apply. The rarity
// is sent as a lowercase name.
func SetMultiplierEvent(card models.BoosterCard) events.Event {
	return events.Event{Type: events.EventSetMultiplier, Payload: map[string]any{
		"multiplier": card.Multiplier,
		"rarity":     strings.ToLower(card.Rarity.String()),
	}}
}

// BoostScore applies a rarity multiplier to a game score, rounding down.
func BoostScore(base int64, multiplier float64) int64 {
	if multiplier <= 0 {
		multiplier = 1
	}
	return int64(math.Floor(float64(base) * multiplier))
}

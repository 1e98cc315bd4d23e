package nft

import (
	"context"
	"errors"
	"strings"

	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source lists the NFTs an address holds.
type Source interface {
	Origin() models.Origin
	FetchOwned(ctx context.Context, owner string) ([]models.NFTMetadata, error)
}

// Aggregator merges a marketplace source with a general source.
type Aggregator struct {
	marketplace Source
	general     Source
	log         *zap.Logger
}

func NewAggregator(marketplace, general Source, log *zap.Logger) *Aggregator {
	return &Aggregator{marketplace: marketplace, general: general, log: log}
}

// FetchAll queries both sources concurrently. A failing source contributes
// nothing; the call fails only if both sources fail.
func (a *Aggregator) FetchAll(ctx context.Context, owner string) ([]models.NFTMetadata, error) {
	owner, err := wallet.NormalizeAddress(owner)
	if err != nil {
		return nil, err
	}

	var (
		g                     errgroup.Group
		market, general       []models.NFTMetadata
		marketErr, generalErr error
	)
	g.Go(func() error {
		market, marketErr = a.marketplace.FetchOwned(ctx, owner)
		return nil
	})
	g.Go(func() error {
		general, generalErr = a.general.FetchOwned(ctx, owner)
		return nil
	})
	_ = g.Wait()

	if marketErr != nil {
		a.log.Warn("marketplace NFT source failed", zap.String("owner", owner), zap.Error(marketErr))
	}
	if generalErr != nil {
		a.log.Warn("general NFT source failed", zap.String("owner", owner), zap.Error(generalErr))
	}
	if marketErr != nil && generalErr != nil {
		return nil, errors.Join(ErrAllSourcesFailed, marketErr, generalErr)
	}

	return Merge(market, general), nil
}

// Merge tags origins and returns marketplace items first, followed by
// general items whose collection is not already present.
func Merge(market, general []models.NFTMetadata) []models.NFTMetadata {
	out := make([]models.NFTMetadata, 0, len(market)+len(general))
	seen := make(map[string]struct{}, len(market))

	for _, n := range market {
		n.Origin = models.OriginMarketplace
		seen[strings.ToLower(n.Collection)] = struct{}{}
		out = append(out, n)
	}
	for _, n := range general {
		if _, dup := seen[strings.ToLower(n.Collection)]; dup {
			continue
		}
		n.Origin = models.OriginGeneral
		out = append(out, n)
	}
	return out
}

package contract

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vibescrow/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OfferReader is the read side of the escrow used for listing.
type OfferReader interface {
	NextOfferID(ctx context.Context) (uint64, error)
	GetOffer(ctx context.Context, id uint64) (*models.Offer, error)
	GetOfferNFTs(ctx context.Context, id uint64) ([]models.NFTRef, error)
}

// MaxListedOffers bounds one listing to the most recent ids.
const MaxListedOffers = 10_000

// ListOffers reads every offer id below nextOfferId with at most
// concurrency fetches in flight. Only the newest MaxListedOffers ids are
// read. A failed id is logged and skipped. The result is ordered by id.
func ListOffers(ctx context.Context, r OfferReader, concurrency int, log *zap.Logger) ([]models.Offer, error) {
	n, err := r.NextOfferID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read offer count: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	var first uint64
	if n > MaxListedOffers {
		first = n - MaxListedOffers
		log.Warn("offer count exceeds listing window, reading newest only",
			zap.Uint64("next_offer_id", n),
			zap.Uint64("first_id", first),
		)
	}

	var mu sync.Mutex
	offers := []models.Offer{}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for id := first; id < n; id++ {
		g.Go(func() error {
			o, err := FetchOffer(ctx, r, id)
			if err != nil {
				log.Warn("failed to load offer", zap.Uint64("offer_id", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			offers = append(offers, *o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(offers, func(a, b models.Offer) int { return cmp.Compare(a.ID, b.ID) })
	return offers, nil
}

// FetchOffer reads one offer and its bundled NFTs.
func FetchOffer(ctx context.Context, r OfferReader, id uint64) (*models.Offer, error) {
	o, err := r.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	nfts, err := r.GetOfferNFTs(ctx, id)
	if err != nil {
		return nil, err
	}
	o.ID = id
	o.Offered = nfts
	o.OfferedCount = len(nfts)
	return o, nil
}

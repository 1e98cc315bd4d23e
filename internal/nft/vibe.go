package nft

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

// Proxy actions accepted by VibeClient.Do.
const (
	ActionPacks               = "getPacks"
	ActionFeaturedPacks       = "getFeaturedPacks"
	ActionBoosterBoxesByOwner = "getBoosterBoxesByOwner"
	ActionContractInfo        = "getContractInfo"
	ActionMetadata            = "getMetadata"
	ActionRecentBoosterBoxes  = "getRecentBoosterBoxes"
)

const (
	defaultChainID        = "8453"
	defaultCollectionName = "Vibe.Market"
)

// VibeClient talks to the Wield boosterbox API behind Vibe.Market. It is
// the marketplace listing source.
type VibeClient struct {
	upstream
}

func NewVibeClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *VibeClient {
	return &VibeClient{
		upstream: newUpstream(baseURL, timeout, map[string]string{
			"API-KEY":      apiKey,
			"Content-Type": "application/json",
		}, log),
	}
}

func (c *VibeClient) WithCache(cache Cache) *VibeClient {
	c.cache = cache
	return c
}

func (c *VibeClient) Origin() models.Origin { return models.OriginMarketplace }

// Do forwards a proxy action with the marketplace's default paging and
// returns the upstream JSON unchanged.
func (c *VibeClient) Do(ctx context.Context, action string, params url.Values) (json.RawMessage, error) {
	p := func(key, fallback string) string {
		if v := params.Get(key); v != "" {
			return v
		}
		return fallback
	}

	var path, op string
	q := url.Values{}
	switch action {
	case ActionPacks:
		op, path = "packs", "/games"
		q.Set("limit", p("limit", "100"))
		q.Set("page", p("page", "1"))
		q.Set("chainId", p("chainId", defaultChainID))
		q.Set("isActive", "true")
	case ActionFeaturedPacks:
		op, path = "featured packs", "/featured"
		q.Set("limit", p("limit", "12"))
		q.Set("chainId", p("chainId", defaultChainID))
		q.Set("sortBy", p("sortBy", "trending"))
	case ActionBoosterBoxesByOwner:
		owner := params.Get("owner")
		if owner == "" {
			return nil, badRequest("Owner address required")
		}
		op, path = "owner NFTs", "/owner/"+url.PathEscape(owner)
		q.Set("limit", p("limit", "50"))
		q.Set("page", p("page", "1"))
		q.Set("chainId", p("chainId", defaultChainID))
		q.Set("includeMetadata", p("includeMetadata", "true"))
		q.Set("includeContractDetails", p("includeContractDetails", "true"))
	case ActionContractInfo:
		contract := params.Get("contractAddress")
		if contract == "" {
			return nil, badRequest("Contract address required")
		}
		op, path = "contract info", "/contractAddress/"+url.PathEscape(contract)
	case ActionMetadata:
		contract, tokenID := params.Get("contractAddress"), params.Get("tokenId")
		if contract == "" || tokenID == "" {
			return nil, badRequest("Contract address and token ID required")
		}
		op, path = "metadata", "/metadata/"+url.PathEscape(contract)+"/"+url.PathEscape(tokenID)
	case ActionRecentBoosterBoxes:
		op, path = "recent boxes", "/recent"
		q.Set("limit", p("limit", "20"))
		q.Set("chainId", p("chainId", defaultChainID))
	default:
		return nil, ErrInvalidAction
	}

	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return c.get(ctx, op, target)
}

// FetchOwned lists booster boxes held by owner on Vibe.Market.
func (c *VibeClient) FetchOwned(ctx context.Context, owner string) ([]models.NFTMetadata, error) {
	owner, err := wallet.NormalizeAddress(owner)
	if err != nil {
		return nil, err
	}
	body, err := c.Do(ctx, ActionBoosterBoxesByOwner, url.Values{"owner": {owner}})
	if err != nil {
		return nil, err
	}

	var items []models.NFTMetadata
	vibeItems(gjson.ParseBytes(body)).ForEach(func(_, n gjson.Result) bool {
		if item, ok := parseVibeNFT(n, owner); ok {
			items = append(items, item)
		}
		return true
	})
	return items, nil
}

// vibeItems finds the result array; the API has wrapped it under several keys.
func vibeItems(r gjson.Result) gjson.Result {
	if r.IsArray() {
		return r
	}
	for _, key := range []string{"boosterBoxes", "boxes", "nfts", "data", "results"} {
		if v := r.Get(key); v.IsArray() {
			return v
		}
	}
	return gjson.Result{}
}

func parseVibeNFT(n gjson.Result, owner string) (models.NFTMetadata, bool) {
	collection := strings.ToLower(first(n, "contractAddress", "contract.address", "collection", "contractDetails.address"))
	tokenID := first(n, "tokenId", "token_id", "id")
	if collection == "" || tokenID == "" {
		return models.NFTMetadata{}, false
	}

	item := models.NFTMetadata{
		TokenID:        decimalTokenID(tokenID),
		Collection:     collection,
		CollectionName: orDefault(first(n, "contractDetails.name", "collectionName", "contract.name"), defaultCollectionName),
		Name:           orDefault(first(n, "metadata.name", "name"), "#"+tokenID),
		Image:          orDefault(first(n, "metadata.imageUrl", "metadata.image", "imageUrl", "image"), models.PlaceholderImage),
		Owner:          owner,
		Origin:         models.OriginMarketplace,
	}

	for _, path := range []string{"metadata.rarity", "cardDetails.rarity", "rarity"} {
		if v := n.Get(path); v.Type == gjson.Number {
			if r := models.Rarity(v.Uint()); r.Valid() && v.Uint() <= 255 {
				item.Rarity = &r
			}
			break
		}
	}
	return item, true
}

package nft

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/vibescrow/backend/internal/models"
	"github.com/vibescrow/backend/internal/wallet"
	"go.uber.org/zap"
)

// Proxy actions accepted by AlchemyClient.Do.
const (
	ActionNFTsForOwner     = "getNFTsForOwner"
	ActionContractMetadata = "getContractMetadata"
	ActionNFTMetadata      = "getNFTMetadata"
)

// AlchemyClient talks to the Alchemy NFT API v2 on Base. It is the general
// listing source.
type AlchemyClient struct {
	upstream
	apiKey string
}

func NewAlchemyClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *AlchemyClient {
	return &AlchemyClient{
		upstream: newUpstream(baseURL, timeout, nil, log),
		apiKey:   apiKey,
	}
}

// WithCache returns c with cache enabled for pass-through requests.
func (c *AlchemyClient) WithCache(cache Cache) *AlchemyClient {
	c.cache = cache
	return c
}

func (c *AlchemyClient) Origin() models.Origin { return models.OriginGeneral }

func (c *AlchemyClient) endpoint(method string, q url.Values) string {
	return fmt.Sprintf("%s/%s/%s?%s", c.baseURL, url.PathEscape(c.apiKey), method, q.Encode())
}

// Do forwards a proxy action and returns the upstream JSON unchanged.
// Missing parameters yield a RequestError with "Invalid request".
func (c *AlchemyClient) Do(ctx context.Context, action string, params url.Values) (json.RawMessage, error) {
	owner := params.Get("owner")
	contract := params.Get("contractAddress")
	tokenID := params.Get("tokenId")

	var target string
	switch {
	case action == ActionNFTsForOwner && owner != "":
		target = c.endpoint(action, url.Values{
			"owner":        {owner},
			"withMetadata": {"true"},
			"pageSize":     {"100"},
		})
	case action == ActionContractMetadata && contract != "":
		target = c.endpoint(action, url.Values{"contractAddress": {contract}})
	case action == ActionNFTMetadata && contract != "" && tokenID != "":
		target = c.endpoint(action, url.Values{
			"contractAddress": {contract},
			"tokenId":         {tokenID},
			"refreshCache":    {"false"},
		})
	default:
		return nil, badRequest("Invalid request")
	}

	body, err := c.get(ctx, action, target)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchOwned lists NFTs held by owner.
func (c *AlchemyClient) FetchOwned(ctx context.Context, owner string) ([]models.NFTMetadata, error) {
	owner, err := wallet.NormalizeAddress(owner)
	if err != nil {
		return nil, err
	}
	body, err := c.Do(ctx, ActionNFTsForOwner, url.Values{"owner": {owner}})
	if err != nil {
		return nil, err
	}

	var items []models.NFTMetadata
	gjson.GetBytes(body, "ownedNfts").ForEach(func(_, n gjson.Result) bool {
		items = append(items, parseAlchemyNFT(n, owner, "0"))
		return true
	})
	return items, nil
}

type CollectionInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Image   string `json:"image"`
}

func (c *AlchemyClient) ContractMetadata(ctx context.Context, contract string) (*CollectionInfo, error) {
	contract, err := wallet.NormalizeAddress(contract)
	if err != nil {
		return nil, err
	}
	body, err := c.Do(ctx, ActionContractMetadata, url.Values{"contractAddress": {contract}})
	if err != nil {
		return nil, err
	}
	r := gjson.ParseBytes(body)
	return &CollectionInfo{
		Address: contract,
		Name:    orDefault(first(r, "name", "symbol", "contractMetadata.name", "contractMetadata.symbol"), "Unknown"),
		Image:   first(r, "openSeaMetadata.imageUrl", "contractMetadata.openSea.imageUrl"),
	}, nil
}

func (c *AlchemyClient) NFTMetadata(ctx context.Context, contract, tokenID string) (*models.NFTMetadata, error) {
	contract, err := wallet.NormalizeAddress(contract)
	if err != nil {
		return nil, err
	}
	body, err := c.Do(ctx, ActionNFTMetadata, url.Values{"contractAddress": {contract}, "tokenId": {tokenID}})
	if err != nil {
		return nil, err
	}
	n := parseAlchemyNFT(gjson.ParseBytes(body), "", tokenID)
	n.Collection = contract
	return &n, nil
}

func parseAlchemyNFT(n gjson.Result, owner, fallbackTokenID string) models.NFTMetadata {
	tokenID := decimalTokenID(orDefault(first(n, "tokenId", "id.tokenId"), fallbackTokenID))
	return models.NFTMetadata{
		TokenID:        tokenID,
		Collection:     strings.ToLower(first(n, "contract.address")),
		CollectionName: orDefault(first(n, "contract.name", "contract.symbol", "contractMetadata.name", "contractMetadata.symbol"), "Unknown Collection"),
		Name:           orDefault(first(n, "metadata.name", "title"), "#"+tokenID),
		Image:          orDefault(first(n, "media.0.gateway", "media.0.raw", "metadata.image"), models.PlaceholderImage),
		Owner:          owner,
		Origin:         models.OriginGeneral,
	}
}

// decimalTokenID renders hex ids (v2 "id.tokenId") in decimal.
func decimalTokenID(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if v, ok := new(big.Int).SetString(s[2:], 16); ok {
			return v.String()
		}
	}
	return s
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

package models

// Origin tags which listing source an NFT came from.
type Origin string

const (
	OriginMarketplace Origin = "vibe_market"
	OriginGeneral     Origin = "alchemy"
)

const PlaceholderImage = "/digital-art-collection.png"

type NFTMetadata struct {
	TokenID        string  `json:"token_id"`
	Collection     string  `json:"collection"`
	CollectionName string  `json:"collection_name"`
	Name           string  `json:"name"`
	Image          string  `json:"image"`
	Owner          string  `json:"owner"`
	Rarity         *Rarity `json:"rarity,omitempty"`
	Origin         Origin  `json:"origin"`
}

func (n NFTMetadata) IsMarketplace() bool {
	return n.Origin == OriginMarketplace
}

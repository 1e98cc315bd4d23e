package models

import (
	"math/big"
)

// Rarity mirrors the uint8 rarity enum returned by BoosterDrop.getTokenRarity.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
	RarityMythic
)

var rarityLabels = map[Rarity]string{
	RarityCommon:    "Common",
	RarityUncommon:  "Uncommon",
	RarityRare:      "Rare",
	RarityEpic:      "Epic",
	RarityLegendary: "Legendary",
	RarityMythic:    "Mythic",
}

// Score multipliers used by the companion game.
var rarityMultipliers = map[Rarity]float64{
	RarityCommon:    1,
	RarityUncommon:  1.5,
	RarityRare:      2,
	RarityEpic:      3,
	RarityLegendary: 4,
	RarityMythic:    5,
}

func (r Rarity) Valid() bool {
	_, ok := rarityLabels[r]
	return ok
}

func (r Rarity) String() string {
	if label, ok := rarityLabels[r]; ok {
		return label
	}
	return "Unknown"
}

// Multiplier returns the score multiplier for r. Unknown values score as Common.
func (r Rarity) Multiplier() float64 {
	if m, ok := rarityMultipliers[r]; ok {
		return m
	}
	return 1
}

// CardAttributes are display-only values derived from a card's random value.
type CardAttributes struct {
	AttackPower int `json:"attack_power"`
	Defense     int `json:"defense"`
	Speed       int `json:"speed"`
	Luck        int `json:"luck"`
	Wear        int `json:"wear"`        // 0-99
	FoilChance  int `json:"foil_chance"` // percent
}

var attributeSeedModulus = big.NewInt(1_000_000)

// DeriveAttributes computes the card attributes from randomValue.
// The seed is randomValue mod 1e6, so the result is stable for any input size.
func DeriveAttributes(randomValue *big.Int) CardAttributes {
	if randomValue == nil {
		randomValue = new(big.Int)
	}
	seed := int(new(big.Int).Mod(randomValue, attributeSeedModulus).Int64())

	foil := seed / 10000
	if foil > 100 {
		foil = 100
	}

	return CardAttributes{
		AttackPower: 100 + seed%50,
		Defense:     80 + (seed>>8)%30,
		Speed:       70 + (seed>>16)%40,
		Luck:        50 + (seed>>24)%50,
		Wear:        seed % 100,
		FoilChance:  foil,
	}
}

type BoosterCard struct {
	TokenID         *big.Int       `json:"token_id"`
	Contract        string         `json:"contract"`
	Rarity          Rarity         `json:"rarity"`
	RarityLabel     string         `json:"rarity_label"`
	RandomValue     *big.Int       `json:"random_value"`
	TokenRandomness string         `json:"token_randomness"` // 0x-prefixed bytes32
	Opened          bool           `json:"opened"`
	Multiplier      float64        `json:"multiplier"`
	Attributes      CardAttributes `json:"attributes"`
}

// NewOpenedCard builds a resolved card with its derived attributes.
func NewOpenedCard(contract string, tokenID *big.Int, rarity Rarity, randomValue *big.Int, tokenRandomness string) BoosterCard {
	return BoosterCard{
		TokenID:         tokenID,
		Contract:        contract,
		Rarity:          rarity,
		RarityLabel:     rarity.String(),
		RandomValue:     randomValue,
		TokenRandomness: tokenRandomness,
		Opened:          true,
		Multiplier:      rarity.Multiplier(),
		Attributes:      DeriveAttributes(randomValue),
	}
}

// NewUnopenedCard builds a pack whose randomness has not resolved yet.
func NewUnopenedCard(contract string, tokenID *big.Int) BoosterCard {
	return BoosterCard{
		TokenID:         tokenID,
		Contract:        contract,
		Rarity:          RarityCommon,
		RarityLabel:     "Unopened",
		RandomValue:     new(big.Int),
		TokenRandomness: "0x",
	}
}

type CardSummary struct {
	TotalCards      int  `json:"total_cards"`
	UnopenedPacks   int  `json:"unopened_packs"`
	RareCount       int  `json:"rare_count"`
	EpicCount       int  `json:"epic_count"`
	LegendaryCount  int  `json:"legendary_count"`
	MythicCount     int  `json:"mythic_count"`
	HasSpecialCards bool `json:"has_special_cards"`
}

func Summarize(cards []BoosterCard) CardSummary {
	s := CardSummary{TotalCards: len(cards)}
	for _, c := range cards {
		if !c.Opened {
			s.UnopenedPacks++
			continue
		}
		switch c.Rarity {
		case RarityRare:
			s.RareCount++
		case RarityEpic:
			s.EpicCount++
		case RarityLegendary:
			s.LegendaryCount++
		case RarityMythic:
			s.MythicCount++
		}
	}
	s.HasSpecialCards = s.MythicCount > 0 || s.LegendaryCount > 0
	return s
}

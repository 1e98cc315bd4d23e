package models

import (
	"math/big"
	"testing"
)

func TestRarityMultiplier(t *testing.T) {
	tests := []struct {
		rarity   Rarity
		expected float64
	}{
		{RarityCommon, 1},
		{RarityUncommon, 1.5},
		{RarityRare, 2},
		{RarityEpic, 3},
		{RarityLegendary, 4},
		{RarityMythic, 5},
		{Rarity(42), 1},
	}

	for _, tt := range tests {
		t.Run(tt.rarity.String(), func(t *testing.T) {
			if got := tt.rarity.Multiplier(); got != tt.expected {
				t.Errorf("Multiplier(%d) = %v, want %v", tt.rarity, got, tt.expected)
			}
		})
	}
}

func TestRarityValid(t *testing.T) {
	for r := Rarity(0); r <= RarityMythic; r++ {
		if !r.Valid() {
			t.Errorf("rarity %d should be valid", r)
		}
	}
	if Rarity(6).Valid() {
		t.Error("rarity 6 should be invalid")
	}
}

func TestDeriveAttributes(t *testing.T) {
	tests := []struct {
		name     string
		random   *big.Int
		expected CardAttributes
	}{
		{"zero", big.NewInt(0), CardAttributes{100, 80, 70, 50, 0, 0}},
		{"nil", nil, CardAttributes{100, 80, 70, 50, 0, 0}},
		{"seed 456789", big.NewInt(123456789), CardAttributes{139, 94, 76, 50, 89, 45}},
		{"seed 999999", big.NewInt(999999), CardAttributes{149, 86, 85, 50, 99, 99}},
		{"wraps at 1e6", big.NewInt(1_000_000), CardAttributes{100, 80, 70, 50, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveAttributes(tt.random)
			if got != tt.expected {
				t.Errorf("DeriveAttributes(%v) = %+v, want %+v", tt.random, got, tt.expected)
			}
		})
	}
}

func TestDeriveAttributesLargeValueIsDeterministic(t *testing.T) {
	v, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	a := DeriveAttributes(v)
	b := DeriveAttributes(new(big.Int).Set(v))
	if a != b {
		t.Fatalf("same input produced %+v and %+v", a, b)
	}
	if a.FoilChance > 100 || a.Wear > 99 {
		t.Fatalf("attributes out of range: %+v", a)
	}
}

func TestSummarize(t *testing.T) {
	cards := []BoosterCard{
		NewOpenedCard("0xdrop", big.NewInt(1), RarityMythic, big.NewInt(5), "0x"),
		NewOpenedCard("0xdrop", big.NewInt(2), RarityRare, big.NewInt(6), "0x"),
		NewOpenedCard("0xdrop", big.NewInt(3), RarityCommon, big.NewInt(7), "0x"),
		NewUnopenedCard("0xdrop", big.NewInt(4)),
	}

	s := Summarize(cards)
	if s.TotalCards != 4 || s.UnopenedPacks != 1 || s.MythicCount != 1 || s.RareCount != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if !s.HasSpecialCards {
		t.Error("expected HasSpecialCards with a mythic card")
	}

	if Summarize(cards[1:]).HasSpecialCards {
		t.Error("rare cards alone are not special")
	}
}

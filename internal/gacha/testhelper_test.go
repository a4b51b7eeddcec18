package gacha

// exampleRates are the published rates used across the tests.
var exampleRates = RateVector{
	Common:    0.513,
	Rare:      0.43,
	Epic:      0.051,
	Legendary: 0.006,
	Mythic:    0,
}

var examplePity = PityConfig{
	SoftPityStart:               74,
	HardPity:                    90,
	SoftPityRateIncrease:        0.06,
	GuaranteedFeaturedAfterLoss: true,
}

func exampleBanner() Banner {
	return Banner{
		ID:           "limited-1",
		Type:         "character",
		BaseRates:    exampleRates,
		Pity:         examplePity,
		FeaturedRate: 0.5,
		Pool: []Item{
			{ID: "sword", Rarity: Common},
			{ID: "bow", Rarity: Common},
			{ID: "mage", Rarity: Rare},
			{ID: "knight", Rarity: Epic},
			{ID: "dragon", Rarity: Legendary, Featured: true},
			{ID: "phoenix", Rarity: Legendary},
			{ID: "titan", Rarity: Legendary},
		},
	}
}

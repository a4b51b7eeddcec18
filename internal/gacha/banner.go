package gacha

import (
	"fmt"
	"time"
)

// Outcome reports one draw's result under banner rules.
type Outcome struct {
	ItemID          string `json:"itemId"`
	Rarity          Rarity `json:"rarity"`
	IsFeatured      bool   `json:"isFeatured"`
	PityCountAtDraw int    `json:"pityCountAtDraw"` // 1-based draw number since the last top-tier hit
	IsGuaranteed    bool   `json:"isGuaranteed"`
	IsNew           bool   `json:"isNew"`
	SoftPity        bool   `json:"softPity,omitempty"`
	HardPity        bool   `json:"hardPity,omitempty"`
}

// Banner is everything one draw needs: base rates, pity rules and the pool.
type Banner struct {
	ID           string
	Type         string
	BaseRates    RateVector
	Pity         PityConfig
	FeaturedRate float64
	Pool         []Item
}

// Validate checks the rates, the pity rules and that the pool can resolve a draw.
func (b Banner) Validate() error {
	if err := b.BaseRates.Validate(); err != nil {
		return err
	}
	if err := b.Pity.Validate(); err != nil {
		return err
	}
	if err := validateProb(b.FeaturedRate); err != nil {
		return fmt.Errorf("featured rate: %w", err)
	}
	if len(b.Pool) == 0 {
		return ErrEmptyItemPool
	}
	return nil
}

// Draw performs one banner draw against state and advances it.
// Order is fixed: rate engine, rarity roll, featured roll, item pick, pity transition.
// Notes:
// - Hard pity draws are always guaranteed.
// - A top-tier hit forced featured by the carry-over flag is guaranteed too.
func (b Banner) Draw(state *PityState, rng RandomSource, at time.Time) (Outcome, error) {
	if rng == nil {
		rng = DefaultRNG()
	}
	adj := AdjustRates(b.BaseRates, b.Pity, state.PityCounter)
	rarity := SampleRarity(adj.Rates, rng)

	featured, forced := false, false
	if rarity.IsTopTier() {
		forced = state.ForcesFeatured(b.Pity)
		featured = SampleFeatured(b.FeaturedRate, forced, rng)
	}

	item, err := b.pick(rarity, featured, rng)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		ItemID:          item.ID,
		Rarity:          rarity,
		IsFeatured:      featured,
		PityCountAtDraw: state.PityCounter + 1,
		IsGuaranteed:    adj.IsHardPity || forced,
		SoftPity:        adj.IsSoftPity,
		HardPity:        adj.IsHardPity,
	}
	state.Advance(b.Pity, rarity, featured, at)
	return out, nil
}

// pick resolves the item for a rarity. Featured top-tier hits prefer featured
// items (weighted); non-featured top-tier hits prefer the rest of the tier.
func (b Banner) pick(r Rarity, featured bool, rng RandomSource) (Item, error) {
	if !r.IsTopTier() {
		return SelectItem(b.Pool, r, rng)
	}
	var split []Item
	for _, it := range b.Pool {
		if it.Rarity == r && it.Featured == featured {
			split = append(split, it)
		}
	}
	if len(split) == 0 {
		return SelectItem(b.Pool, r, rng)
	}
	if featured {
		return SelectWeighted(split, rng)
	}
	return SelectItem(split, r, rng)
}

package game

import (
	"fmt"
	"slices"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/token"
)

// Resolve validates a merged config and normalizes it into a Banner.
func Resolve(bannerType, bannerID string, cfg RawConfig) (Banner, error) {
	if err := ValidateRaw(cfg); err != nil {
		return Banner{}, err
	}
	rates, err := gacha.RatesFromMap(cfg.Rates)
	if err != nil {
		return Banner{}, err
	}

	pool := make([]gacha.Item, 0, len(cfg.Pool))
	for _, it := range cfg.Pool {
		r, _ := gacha.ParseRarity(it.Rarity) // checked by ValidateRaw
		pool = append(pool, gacha.Item{
			ID:       it.ID,
			Rarity:   r,
			Weight:   it.Weight,
			Featured: slices.Contains(cfg.Featured, it.ID),
		})
	}

	b := Banner{
		ScopeID:            ScopeID(bannerType, bannerID),
		Type:               bannerType,
		ID:                 bannerID,
		Name:               cfg.Name,
		Version:            cfg.Version,
		Active:             deref(cfg.Active, true),
		Currency:           cfg.Currency,
		RequiresCompliance: deref(cfg.RequiresCompliance, false),
		Cost: token.Token{
			Name:              cfg.Currency,
			PerDraw:           *cfg.Cost.PerDraw,
			MultiPullCount:    deref(cfg.Cost.MultiPullCount, 0),
			MultiPullDiscount: deref(cfg.Cost.MultiPullDiscount, 0),
		},
		Draw: gacha.Banner{
			ID:        bannerID,
			Type:      bannerType,
			BaseRates: rates,
			Pity: gacha.PityConfig{
				SoftPityStart:               deref(cfg.Pity.SoftStart, 0),
				HardPity:                    *cfg.Pity.Hard,
				SoftPityRateIncrease:        deref(cfg.Pity.SoftIncrease, 0),
				GuaranteedFeaturedAfterLoss: deref(cfg.Pity.GuaranteedFeaturedAfterLoss, false),
				WeaponPityEnabled:           deref(cfg.Pity.WeaponPityEnabled, false),
				WeaponPityThreshold:         deref(cfg.Pity.WeaponPityThreshold, 0),
			},
			FeaturedRate: deref(cfg.FeaturedRate, 0.5),
			Pool:         pool,
		},
	}
	if cfg.StartsAt != nil {
		b.StartsAt = *cfg.StartsAt
	}
	if cfg.EndsAt != nil {
		b.EndsAt = *cfg.EndsAt
	}
	if err := b.Cost.Validate(); err != nil {
		return Banner{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := b.Draw.Validate(); err != nil {
		return Banner{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return b, nil
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

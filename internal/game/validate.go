package game

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/xtding233/gacha-economy/internal/gacha"
)

var ErrInvalidConfig = errors.New("config validation failed")

// ValidateRaw checks semantic constraints of a merged RawConfig.
func ValidateRaw(cfg RawConfig) error {
	var errs []string

	// rates
	if len(cfg.Rates) == 0 {
		errs = append(errs, "rates is required")
	}
	sum := 0.0
	for name, p := range cfg.Rates {
		if _, err := gacha.ParseRarity(name); err != nil {
			errs = append(errs, fmt.Sprintf("rates.%s: unknown rarity", name))
		}
		if !(p >= 0 && p <= 1) {
			errs = append(errs, fmt.Sprintf("rates.%s must be in [0,1]", name))
		}
		sum += p
	}
	if len(cfg.Rates) > 0 && math.Abs(sum-1) > gacha.RateTolerance {
		errs = append(errs, fmt.Sprintf("rates must sum to 1 (got %.6f)", sum))
	}

	// pity
	if cfg.Pity == nil || cfg.Pity.Hard == nil {
		errs = append(errs, "pity.hard is required")
	} else {
		if *cfg.Pity.Hard < 1 {
			errs = append(errs, "pity.hard must be >= 1")
		}
		if cfg.Pity.SoftStart != nil {
			if *cfg.Pity.SoftStart < 0 || *cfg.Pity.SoftStart >= *cfg.Pity.Hard {
				errs = append(errs, "pity.soft_start must satisfy 0 <= soft_start < hard")
			}
		}
		if cfg.Pity.SoftIncrease != nil && (*cfg.Pity.SoftIncrease < 0 || *cfg.Pity.SoftIncrease > 1) {
			errs = append(errs, "pity.soft_increase must be in [0,1]")
		}
		if cfg.Pity.WeaponPityEnabled != nil && *cfg.Pity.WeaponPityEnabled {
			if cfg.Pity.WeaponPityThreshold == nil || *cfg.Pity.WeaponPityThreshold < 1 {
				errs = append(errs, "pity.weapon_pity_threshold must be >= 1 when weapon pity is enabled")
			}
		}
	}

	if cfg.FeaturedRate != nil && !(*cfg.FeaturedRate >= 0 && *cfg.FeaturedRate <= 1) {
		errs = append(errs, "featured_rate must be in [0,1]")
	}

	// cost
	if cfg.Cost == nil || cfg.Cost.PerDraw == nil {
		errs = append(errs, "cost.per_draw is required")
	} else {
		if *cfg.Cost.PerDraw < 0 {
			errs = append(errs, "cost.per_draw must be >= 0")
		}
		if cfg.Cost.MultiPullCount != nil && *cfg.Cost.MultiPullCount < 0 {
			errs = append(errs, "cost.multi_pull_count must be >= 0")
		}
		if cfg.Cost.MultiPullDiscount != nil && (*cfg.Cost.MultiPullDiscount < 0 || *cfg.Cost.MultiPullDiscount >= 1) {
			errs = append(errs, "cost.multi_pull_discount must be in [0,1)")
		}
	}
	if cfg.Currency == "" {
		errs = append(errs, "currency is required")
	}

	// window
	if cfg.StartsAt != nil && cfg.EndsAt != nil && !cfg.EndsAt.After(*cfg.StartsAt) {
		errs = append(errs, "ends_at must be after starts_at")
	}

	// pool
	if len(cfg.Pool) == 0 {
		errs = append(errs, "pool must not be empty")
	}
	ids := make([]string, 0, len(cfg.Pool))
	for i, it := range cfg.Pool {
		if it.ID == "" {
			errs = append(errs, fmt.Sprintf("pool[%d].id is required", i))
		} else if slices.Contains(ids, it.ID) {
			errs = append(errs, fmt.Sprintf("pool[%d].id %q is duplicated", i, it.ID))
		}
		ids = append(ids, it.ID)
		if _, err := gacha.ParseRarity(it.Rarity); err != nil {
			errs = append(errs, fmt.Sprintf("pool[%d].rarity %q is unknown", i, it.Rarity))
		}
		if it.Weight < 0 {
			errs = append(errs, fmt.Sprintf("pool[%d].weight must be >= 0", i))
		}
	}
	for _, id := range cfg.Featured {
		if !slices.Contains(ids, id) {
			errs = append(errs, fmt.Sprintf("featured item %q is not in pool", id))
		}
	}

	if len(errs) > 0 {
		slices.Sort(errs) // map iteration above is unordered
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

package gacha

import "time"

// PityState tracks bad luck for one (player, banner scope).
type PityState struct {
	PityCounter        int       `json:"pityCounter"`        // draws since the last top-tier hit
	GuaranteedFeatured bool      `json:"guaranteedFeatured"` // next top-tier hit is forced featured
	WeaponPityCounter  int       `json:"weaponPityCounter"`  // consecutive non-featured top-tier hits
	LastPullAt         time.Time `json:"lastPullAt"`
}

// ForcesFeatured reports whether the next top-tier hit must be featured,
// either from the 50/50 carry-over or from weapon pity.
func (s PityState) ForcesFeatured(cfg PityConfig) bool {
	if s.GuaranteedFeatured {
		return true
	}
	return cfg.WeaponPityEnabled && cfg.WeaponPityThreshold > 0 && s.WeaponPityCounter >= cfg.WeaponPityThreshold
}

// Advance applies one completed draw.
// - Miss (below top tier): PityCounter++.
// - Top-tier hit: PityCounter resets. A featured hit clears the guarantee; a
// non-featured hit sets it when GuaranteedFeaturedAfterLoss is enabled.
func (s *PityState) Advance(cfg PityConfig, r Rarity, featured bool, at time.Time) {
	s.LastPullAt = at
	if !r.IsTopTier() {
		s.PityCounter++
		return
	}
	s.PityCounter = 0
	if featured {
		s.GuaranteedFeatured = false
		s.WeaponPityCounter = 0
		return
	}
	if cfg.GuaranteedFeaturedAfterLoss {
		s.GuaranteedFeatured = true
	}
	if cfg.WeaponPityEnabled {
		s.WeaponPityCounter++
	}
}

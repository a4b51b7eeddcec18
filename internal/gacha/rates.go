package gacha

import (
	"encoding/json"
	"math"
)

// RateVector holds one probability per tier, indexed by Rarity.
type RateVector [numRarities]float64

// Sum adds the entries rarest first.
func (v RateVector) Sum() float64 {
	var s float64
	for _, r := range RarestFirst {
		s += v[r]
	}
	return s
}

// Normalized divides every entry by the sum. A zero vector is returned unchanged.
func (v RateVector) Normalized() RateVector {
	s := v.Sum()
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return v
	}
	var out RateVector
	for _, r := range RarestFirst {
		out[r] = v[r] / s
	}
	return out
}

// MarshalJSON writes the vector as {"common":0.5,...}.
func (v RateVector) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, numRarities)
	for _, r := range RarestFirst {
		m[r.String()] = v[r]
	}
	return json.Marshal(m)
}

func (v *RateVector) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out, err := RatesFromMap(m)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// RatesFromMap builds a vector from tier names. Missing tiers are zero.
func RatesFromMap(m map[string]float64) (RateVector, error) {
	var v RateVector
	for k, p := range m {
		r, err := ParseRarity(k)
		if err != nil {
			return RateVector{}, err
		}
		v[r] = p
	}
	return v, nil
}

// PityConfig controls soft/hard pity and the featured guarantee.
// Example: SoftPityStart=74, HardPity=90, SoftPityRateIncrease=0.06 → from the 75th draw
// the legendary rate climbs by 6 points per draw, and the 90th draw is a guaranteed legendary.
type PityConfig struct {
	SoftPityStart               int     `json:"softPityStart"`
	HardPity                    int     `json:"hardPity"`
	SoftPityRateIncrease        float64 `json:"softPityRateIncrease"`
	GuaranteedFeaturedAfterLoss bool    `json:"guaranteedFeaturedAfterLoss"`
	WeaponPityEnabled           bool    `json:"weaponPityEnabled,omitempty"`
	WeaponPityThreshold         int     `json:"weaponPityThreshold,omitempty"`
}

// Adjusted is the Rate Engine output for one upcoming draw.
type Adjusted struct {
	Rates      RateVector
	IsSoftPity bool
	IsHardPity bool
}

// AdjustRates computes the vector for the draw after currentPity misses.
// - If currentPity >= HardPity-1: the upcoming draw is the hard pity draw, legendary is certain.
// - Else if currentPity >= SoftPityStart: legendary gains (currentPity-SoftPityStart+1)*increase,
// capped at 1, and the other tiers shrink proportionally to make room.
// - Else: base rates.
// The result is always re-normalized.
func AdjustRates(base RateVector, cfg PityConfig, currentPity int) Adjusted {
	if cfg.HardPity > 0 && currentPity >= cfg.HardPity-1 {
		var v RateVector
		v[Legendary] = 1
		return Adjusted{Rates: v, IsHardPity: true}
	}

	if cfg.SoftPityRateIncrease > 0 && currentPity >= cfg.SoftPityStart {
		pullsInto := currentPity - cfg.SoftPityStart + 1
		additional := float64(pullsInto) * cfg.SoftPityRateIncrease
		newLegendary := math.Min(base[Legendary]+additional, 1.0)
		increase := newLegendary - base[Legendary]

		var totalOther float64
		for _, r := range RarestFirst {
			if r != Legendary {
				totalOther += base[r]
			}
		}

		out := base
		out[Legendary] = newLegendary
		scale := 0.0
		if totalOther > 0 {
			scale = math.Max((totalOther-increase)/totalOther, 0)
		}
		for _, r := range RarestFirst {
			if r != Legendary {
				out[r] = base[r] * scale
			}
		}
		return Adjusted{Rates: out.Normalized(), IsSoftPity: true}
	}

	return Adjusted{Rates: base.Normalized()}
}

package gacha

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidProb   = errors.New("invalid probability p; must be 0..1")
	ErrInvalidRates  = errors.New("invalid rate vector")
	ErrPityConfig    = errors.New("invalid pity config")
	ErrEmptyItemPool = errors.New("empty item pool")
)

// RateTolerance is how far a configured vector may drift from summing to 1.
const RateTolerance = 1e-4

func validateProb(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return ErrInvalidProb
	}
	if p < 0 || p > 1 {
		return ErrInvalidProb
	}
	return nil
}

// Validate checks every entry is a probability and the total is 1 within RateTolerance.
func (v RateVector) Validate() error {
	for _, r := range RarestFirst {
		if err := validateProb(v[r]); err != nil {
			return fmt.Errorf("%w: %s=%v", ErrInvalidRates, r, v[r])
		}
	}
	if s := v.Sum(); math.Abs(s-1) > RateTolerance {
		return fmt.Errorf("%w: sum=%v", ErrInvalidRates, s)
	}
	return nil
}

// Validate checks 0 <= SoftPityStart < HardPity and a sane increase.
func (c PityConfig) Validate() error {
	if c.HardPity <= 0 {
		return fmt.Errorf("%w: hard pity must be >= 1", ErrPityConfig)
	}
	if c.SoftPityStart < 0 || c.SoftPityStart >= c.HardPity {
		return fmt.Errorf("%w: need 0 <= soft pity start < hard pity", ErrPityConfig)
	}
	if math.IsNaN(c.SoftPityRateIncrease) || c.SoftPityRateIncrease < 0 || c.SoftPityRateIncrease > 1 {
		return fmt.Errorf("%w: soft pity increase must be in [0,1]", ErrPityConfig)
	}
	if c.WeaponPityEnabled && c.WeaponPityThreshold <= 0 {
		return fmt.Errorf("%w: weapon pity threshold must be >= 1", ErrPityConfig)
	}
	return nil
}

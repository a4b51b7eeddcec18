package gacha

import (
	"testing"
	"time"
)

func TestPityAdvance(t *testing.T) {
	var s PityState
	now := time.Unix(1700000000, 0)
	for i := 0; i < 9; i++ {
		s.Advance(examplePity, Rare, false, now)
	}
	if s.PityCounter != 9 {
		t.Fatalf("count=%d want 9", s.PityCounter)
	}
	s.Advance(examplePity, Legendary, false, now)
	if s.PityCounter != 0 {
		t.Fatalf("count should reset after a top-tier hit; got %d", s.PityCounter)
	}
	if !s.GuaranteedFeatured {
		t.Fatalf("losing the 50/50 must set the guarantee")
	}
	s.Advance(examplePity, Mythic, true, now)
	if s.PityCounter != 0 || s.GuaranteedFeatured {
		t.Fatalf("featured hit must clear the guarantee; got %+v", s)
	}
	if !s.LastPullAt.Equal(now) {
		t.Fatalf("last pull not recorded")
	}
}

func TestPityAdvanceWithoutCarryOver(t *testing.T) {
	cfg := examplePity
	cfg.GuaranteedFeaturedAfterLoss = false
	var s PityState
	s.Advance(cfg, Legendary, false, time.Time{})
	if s.GuaranteedFeatured {
		t.Fatalf("carry-over disabled")
	}
}

func TestPityNeverReachesHardPity(t *testing.T) {
	b := exampleBanner()
	rng := NewSeededRNG(42)
	var s PityState
	for i := 0; i < 50000; i++ {
		before := s.PityCounter
		out, err := b.Draw(&s, rng, time.Time{})
		if err != nil {
			t.Fatal(err)
		}
		if out.PityCountAtDraw > b.Pity.HardPity {
			t.Fatalf("draw %d at pity count %d beyond hard pity", i, out.PityCountAtDraw)
		}
		if out.Rarity.IsTopTier() {
			if s.PityCounter != 0 {
				t.Fatalf("top-tier hit must reset; got %d", s.PityCounter)
			}
		} else if s.PityCounter != before+1 {
			t.Fatalf("miss must increment by one: %d -> %d", before, s.PityCounter)
		}
		if out.HardPity && (!out.IsGuaranteed || out.Rarity != Legendary) {
			t.Fatalf("hard pity outcome %+v", out)
		}
	}
}

func TestBannerFeaturedGuarantee(t *testing.T) {
	b := exampleBanner()
	b.BaseRates = RateVector{Legendary: 1}
	b.FeaturedRate = 0 // every free roll loses
	rng := NewSeededRNG(1)
	var s PityState

	first, err := b.Draw(&s, rng, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if first.IsFeatured || first.IsGuaranteed || !s.GuaranteedFeatured {
		t.Fatalf("first=%+v state=%+v", first, s)
	}
	if first.ItemID == "dragon" {
		t.Fatalf("non-featured hit picked the featured item")
	}

	second, err := b.Draw(&s, rng, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsFeatured || !second.IsGuaranteed || second.ItemID != "dragon" || s.GuaranteedFeatured {
		t.Fatalf("second=%+v state=%+v", second, s)
	}
}

func TestBannerWeaponPity(t *testing.T) {
	b := exampleBanner()
	b.BaseRates = RateVector{Legendary: 1}
	b.FeaturedRate = 0
	b.Pity.GuaranteedFeaturedAfterLoss = false
	b.Pity.WeaponPityEnabled = true
	b.Pity.WeaponPityThreshold = 2
	rng := NewSeededRNG(1)
	var s PityState

	for i := 0; i < 2; i++ {
		out, err := b.Draw(&s, rng, time.Time{})
		if err != nil {
			t.Fatal(err)
		}
		if out.IsFeatured {
			t.Fatalf("draw %d featured before weapon pity", i)
		}
	}
	out, err := b.Draw(&s, rng, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsFeatured || !out.IsGuaranteed || s.WeaponPityCounter != 0 {
		t.Fatalf("weapon pity did not fire: out=%+v state=%+v", out, s)
	}
}

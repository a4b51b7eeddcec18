package gacha

import (
	"errors"
	"testing"
)

func TestDrawBounds(t *testing.T) {
	got, err := Draw(0, NewSeededRNG(1))
	if err != nil || got {
		t.Fatalf("p=0 should never hit; got=%v err=%v", got, err)
	}
	got, err = Draw(1, NewSeededRNG(1))
	if err != nil || !got {
		t.Fatalf("p=1 should always hit; got=%v err=%v", got, err)
	}
	if _, err := Draw(-0.1, nil); err == nil {
		t.Fatalf("negative p must error")
	}
	if _, err := Draw(1.1, nil); err == nil {
		t.Fatalf("p>1 must error")
	}
}

func TestDrawStatApprox(t *testing.T) {
	const p = 0.3
	const n = 100000
	rng := NewSeededRNG(42)
	hit := 0
	for i := 0; i < n; i++ {
		ok, err := Draw(p, rng)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			hit++
		}
	}
	freq := float64(hit) / float64(n)
	// should be around 0.3
	if diff := freq - p; diff > 0.01 || diff < -0.01 {
		t.Fatalf("freq=%f not close to p=%f", freq, p)
	}
}

// fixedRNG replays a fixed u for every Float64 call.
type fixedRNG struct{ u float64 }

func (f fixedRNG) Float64() float64 { return f.u }
func (f fixedRNG) IntN(n int) int   { return 0 }

func TestSampleRarityRarestFirst(t *testing.T) {
	v := RateVector{Common: 0.5, Rare: 0.3, Epic: 0.15, Legendary: 0.04, Mythic: 0.01}
	tests := []struct {
		u    float64
		want Rarity
	}{
		{0, Mythic},
		{0.005, Mythic},
		{0.03, Legendary},
		{0.1, Epic},
		{0.3, Rare},
		{0.7, Common},
		{0.9999, Common},
	}
	for _, tc := range tests {
		if got := SampleRarity(v, fixedRNG{tc.u}); got != tc.want {
			t.Fatalf("u=%v got %s want %s", tc.u, got, tc.want)
		}
	}
}

func TestSampleRarityFallsBackToCommon(t *testing.T) {
	// sums to slightly less than u
	v := RateVector{Rare: 0.3, Epic: 0.3}
	if got := SampleRarity(v, fixedRNG{0.99}); got != Common {
		t.Fatalf("got %s want common", got)
	}
	if got := SampleRarity(RateVector{}, fixedRNG{0}); got != Common {
		t.Fatalf("zero vector got %s want common", got)
	}
}

func TestSampleFeatured(t *testing.T) {
	if !SampleFeatured(0, true, fixedRNG{0.99}) {
		t.Fatalf("guaranteed must win")
	}
	if SampleFeatured(0.5, false, fixedRNG{0.5}) {
		t.Fatalf("u=0.5 must lose a 50/50")
	}
	if !SampleFeatured(0.5, false, fixedRNG{0.49}) {
		t.Fatalf("u=0.49 must win a 50/50")
	}
}

func TestSelectItem(t *testing.T) {
	pool := []Item{{ID: "a", Rarity: Common}, {ID: "b", Rarity: Epic}}
	rng := NewSeededRNG(7)
	for i := 0; i < 50; i++ {
		it, err := SelectItem(pool, Epic, rng)
		if err != nil || it.ID != "b" {
			t.Fatalf("got %+v err=%v", it, err)
		}
	}
	// no legendary in pool: fall back to the whole pool
	it, err := SelectItem(pool, Legendary, rng)
	if err != nil || (it.ID != "a" && it.ID != "b") {
		t.Fatalf("fallback got %+v err=%v", it, err)
	}
	if _, err := SelectItem(nil, Common, rng); !errors.Is(err, ErrEmptyItemPool) {
		t.Fatalf("empty pool err=%v", err)
	}
}

func TestSelectWeighted(t *testing.T) {
	items := []Item{{ID: "heavy", Weight: 9}, {ID: "light"}}
	rng := NewSeededRNG(3)
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		it, err := SelectWeighted(items, rng)
		if err != nil {
			t.Fatal(err)
		}
		counts[it.ID]++
	}
	share := float64(counts["heavy"]) / n
	if share < 0.88 || share > 0.92 {
		t.Fatalf("heavy share=%v want ~0.9", share)
	}
	// u at the very top of the range lands on the last item
	it, err := SelectWeighted(items, fixedRNG{0.9999999999})
	if err != nil || it.ID != "light" {
		t.Fatalf("boundary got %+v err=%v", it, err)
	}
	if _, err := SelectWeighted(nil, rng); !errors.Is(err, ErrEmptyItemPool) {
		t.Fatalf("empty err=%v", err)
	}
}

func TestParseRarity(t *testing.T) {
	for _, r := range RarestFirst {
		got, err := ParseRarity(r.String())
		if err != nil || got != r {
			t.Fatalf("round trip %s: got %s err=%v", r, got, err)
		}
	}
	if _, err := ParseRarity("ultra"); err == nil {
		t.Fatalf("unknown rarity must error")
	}
}

package gacha

// Draw is a Bernoulli trial under p.
// p <= 0 => no hit. p >= 1 => must hit. otherwise, rng.Float64() < p
func Draw(p float64, rng RandomSource) (bool, error) {
	if err := validateProb(p); err != nil {
		return false, err
	}
	if p <= 0 {
		return false, nil
	}
	if p >= 1 {
		return true, nil
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	return rng.Float64() < p, nil
}

// SampleRarity walks the tiers rarest first and returns the first tier whose
// running sum exceeds u. Floating error that leaves u unmatched yields Common.
func SampleRarity(v RateVector, rng RandomSource) Rarity {
	if rng == nil {
		rng = DefaultRNG()
	}
	u := rng.Float64()
	var running float64
	for _, r := range RarestFirst {
		if v[r] <= 0 {
			continue
		}
		running += v[r]
		if u < running {
			return r
		}
	}
	return Common
}

// SampleFeatured resolves the featured/non-featured roll of a top-tier draw.
func SampleFeatured(featuredRate float64, guaranteed bool, rng RandomSource) bool {
	if guaranteed {
		return true
	}
	hit, err := Draw(featuredRate, rng)
	return err == nil && hit
}

// Item is one grantable reward in a banner pool.
type Item struct {
	ID       string  `json:"id" yaml:"id"`
	Rarity   Rarity  `json:"rarity" yaml:"rarity"`
	Weight   float64 `json:"weight,omitempty" yaml:"weight,omitempty"` // <= 0 means 1
	Featured bool    `json:"featured,omitempty" yaml:"featured,omitempty"`
}

func filterRarity(pool []Item, r Rarity) []Item {
	out := make([]Item, 0, len(pool))
	for _, it := range pool {
		if it.Rarity == r {
			out = append(out, it)
		}
	}
	return out
}

// SelectItem picks uniformly among pool items of rarity r, or among the whole
// pool when no item has that rarity. An empty pool is a configuration defect.
func SelectItem(pool []Item, r Rarity, rng RandomSource) (Item, error) {
	candidates := filterRarity(pool, r)
	if len(candidates) == 0 {
		candidates = pool
	}
	if len(candidates) == 0 {
		return Item{}, ErrEmptyItemPool
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	return candidates[rng.IntN(len(candidates))], nil
}

// SelectWeighted picks proportionally to Weight using a cumulative sum.
// The last item absorbs rounding at the upper boundary.
func SelectWeighted(items []Item, rng RandomSource) (Item, error) {
	if len(items) == 0 {
		return Item{}, ErrEmptyItemPool
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	var total float64
	for _, it := range items {
		total += itemWeight(it)
	}
	target := rng.Float64() * total
	var cumulative float64
	for _, it := range items {
		cumulative += itemWeight(it)
		if target < cumulative {
			return it, nil
		}
	}
	return items[len(items)-1], nil
}

func itemWeight(it Item) float64 {
	if it.Weight <= 0 {
		return 1
	}
	return it.Weight
}

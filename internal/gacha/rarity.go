package gacha

import (
	"fmt"
	"strings"
)

// Rarity is a reward tier. Higher values are rarer.
type Rarity int

const (
	Common Rarity = iota
	Rare
	Epic
	Legendary
	Mythic

	numRarities = int(Mythic) + 1
)

// RarestFirst is the order every sampling and normalization walk uses,
// so that overlapping boundaries resolve to the rarer tier.
var RarestFirst = [numRarities]Rarity{Mythic, Legendary, Epic, Rare, Common}

var rarityNames = [numRarities]string{"common", "rare", "epic", "legendary", "mythic"}

func (r Rarity) String() string {
	if !r.Valid() {
		return fmt.Sprintf("rarity(%d)", int(r))
	}
	return rarityNames[r]
}

// Valid reports whether r is one of the declared tiers.
func (r Rarity) Valid() bool { return r >= Common && r <= Mythic }

// IsTopTier reports whether r resets pity.
func (r Rarity) IsTopTier() bool { return r == Legendary || r == Mythic }

// ParseRarity accepts the lowercase tier name (case-insensitive).
func ParseRarity(s string) (Rarity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range rarityNames {
		if name == s {
			return Rarity(i), nil
		}
	}
	return Common, fmt.Errorf("unknown rarity %q", s)
}

func (r Rarity) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rarity %d", int(r))
	}
	return []byte(rarityNames[r]), nil
}

func (r *Rarity) UnmarshalText(b []byte) error {
	v, err := ParseRarity(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

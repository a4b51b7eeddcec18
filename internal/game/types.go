// types.go
package game

import (
	"strings"
	"time"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/token"
)

// Raw config loaded from YAML; mirrors the banner schema.
// Pointer fields distinguish "unset" from zero so layers can override.
type RawConfig struct {
	Version            string             `yaml:"version"`
	Name               string             `yaml:"name,omitempty"`
	Active             *bool              `yaml:"active,omitempty"`
	StartsAt           *time.Time         `yaml:"starts_at,omitempty"`
	EndsAt             *time.Time         `yaml:"ends_at,omitempty"`
	Currency           string             `yaml:"currency,omitempty"`
	Cost               *CostConfig        `yaml:"cost,omitempty"`
	Rates              map[string]float64 `yaml:"rates,omitempty"`
	Pity               *PityCfg           `yaml:"pity,omitempty"`
	FeaturedRate       *float64           `yaml:"featured_rate,omitempty"`
	RequiresCompliance *bool              `yaml:"requires_compliance,omitempty"`
	Pool               []PoolItem         `yaml:"pool,omitempty"`
	Featured           []string           `yaml:"featured,omitempty"`
	Notes              string             `yaml:"notes,omitempty"`
}

type CostConfig struct {
	PerDraw           *int64   `yaml:"per_draw"`
	MultiPullCount    *int     `yaml:"multi_pull_count"`
	MultiPullDiscount *float64 `yaml:"multi_pull_discount"`
}

type PityCfg struct {
	SoftStart                   *int     `yaml:"soft_start"`
	Hard                        *int     `yaml:"hard"`
	SoftIncrease                *float64 `yaml:"soft_increase"`
	GuaranteedFeaturedAfterLoss *bool    `yaml:"guaranteed_featured_after_loss"`
	WeaponPityEnabled           *bool    `yaml:"weapon_pity_enabled"`
	WeaponPityThreshold         *int     `yaml:"weapon_pity_threshold"`
}

type PoolItem struct {
	ID     string  `yaml:"id"`
	Rarity string  `yaml:"rarity"`
	Weight float64 `yaml:"weight,omitempty"`
}

// Banner is a resolved banner: everything the pull flow needs for one scope.
type Banner struct {
	ScopeID            string
	Type               string
	ID                 string
	Name               string
	Version            string // effective config version for tracing
	Active             bool
	StartsAt           time.Time // zero = open start
	EndsAt             time.Time // zero = open end
	Currency           string
	Cost               token.Token
	RequiresCompliance bool
	Draw               gacha.Banner
}

// ActiveAt reports whether the banner is switched on and inside its window.
func (b Banner) ActiveAt(t time.Time) bool {
	if !b.Active {
		return false
	}
	if !b.StartsAt.IsZero() && t.Before(b.StartsAt) {
		return false
	}
	if !b.EndsAt.IsZero() && !t.Before(b.EndsAt) {
		return false
	}
	return true
}

// ScopeSep joins banner type and banner id into a scope id, e.g. "character:lantern-rite".
const ScopeSep = ":"

// ScopeID builds the scope id for a banner.
func ScopeID(bannerType, bannerID string) string {
	return bannerType + ScopeSep + bannerID
}

// SplitScope parses a scope id. Both parts must be non-empty.
func SplitScope(scopeID string) (bannerType, bannerID string, ok bool) {
	bannerType, bannerID, ok = strings.Cut(scopeID, ScopeSep)
	if !ok || bannerType == "" || bannerID == "" || strings.ContainsAny(scopeID, `/\`) {
		return "", "", false
	}
	return bannerType, bannerID, true
}

package game

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrBannerNotFound = errors.New("banner not found")

// Paths helper for default/type/banner files.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/app/config
}

func (p Paths) Root() string {
	return filepath.Join(p.BaseDir, "banners")
}
func (p Paths) DefaultPath() string {
	return filepath.Join(p.Root(), "default.yaml")
}
func (p Paths) TypePath(bannerType string) string {
	return filepath.Join(p.Root(), bannerType+".yaml")
}
func (p Paths) BannerPath(bannerType, bannerID string) string {
	return filepath.Join(p.Root(), bannerType, bannerID+".yaml")
}

// Loader reads YAML configs and merges default → type → banner.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawConfig // key: scope id
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawConfig),
	}
}

// Paths exposes the layout the loader reads from.
func (l *Loader) Paths() Paths { return l.paths }

// LoadMerged loads and merges default → type → banner. The banner file must
// exist; the default and type layers are optional.
// It returns the merged RawConfig (without normalization).
func (l *Loader) LoadMerged(bannerType, bannerID string) (RawConfig, error) {
	key := ScopeID(bannerType, bannerID)
	l.mu.RLock()
	if cfg, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	bannerCfg, found, err := readYAML(l.paths.BannerPath(bannerType, bannerID))
	if err != nil {
		return RawConfig{}, fmt.Errorf("read banner %s: %w", key, err)
	}
	if !found {
		return RawConfig{}, fmt.Errorf("%w: %s", ErrBannerNotFound, key)
	}
	defCfg, _, err := readYAML(l.paths.DefaultPath())
	if err != nil {
		return RawConfig{}, fmt.Errorf("read default: %w", err)
	}
	typeCfg, _, err := readYAML(l.paths.TypePath(bannerType))
	if err != nil {
		return RawConfig{}, fmt.Errorf("read type %s: %w", bannerType, err)
	}

	// Merge: default <- type <- banner
	merged := mergeRaw(mergeRaw(defCfg, typeCfg), bannerCfg)

	l.mu.Lock()
	l.cache[key] = merged
	l.mu.Unlock()
	return merged, nil
}

// ScopeIDs lists every banner file under the base directory, sorted.
func (l *Loader) ScopeIDs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.paths.Root(), "*", "*.yaml"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		bannerType := filepath.Base(filepath.Dir(m))
		bannerID := strings.TrimSuffix(filepath.Base(m), ".yaml")
		ids = append(ids, ScopeID(bannerType, bannerID))
	}
	sort.Strings(ids)
	return ids, nil
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawConfig)
}

// readYAML loads a YAML file into RawConfig. Missing files return zero cfg, no error.
func readYAML(path string) (RawConfig, bool, error) {
	var cfg RawConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, false, nil
		}
		return RawConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, true, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, true, nil
}

// mergeRaw performs a deep merge: 'b' overrides 'a' where set.
// Maps merge per key; slices (pool, featured) are replaced wholesale.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a

	// top-level scalars
	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Name != "" {
		out.Name = b.Name
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}
	if b.Currency != "" {
		out.Currency = b.Currency
	}
	out.Active = pick(out.Active, b.Active)
	out.StartsAt = pick(out.StartsAt, b.StartsAt)
	out.EndsAt = pick(out.EndsAt, b.EndsAt)
	out.FeaturedRate = pick(out.FeaturedRate, b.FeaturedRate)
	out.RequiresCompliance = pick(out.RequiresCompliance, b.RequiresCompliance)

	// rates: a layer that names a tier overrides only that tier
	if len(b.Rates) > 0 {
		rates := make(map[string]float64, len(a.Rates)+len(b.Rates))
		for k, v := range a.Rates {
			rates[k] = v
		}
		for k, v := range b.Rates {
			rates[k] = v
		}
		out.Rates = rates
	}

	// cost
	switch {
	case out.Cost == nil && b.Cost != nil:
		c := *b.Cost
		out.Cost = &c
	case out.Cost != nil && b.Cost != nil:
		c := *out.Cost
		c.PerDraw = pick(c.PerDraw, b.Cost.PerDraw)
		c.MultiPullCount = pick(c.MultiPullCount, b.Cost.MultiPullCount)
		c.MultiPullDiscount = pick(c.MultiPullDiscount, b.Cost.MultiPullDiscount)
		out.Cost = &c
	}

	// pity
	switch {
	case out.Pity == nil && b.Pity != nil:
		c := *b.Pity
		out.Pity = &c
	case out.Pity != nil && b.Pity != nil:
		c := *out.Pity
		c.SoftStart = pick(c.SoftStart, b.Pity.SoftStart)
		c.Hard = pick(c.Hard, b.Pity.Hard)
		c.SoftIncrease = pick(c.SoftIncrease, b.Pity.SoftIncrease)
		c.GuaranteedFeaturedAfterLoss = pick(c.GuaranteedFeaturedAfterLoss, b.Pity.GuaranteedFeaturedAfterLoss)
		c.WeaponPityEnabled = pick(c.WeaponPityEnabled, b.Pity.WeaponPityEnabled)
		c.WeaponPityThreshold = pick(c.WeaponPityThreshold, b.Pity.WeaponPityThreshold)
		out.Pity = &c
	}

	if len(b.Pool) > 0 {
		out.Pool = slices.Clone(b.Pool)
	}
	if len(b.Featured) > 0 {
		out.Featured = slices.Clone(b.Featured)
	}
	return out
}

func pick[T any](base, override *T) *T {
	if override != nil {
		return override
	}
	return base
}

package game

import (
	"context"
	"fmt"
)

// Registry resolves scope ids into validated banners.
type Registry struct {
	loader *Loader
}

func NewRegistry(loader *Loader) *Registry {
	return &Registry{loader: loader}
}

// Banner returns the resolved banner for a scope id, active or not.
// Unknown scopes fail with ErrBannerNotFound; broken configs with ErrInvalidConfig.
func (r *Registry) Banner(ctx context.Context, scopeID string) (Banner, error) {
	if err := ctx.Err(); err != nil {
		return Banner{}, err
	}
	bannerType, bannerID, ok := SplitScope(scopeID)
	if !ok {
		return Banner{}, fmt.Errorf("%w: %q", ErrBannerNotFound, scopeID)
	}
	raw, err := r.loader.LoadMerged(bannerType, bannerID)
	if err != nil {
		return Banner{}, err
	}
	b, err := Resolve(bannerType, bannerID, raw)
	if err != nil {
		return Banner{}, fmt.Errorf("banner %s: %w", scopeID, err)
	}
	return b, nil
}

// ScopeIDs lists every configured banner scope.
func (r *Registry) ScopeIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.loader.ScopeIDs()
}

// Invalidate drops cached configs so the next lookup rereads disk.
func (r *Registry) Invalidate() {
	r.loader.Invalidate()
}

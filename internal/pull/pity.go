package pull

import (
	"context"
	"errors"
	"fmt"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/game"
)

// pityKey is the row a banner writes under the configured policy.
func (s *Service) pityKey(playerID string, b game.Banner) PityKey {
	if s.opts.ScopePolicy == SharedByType {
		return PityKey{PlayerID: playerID, BannerType: b.Type}
	}
	return PityKey{PlayerID: playerID, BannerType: b.Type, BannerID: b.ID}
}

// loadPity reads the state a draw continues from. Under PerBanner a missing
// banner row falls back to the type-wide row; the returned key is always the
// one the next commit writes.
func (s *Service) loadPity(ctx context.Context, playerID string, b game.Banner) (PityKey, gacha.PityState, error) {
	key := s.pityKey(playerID, b)
	state, found, err := s.store.Pity(ctx, key)
	if err != nil || found || key.BannerID == "" {
		return key, state, err
	}
	shared := PityKey{PlayerID: playerID, BannerType: b.Type}
	state, _, err = s.store.Pity(ctx, shared)
	return key, state, err
}

// PityStatus reports a player's pity on a scope and what the next draw looks like.
func (s *Service) PityStatus(ctx context.Context, playerID, scopeID string) (PityStatus, error) {
	b, err := s.banners.Banner(ctx, scopeID)
	if err != nil {
		if errors.Is(err, game.ErrBannerNotFound) || errors.Is(err, game.ErrInvalidConfig) {
			return PityStatus{}, fmt.Errorf("%w: %w", ErrBannerUnavailable, err)
		}
		return PityStatus{}, err
	}
	_, state, err := s.loadPity(ctx, playerID, b)
	if err != nil {
		return PityStatus{}, fmt.Errorf("load pity: %w", err)
	}
	adj := gacha.AdjustRates(b.Draw.BaseRates, b.Draw.Pity, state.PityCounter)
	return PityStatus{
		ScopeID:             b.ScopeID,
		Policy:              s.opts.ScopePolicy.String(),
		State:               state,
		Config:              b.Draw.Pity,
		DrawsUntilHard:      max(b.Draw.Pity.HardPity-state.PityCounter, 1),
		SoftPityActive:      adj.IsSoftPity,
		NextDrawRates:       adj.Rates,
		NextTopTierFeatured: state.ForcesFeatured(b.Draw.Pity),
	}, nil
}

package pull

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/xtding233/gacha-economy/internal/constants"
	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/game"
)

// Simulate certifies a scope's configuration offline: drawCount draws on a
// fresh pity chain, nothing charged or persisted. The run is seeded from the
// service RNG and the seed is returned so the run can be replayed.
func (s *Service) Simulate(ctx context.Context, scopeID string, drawCount int) (SimulationResult, error) {
	seed := uint64(s.rng.IntN(math.MaxInt))
	return s.SimulateSeeded(ctx, scopeID, drawCount, seed)
}

// SimulateSeeded replays a certification run.
func (s *Service) SimulateSeeded(ctx context.Context, scopeID string, drawCount int, seed uint64) (SimulationResult, error) {
	return s.SimulatePopulation(ctx, scopeID, 1, drawCount, seed)
}

// SimulatePopulation plays players independent pity chains of drawsPerPlayer
// draws each, concurrently. Chain i is seeded with seed+i.
func (s *Service) SimulatePopulation(ctx context.Context, scopeID string, players, drawsPerPlayer int, seed uint64) (SimulationResult, error) {
	total := players * drawsPerPlayer
	if players < 1 || drawsPerPlayer < 1 || total > constants.MaxSimulationDraws || total/players != drawsPerPlayer {
		return SimulationResult{}, fmt.Errorf("%w: %d x %d not in [1, %d]", ErrInvalidDrawCount, players, drawsPerPlayer, constants.MaxSimulationDraws)
	}
	b, err := s.banners.Banner(ctx, scopeID)
	if err != nil {
		if errors.Is(err, game.ErrBannerNotFound) || errors.Is(err, game.ErrInvalidConfig) {
			return SimulationResult{}, fmt.Errorf("%w: %w", ErrBannerUnavailable, err)
		}
		return SimulationResult{}, err
	}

	var sim gacha.Simulation
	if players == 1 {
		sim, err = gacha.Simulate(ctx, b.Draw, drawsPerPlayer, gacha.NewSeededRNG(seed))
	} else {
		sim, err = gacha.RunMonteCarlo(ctx, b.Draw, gacha.SimParams{
			Chains:        players,
			DrawsPerChain: drawsPerPlayer,
			NewRNG:        func(i int) gacha.RandomSource { return gacha.NewSeededRNG(seed + uint64(i)) },
		})
	}
	if err != nil {
		return SimulationResult{}, err
	}
	s.logger.Info().
		Str("scope", b.ScopeID).
		Int("players", players).
		Int("draws", sim.Draws).
		Uint64("seed", seed).
		Float64("chi_square", sim.ChiSquare.Statistic).
		Bool("within_tolerance", sim.ChiSquare.WithinTolerance).
		Msg("simulation finished")
	return SimulationResult{ScopeID: b.ScopeID, Seed: seed, Simulation: sim}, nil
}

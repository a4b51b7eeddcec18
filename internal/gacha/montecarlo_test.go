package gacha

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestCalcPullStats(t *testing.T) {
	events := []TopTierEvent{
		{Pulls: 10},
		{Pulls: 20},
		{Pulls: 76, Soft: true},
		{Pulls: 90, Hard: true},
	}
	s := CalcPullStats(events)
	if s.TopTierHits != 4 {
		t.Fatalf("hits=%d", s.TopTierHits)
	}
	if s.Pulls.Mean != 49 {
		t.Fatalf("mean=%v want 49", s.Pulls.Mean)
	}
	if s.Pulls.P50 != 48 {
		t.Fatalf("median=%v want 48", s.Pulls.P50)
	}
	if s.SoftPityRate != 0.25 || s.HardPityRate != 0.25 {
		t.Fatalf("soft=%v hard=%v", s.SoftPityRate, s.HardPityRate)
	}
	if got := CalcPullStats(nil); got.TopTierHits != 0 {
		t.Fatalf("empty stats %+v", got)
	}
}

func TestSimulatePullStatsRespectPity(t *testing.T) {
	b := exampleBanner()
	sim, err := Simulate(context.Background(), b, 200000, NewSeededRNG(11))
	if err != nil {
		t.Fatal(err)
	}
	ps := sim.Pulls
	if ps.TopTierHits == 0 {
		t.Fatalf("no top-tier hits")
	}
	if ps.Pulls.P99 > float64(b.Pity.HardPity) {
		t.Fatalf("p99=%v beyond hard pity", ps.Pulls.P99)
	}
	// soft pity drags the mean far below 1/0.006
	if ps.Pulls.Mean < 50 || ps.Pulls.Mean > 75 {
		t.Fatalf("mean pulls=%v", ps.Pulls.Mean)
	}
	if ps.SoftPityRate <= 0.5 {
		t.Fatalf("soft pity rate=%v; most hits should come from soft pity", ps.SoftPityRate)
	}
	if ps.HardPityRate > 0.01 {
		t.Fatalf("hard pity rate=%v", ps.HardPityRate)
	}
	if math.Abs(ps.SoftPityRate+ps.HardPityRate) > 1 {
		t.Fatalf("rates exceed 1")
	}
}

func TestRunMonteCarloMergesChains(t *testing.T) {
	b := exampleBanner()
	sim, err := RunMonteCarlo(context.Background(), b, SimParams{
		Chains:        4,
		DrawsPerChain: 5000,
		NewRNG:        func(i int) RandomSource { return NewSeededRNG(uint64(100 + i)) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if sim.Draws != 20000 || sim.Observed.Total() != 20000 {
		t.Fatalf("draws=%d observed=%d", sim.Draws, sim.Observed.Total())
	}
	if sim.BaseObserved.Total() > sim.Observed.Total() {
		t.Fatalf("base draws exceed all draws")
	}
}

func TestRunMonteCarloCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunMonteCarlo(ctx, exampleBanner(), SimParams{Chains: 2, DrawsPerChain: 10})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestSimulateRejectsEmptyPool(t *testing.T) {
	b := exampleBanner()
	b.Pool = nil
	if _, err := Simulate(context.Background(), b, 10, NewSeededRNG(1)); !errors.Is(err, ErrEmptyItemPool) {
		t.Fatalf("err=%v", err)
	}
}

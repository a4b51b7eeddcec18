package gacha

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestChiSquareQuantileMatchesTable(t *testing.T) {
	// alpha = 0.05 critical values
	table := map[int]float64{1: 3.841, 2: 5.991, 3: 7.815, 4: 9.488, 5: 11.070, 9: 16.919, 20: 31.410}
	for df, want := range table {
		got := ChiSquareQuantile(1-Alpha, df)
		if math.Abs(got-want) > 2e-3 {
			t.Fatalf("df=%d got %.4f want %.3f", df, got, want)
		}
	}
}

func TestChiSquareExactFit(t *testing.T) {
	obs := Counts{Common: 513, Rare: 430, Epic: 51, Legendary: 6}
	res := ChiSquare(obs, exampleRates, 1000)
	if res.Statistic > 1e-9 {
		t.Fatalf("stat=%v want 0", res.Statistic)
	}
	// mythic has zero expectation, so four tiers count
	if res.DegreesOfFreedom != 3 {
		t.Fatalf("df=%d want 3", res.DegreesOfFreedom)
	}
	if !res.WithinTolerance || math.Abs(res.PValue-1) > 1e-9 {
		t.Fatalf("res=%+v", res)
	}
}

func TestChiSquareDetectsSkew(t *testing.T) {
	obs := Counts{Common: 400, Rare: 430, Epic: 100, Legendary: 70}
	res := ChiSquare(obs, exampleRates, 1000)
	if res.WithinTolerance {
		t.Fatalf("skewed distribution passed: %+v", res)
	}
	if res.PValue >= Alpha {
		t.Fatalf("p=%v should be below alpha", res.PValue)
	}
}

func TestChiSquareObservationInEmptyTier(t *testing.T) {
	obs := Counts{Common: 513, Rare: 430, Epic: 50, Legendary: 6, Mythic: 1}
	res := ChiSquare(obs, exampleRates, 1000)
	if !math.IsInf(res.Statistic, 1) || res.WithinTolerance || res.PValue != 0 {
		t.Fatalf("res=%+v", res)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"chiSquare":null`) {
		t.Fatalf("json=%s", b)
	}
}

func TestChiSquarePValue(t *testing.T) {
	// a statistic equal to the critical value sits at p = alpha
	crit := ChiSquareQuantile(1-Alpha, 4)
	p := 1 - regularizedGammaP(2, crit/2)
	if math.Abs(p-Alpha) > 1e-6 {
		t.Fatalf("p=%v want %v", p, Alpha)
	}
}

func TestSimulateCertifiesExampleRates(t *testing.T) {
	b := exampleBanner()
	passed := 0
	for seed := uint64(1); seed <= 5; seed++ {
		sim, err := Simulate(context.Background(), b, 100000, NewSeededRNG(seed))
		if err != nil {
			t.Fatal(err)
		}
		if sim.Draws != 100000 || sim.Observed.Total() != 100000 {
			t.Fatalf("seed=%d draws=%d observed=%d", seed, sim.Draws, sim.Observed.Total())
		}
		if sim.Observed[Mythic] != 0 {
			t.Fatalf("seed=%d mythic drawn with zero rate", seed)
		}
		if sim.ChiSquare.WithinTolerance {
			passed++
		}
	}
	// each seed fails with probability alpha; a majority must pass
	if passed < 3 {
		t.Fatalf("only %d/5 runs within tolerance", passed)
	}
}

func TestSimulateDetectsWrongPublishedRates(t *testing.T) {
	b := exampleBanner()
	sim, err := Simulate(context.Background(), b, 100000, NewSeededRNG(9))
	if err != nil {
		t.Fatal(err)
	}
	published := RateVector{Common: 0.45, Rare: 0.43, Epic: 0.1, Legendary: 0.02}
	res := ChiSquare(sim.BaseObserved, published, sim.BaseObserved.Total())
	if res.WithinTolerance {
		t.Fatalf("misdeclared rates certified: %+v", res)
	}
}

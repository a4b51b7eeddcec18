package gacha

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stats summarizes integer samples.
type Stats struct {
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"stdDev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
}

// calcStats computes mean/variance/percentiles for integer samples.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	// variance (population)
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}
	variance := acc / float64(n)

	cp := append([]int(nil), xs...)
	sort.Ints(cp)
	percentile := func(p float64) float64 {
		if n == 1 || p <= 0 {
			return float64(cp[0])
		}
		if p >= 1 {
			return float64(cp[n-1])
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(cp[i])
		}
		return float64(cp[i])*(1-f) + float64(cp[i+1])*f
	}

	return Stats{
		Mean:   mean,
		Var:    variance,
		StdDev: math.Sqrt(variance),
		P50:    percentile(0.50),
		P90:    percentile(0.90),
		P99:    percentile(0.99),
	}
}

// TopTierEvent records one top-tier hit: how many draws it took and which pity fired.
type TopTierEvent struct {
	Pulls int
	Soft  bool
	Hard  bool
}

// PullStats describes pulls-to-top-tier over a run.
type PullStats struct {
	TopTierHits  int     `json:"topTierHits"`
	Pulls        Stats   `json:"pulls"`
	SoftPityRate float64 `json:"softPityRate"` // share of top-tier hits taken under soft pity
	HardPityRate float64 `json:"hardPityRate"` // share of top-tier hits taken at hard pity
}

// CalcPullStats reduces a sequence of top-tier events.
func CalcPullStats(events []TopTierEvent) PullStats {
	if len(events) == 0 {
		return PullStats{}
	}
	xs := make([]int, len(events))
	soft, hard := 0, 0
	for i, e := range events {
		xs[i] = e.Pulls
		if e.Soft {
			soft++
		}
		if e.Hard {
			hard++
		}
	}
	n := float64(len(events))
	return PullStats{
		TopTierHits:  len(events),
		Pulls:        calcStats(xs),
		SoftPityRate: float64(soft) / n,
		HardPityRate: float64(hard) / n,
	}
}

// Simulation certifies a banner's long-run behavior.
// Observed counts every draw; BaseObserved counts only draws made at
// unadjusted rates, which is the population the chi-square test is run on.
type Simulation struct {
	Draws        int             `json:"draws"`
	Observed     Counts          `json:"observed"`
	BaseObserved Counts          `json:"baseObserved"`
	Expected     RateVector      `json:"expected"`
	ChiSquare    ChiSquareResult `json:"chiSquare"`
	Pulls        PullStats       `json:"pullStats"`
}

type tally struct {
	draws    int
	observed Counts
	base     Counts
	events   []TopTierEvent
}

func (t *tally) merge(o tally) {
	t.draws += o.draws
	for i := range t.observed {
		t.observed[i] += o.observed[i]
		t.base[i] += o.base[i]
	}
	t.events = append(t.events, o.events...)
}

// runChain plays draws from a fresh pity state.
func runChain(ctx context.Context, b Banner, draws int, rng RandomSource) (tally, error) {
	var t tally
	var state PityState
	for i := 0; i < draws; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return tally{}, err
			}
		}
		out, err := b.Draw(&state, rng, time.Time{})
		if err != nil {
			return tally{}, err
		}
		t.draws++
		t.observed[out.Rarity]++
		if !out.SoftPity && !out.HardPity {
			t.base[out.Rarity]++
		}
		if out.Rarity.IsTopTier() {
			t.events = append(t.events, TopTierEvent{Pulls: out.PityCountAtDraw, Soft: out.SoftPity, Hard: out.HardPity})
		}
	}
	return t, nil
}

func (b Banner) summarize(t tally) Simulation {
	expected := b.BaseRates.Normalized()
	return Simulation{
		Draws:        t.draws,
		Observed:     t.observed,
		BaseObserved: t.base,
		Expected:     expected,
		ChiSquare:    ChiSquare(t.base, expected, t.base.Total()),
		Pulls:        CalcPullStats(t.events),
	}
}

// Simulate plays draws on one player's pity chain.
func Simulate(ctx context.Context, b Banner, draws int, rng RandomSource) (Simulation, error) {
	if err := b.Validate(); err != nil {
		return Simulation{}, err
	}
	t, err := runChain(ctx, b, draws, rng)
	if err != nil {
		return Simulation{}, err
	}
	return b.summarize(t), nil
}

// SimParams splits a run over independent pity chains.
type SimParams struct {
	Chains        int
	DrawsPerChain int
	// NewRNG returns the source for one chain; nil uses DefaultRNG.
	NewRNG func(chain int) RandomSource
}

// RunMonteCarlo plays every chain concurrently and merges the tallies.
func RunMonteCarlo(ctx context.Context, b Banner, p SimParams) (Simulation, error) {
	if err := b.Validate(); err != nil {
		return Simulation{}, err
	}
	if p.Chains <= 0 || p.DrawsPerChain <= 0 {
		return b.summarize(tally{}), nil
	}
	results := make([]tally, p.Chains)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.Chains; i++ {
		g.Go(func() error {
			rng := DefaultRNG()
			if p.NewRNG != nil {
				rng = p.NewRNG(i)
			}
			t, err := runChain(gctx, b, p.DrawsPerChain, rng)
			if err != nil {
				return err
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Simulation{}, err
	}
	var all tally
	for _, t := range results {
		all.merge(t)
	}
	return b.summarize(all), nil
}

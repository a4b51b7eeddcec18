package gacha

import (
	"encoding/json"
	"math"
)

// Alpha is the significance level used for rate certification.
const Alpha = 0.05

// Counts tallies draws per tier.
type Counts [numRarities]int

// Total sums all tiers.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// MarshalJSON writes the counts keyed by tier name.
func (c Counts) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, numRarities)
	for _, r := range RarestFirst {
		m[r.String()] = c[r]
	}
	return json.Marshal(m)
}

// ChiSquareResult is the goodness-of-fit verdict for one observed distribution.
type ChiSquareResult struct {
	Statistic        float64 `json:"chiSquare"`
	DegreesOfFreedom int     `json:"degreesOfFreedom"`
	PValue           float64 `json:"pValue"`
	CriticalValue    float64 `json:"criticalValue"`
	WithinTolerance  bool    `json:"withinTolerance"`
}

// ChiSquare compares observed against expected*total over tiers with non-zero
// expectation. An observation in a tier expected to be empty makes the
// statistic infinite. Deviation is reported, never returned as an error.
func ChiSquare(observed Counts, expected RateVector, total int) ChiSquareResult {
	if total <= 0 {
		return ChiSquareResult{PValue: 1, WithinTolerance: true}
	}
	var stat float64
	tiers := 0
	for _, r := range RarestFirst {
		e := expected[r] * float64(total)
		if e <= 0 {
			if observed[r] > 0 {
				stat = math.Inf(1)
			}
			continue
		}
		tiers++
		d := float64(observed[r]) - e
		stat += d * d / e
	}

	df := tiers - 1
	if df < 1 {
		return ChiSquareResult{Statistic: stat, PValue: boolProb(stat == 0), WithinTolerance: stat == 0}
	}
	crit := ChiSquareQuantile(1-Alpha, df)
	p := 0.0
	if !math.IsInf(stat, 1) {
		p = 1 - regularizedGammaP(float64(df)/2, stat/2)
	}
	return ChiSquareResult{
		Statistic:        stat,
		DegreesOfFreedom: df,
		PValue:           p,
		CriticalValue:    crit,
		WithinTolerance:  stat < crit,
	}
}

// MarshalJSON writes a non-finite statistic as null.
func (r ChiSquareResult) MarshalJSON() ([]byte, error) {
	type plain ChiSquareResult
	out := struct {
		plain
		Statistic *float64 `json:"chiSquare"`
	}{plain: plain(r)}
	if !math.IsInf(r.Statistic, 0) && !math.IsNaN(r.Statistic) {
		out.Statistic = &r.Statistic
	}
	return json.Marshal(out)
}

func boolProb(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// ChiSquareQuantile returns x with CDF(x; df) = q, by bisection on the CDF.
func ChiSquareQuantile(q float64, df int) float64 {
	if df < 1 || q <= 0 {
		return 0
	}
	if q >= 1 {
		return math.Inf(1)
	}
	k := float64(df) / 2
	lo, hi := 0.0, math.Max(1, float64(df))
	for regularizedGammaP(k, hi/2) < q {
		lo = hi
		hi *= 2
	}
	for i := 0; i < 200 && hi-lo > 1e-10; i++ {
		mid := (lo + hi) / 2
		if regularizedGammaP(k, mid/2) < q {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

const (
	gammaEps   = 1e-14
	gammaFPMin = 1e-300
	gammaIters = 1000
)

// regularizedGammaP is the regularized lower incomplete gamma P(a, x):
// series below a+1, continued fraction above.
func regularizedGammaP(a, x float64) float64 {
	if x <= 0 {
		return 0
	}
	lg, _ := math.Lgamma(a)
	prefix := math.Exp(-x + a*math.Log(x) - lg)
	if x < a+1 {
		ap, sum := a, 1/a
		del := sum
		for i := 0; i < gammaIters; i++ {
			ap++
			del *= x / ap
			sum += del
			if math.Abs(del) < math.Abs(sum)*gammaEps {
				break
			}
		}
		return math.Min(sum*prefix, 1)
	}

	b := x + 1 - a
	c := 1 / gammaFPMin
	d := 1 / b
	h := d
	for i := 1; i <= gammaIters; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < gammaFPMin {
			d = gammaFPMin
		}
		c = b + an/c
		if math.Abs(c) < gammaFPMin {
			c = gammaFPMin
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < gammaEps {
			break
		}
	}
	return math.Max(1-prefix*h, 0)
}

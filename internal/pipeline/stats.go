package pipeline

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ksSeriesTerms bounds the Kolmogorov series; terms vanish long before this
const ksSeriesTerms = 100

// ksExactMaxSize is the largest sample for which the exact p-value is computed
const ksExactMaxSize = 10000

var errTooFewSamples = errors.New("need at least two values per sample")

// Median returns the median of values, averaging the two middle elements for
// even lengths. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Pearson returns the correlation of x and y. ok is false when the
// correlation is undefined: fewer than two pairs or a constant series.
func Pearson(x, y []float64) (r float64, ok bool) {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN(), false
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN(), false
	}
	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return r, false
	}
	return r, true
}

// KolmogorovSmirnov runs the two-sample KS test on a and b and returns the
// statistic with its two-sided p-value. The p-value is exact when neither
// sample exceeds ksExactMaxSize values and asymptotic otherwise.
func KolmogorovSmirnov(a, b []float64) (statistic, pValue float64, err error) {
	if len(a) < 2 || len(b) < 2 {
		return math.NaN(), math.NaN(), errTooFewSamples
	}
	if floats.HasNaN(a) || floats.HasNaN(b) {
		return math.NaN(), math.NaN(), errors.New("samples must not contain NaN")
	}

	x := append([]float64(nil), a...)
	y := append([]float64(nil), b...)
	sort.Float64s(x)
	sort.Float64s(y)

	statistic = stat.KolmogorovSmirnov(x, nil, y, nil)
	if len(x) <= ksExactMaxSize && len(y) <= ksExactMaxSize {
		return statistic, exactKSPValue(len(x), len(y), statistic), nil
	}
	n, m := float64(len(x)), float64(len(y))
	pValue = kolmogorovPValue(statistic, n*m/(n+m))
	return statistic, pValue, nil
}

// exactKSPValue returns P(D >= d) for samples of sizes m and n under the null
// hypothesis. It walks the m x n lattice of merged orderings, each step taken
// with its hypergeometric probability, and sums the mass that first reaches a
// point with |i/m - j/n| >= d.
func exactKSPValue(m, n int, d float64) float64 {
	if d <= 0 {
		return 1
	}
	g := gcd(m, n)
	// d is a multiple of 1/lcm(m, n); compare on integers as |i*n - j*m| >= h*g
	h := int64(math.Round(d * float64(m/g*n)))
	bound := h * int64(g)

	prev := make([]float64, n+1)
	cur := make([]float64, n+1)
	outside := 0.0
	total := float64(m + n)
	for i := 0; i <= m; i++ {
		for j := 0; j <= n; j++ {
			if i == 0 && j == 0 {
				cur[0] = 1
				continue
			}
			v := 0.0
			if i > 0 {
				v += prev[j] * float64(m-i+1) / (total - float64(i-1+j))
			}
			if j > 0 {
				v += cur[j-1] * float64(n-j+1) / (total - float64(i+j-1))
			}
			diff := int64(i)*int64(n) - int64(j)*int64(m)
			if diff < 0 {
				diff = -diff
			}
			if diff >= bound {
				outside += v
				v = 0
			}
			cur[j] = v
		}
		prev, cur = cur, prev
	}

	switch {
	case outside < 0:
		return 0
	case outside > 1:
		return 1
	}
	return outside
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// kolmogorovPValue evaluates Q_KS(lambda) with Stephens' small-sample
// correction for an effective sample size en
func kolmogorovPValue(d, en float64) float64 {
	if d <= 0 {
		return 1
	}
	sqrtEn := math.Sqrt(en)
	lambda := (sqrtEn + 0.12 + 0.11/sqrtEn) * d
	sum := 0.0
	sign := 1.0
	previous := 0.0
	converged := false
	for k := 1; k <= ksSeriesTerms; k++ {
		kf := float64(k)
		term := sign * math.Exp(-2*kf*kf*lambda*lambda)
		sum += term
		if math.Abs(term) <= 1e-3*previous || math.Abs(term) <= 1e-8*math.Abs(sum) {
			converged = true
			break
		}
		previous = math.Abs(term)
		sign = -sign
	}
	// the series only fails to converge for tiny lambda, where Q is 1
	if !converged {
		return 1
	}

	p := 2 * sum
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

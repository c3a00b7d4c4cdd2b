package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{10, 1, 3}))
	assert.Equal(t, 4.0, Median([]float64{10, 1, 3, 5}))
	assert.True(t, math.IsNaN(Median(nil)))

	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestPearson(t *testing.T) {
	r, ok := Pearson([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, ok = Pearson([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-12)

	_, ok = Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.False(t, ok)

	_, ok = Pearson([]float64{1}, []float64{1})
	assert.False(t, ok)

	_, ok = Pearson([]float64{1, 2}, []float64{1})
	assert.False(t, ok)
}

func TestKolmogorovSmirnov(t *testing.T) {
	d, p, err := KolmogorovSmirnov([]float64{3, 1, 2}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
	assert.Equal(t, 1.0, p)

	d, p, err = KolmogorovSmirnov(sequence(100), shifted(sequence(100), 100))
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
	assert.Less(t, p, 1e-10)

	_, _, err = KolmogorovSmirnov([]float64{1}, []float64{1, 2})
	assert.Error(t, err)

	_, _, err = KolmogorovSmirnov([]float64{1, nan}, []float64{1, 2})
	assert.Error(t, err)
}

func TestKolmogorovSmirnov_ExactSmallSamples(t *testing.T) {
	// 20 of the 252 orderings of two samples of five reach D >= 0.8
	d, p, err := KolmogorovSmirnov([]float64{1, 2, 3, 4, 5}, []float64{5, 6, 7, 8, 9})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, d, 1e-12)
	assert.InDelta(t, 20.0/252.0, p, 1e-12)
	assert.Greater(t, p, 0.05)
}

func TestExactKSPValue(t *testing.T) {
	tests := []struct {
		name string
		m, n int
		d    float64
		want float64
	}{
		{name: "equal sizes", m: 5, n: 5, d: 0.8, want: 20.0 / 252.0},
		{name: "unequal sizes", m: 3, n: 4, d: 0.75, want: 8.0 / 35.0},
		{name: "complete separation", m: 4, n: 4, d: 1, want: 2.0 / 70.0},
		{name: "zero statistic", m: 4, n: 6, d: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, exactKSPValue(tt.m, tt.n, tt.d), 1e-12)
		})
	}

	// the smallest non-zero statistic is reached by every ordering
	assert.InDelta(t, 1.0, exactKSPValue(5, 6, 1.0/30.0), 1e-12)
}

func TestKolmogorovPValue(t *testing.T) {
	// lambda near 1.36 gives the classic 5% critical value
	en := 10000.0
	d := 1.358 / (math.Sqrt(en) + 0.12 + 0.11/math.Sqrt(en))
	assert.InDelta(t, 0.05, kolmogorovPValue(d, en), 0.001)

	prev := 1.0
	for _, d := range []float64{0.01, 0.05, 0.1, 0.2, 0.4} {
		p := kolmogorovPValue(d, 100)
		assert.LessOrEqual(t, p, prev)
		assert.GreaterOrEqual(t, p, 0.0)
		prev = p
	}
}

func shifted(values []float64, by float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v + by
	}
	return out
}

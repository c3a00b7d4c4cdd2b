package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality-eda/internal/models"
)

func meanFilled(observed []float64, missing int) (before, after models.Column) {
	sum := 0.0
	for _, v := range observed {
		sum += v
	}
	mean := sum / float64(len(observed))

	orig := append([]float64(nil), observed...)
	filled := append([]float64(nil), observed...)
	for i := 0; i < missing; i++ {
		orig = append(orig, nan)
		filled = append(filled, mean)
	}
	return numeric("pm10", orig...), numeric("pm10", filled...)
}

func sequence(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestValidator_Compare(t *testing.T) {
	v := NewValidator()

	t.Run("heavy mean fill is a significant change", func(t *testing.T) {
		before, after := meanFilled(sequence(50), 150)
		rec := v.Compare(before, after)
		assert.Equal(t, models.VerdictChange, rec.Verdict)
		assert.InDelta(t, 0.375, float64(rec.Statistic), 1e-9)
		assert.Less(t, float64(rec.PValue), 0.001)
		assert.Nil(t, rec.Err)
	})

	t.Run("single filled value is no significant change", func(t *testing.T) {
		before, after := meanFilled(sequence(100), 1)
		rec := v.Compare(before, after)
		assert.Equal(t, models.VerdictNoChange, rec.Verdict)
		assert.Greater(t, float64(rec.PValue), 0.05)
	})

	t.Run("fewer than two observed values", func(t *testing.T) {
		rec := v.Compare(numeric("pm10", 1, nan, nan), numeric("pm10", 1, 1, 1))
		assert.Equal(t, models.VerdictInsufficient, rec.Verdict)
		assert.True(t, rec.Statistic.IsNaN())
		assert.True(t, rec.PValue.IsNaN())
	})

	t.Run("missing values in the imputed column are dropped", func(t *testing.T) {
		rec := v.Compare(numeric("temp", nan, 1, 3), numeric("temp", nan, 1, 3))
		assert.Equal(t, models.VerdictNoChange, rec.Verdict)
		assert.InDelta(t, 0.0, float64(rec.Statistic), 1e-12)
	})

	t.Run("text column is an error row", func(t *testing.T) {
		rec := v.Compare(text("wd", "", "N"), text("wd", "N", "N"))
		require.NotNil(t, rec.Err)
		assert.True(t, strings.HasPrefix(rec.Verdict, "error: "))
		assert.True(t, rec.PValue.IsNaN())
	})
}

func TestValidator_Validate(t *testing.T) {
	original := mustTable(t, nil,
		numeric("pm10", 1, nan, 3, 4),
		numeric("so2", 1, 2, 3, 4),
		numeric("co", nan, nan, nan, 5),
	)
	imputed, _ := Impute(original)

	results := NewValidator().Validate(original, imputed, []string{"pm10", "so2", "co", "absent"})
	require.Len(t, results, 2)
	assert.Equal(t, "pm10", results[0].Column)
	assert.Equal(t, "co", results[1].Column)
	assert.Equal(t, models.VerdictInsufficient, results[1].Verdict)
}

func TestValidator_ImputedColumnMissing(t *testing.T) {
	original := mustTable(t, nil, numeric("pm10", 1, nan, 3))
	imputed := mustTable(t, nil, numeric("pm25", 1, 2, 3))

	results := NewValidator().Validate(original, imputed, []string{"pm10"})
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Err)
	assert.ErrorIs(t, results[0].Err, models.ErrColumnNotFound)
	assert.Equal(t, "error: column not found", results[0].Verdict)
}

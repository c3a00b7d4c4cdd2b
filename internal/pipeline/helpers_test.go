package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality-eda/internal/models"
)

var (
	nan = math.NaN()
	t0  = time.Date(2013, 3, 1, 0, 0, 0, 0, time.UTC)
)

func numeric(name string, values ...float64) models.Column {
	return models.Column{Name: name, Kind: models.KindNumeric, Floats: values}
}

func text(name string, values ...string) models.Column {
	return models.Column{Name: name, Kind: models.KindText, Texts: values}
}

func hourly(n int) []time.Time {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return times
}

func mustTable(t *testing.T, times []time.Time, cols ...models.Column) *models.Table {
	t.Helper()
	table, err := models.NewTable(cols, times)
	require.NoError(t, err)
	return table
}

func floatsOf(t *testing.T, table *models.Table, name string) []float64 {
	t.Helper()
	col, ok := table.Column(name)
	require.True(t, ok, "column %s", name)
	return col.Floats
}

// assertFloats compares element-wise, treating NaN as equal to NaN
func assertFloats(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality-eda/internal/models"
)

func TestImpute_TimePath(t *testing.T) {
	tests := []struct {
		name  string
		times []time.Time
		col   models.Column
		want  []float64
	}{
		{
			name:  "pollutant interior gaps are interpolated",
			times: hourly(5),
			col:   numeric("pm2_5", 10, nan, 14, nan, 18),
			want:  []float64{10, 12, 14, 16, 18},
		},
		{
			name:  "pollutant edges closed by ffill and bfill",
			times: hourly(5),
			col:   numeric("no2", nan, 10, nan, 20, nan),
			want:  []float64{10, 10, 15, 20, 20},
		},
		{
			name:  "meteorological edges stay missing",
			times: hourly(5),
			col:   numeric("temp", nan, 10, nan, 20, nan),
			want:  []float64{nan, 10, 15, 20, nan},
		},
		{
			name:  "zero floor never interpolates",
			times: hourly(3),
			col:   numeric("wspm", nan, 2, nan),
			want:  []float64{0, 2, 0},
		},
		{
			name:  "interpolation weighted by elapsed time",
			times: []time.Time{t0, t0.Add(time.Hour), t0.Add(4 * time.Hour)},
			col:   numeric("pm10", 0, nan, 30),
			want:  []float64{0, 7.5, 30},
		},
		{
			name:  "unclassified numeric interpolated and closed",
			times: hourly(4),
			col:   numeric("humidity", nan, 40, nan, 60),
			want:  []float64{40, 40, 50, 60},
		},
		{
			name:  "all missing column returned unchanged",
			times: hourly(3),
			col:   numeric("co", nan, nan, nan),
			want:  []float64{nan, nan, nan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustTable(t, tt.times, tt.col)
			out, report := Impute(table)
			assert.Equal(t, PathTime, report.Path)
			assertFloats(t, tt.want, floatsOf(t, out, tt.col.Name))
		})
	}
}

func TestImpute_SortsByTime(t *testing.T) {
	times := []time.Time{t0.Add(2 * time.Hour), t0, t0.Add(time.Hour)}
	table := mustTable(t, times,
		numeric("pm2_5", 20, 0, nan),
		text("station", "Dongsi", "Dongsi", "Dongsi"),
	)

	out, _ := Impute(table)
	assert.Equal(t, hourly(3), out.Times())
	assertFloats(t, []float64{0, 10, 20}, floatsOf(t, out, "pm2_5"))
}

func TestImpute_MissingTimestampRows(t *testing.T) {
	times := []time.Time{t0, {}, t0.Add(2 * time.Hour), t0.Add(4 * time.Hour)}
	table := mustTable(t, times, numeric("pm10", 10, nan, nan, 30))

	out, report := Impute(table)
	require.Equal(t, PathTime, report.Path)

	// sorted: t0, t0+2h, t0+4h, then the row without a timestamp
	assertFloats(t, []float64{10, 20, 30, 30}, floatsOf(t, out, "pm10"))
	assert.True(t, out.Times()[3].IsZero())
}

func TestImpute_Directional(t *testing.T) {
	table := mustTable(t, hourly(5), text("wd", "", "N", "", "E", ""))
	out, _ := Impute(table)

	col, _ := out.Column("wd")
	assert.Equal(t, []string{"N", "N", "N", "E", "E"}, col.Texts)
}

func TestImpute_TextPassthrough(t *testing.T) {
	table := mustTable(t, hourly(3), text("station", "Dongsi", "", "Dongsi"))
	out, _ := Impute(table)

	col, _ := out.Column("station")
	assert.Equal(t, []string{"Dongsi", "", "Dongsi"}, col.Texts)
}

func TestImpute_Fallback(t *testing.T) {
	tests := []struct {
		name string
		col  models.Column
		want []float64
	}{
		{name: "odd count median", col: numeric("pm10", 1, nan, 3, 10), want: []float64{1, 3, 3, 10}},
		{name: "even count median", col: numeric("temp", 1, nan, 3, 5, 10), want: []float64{1, 4, 3, 5, 10}},
		{name: "zero floor", col: numeric("rain", nan, 0.5, nan), want: []float64{0, 0.5, 0}},
		{name: "all missing unchanged", col: numeric("o3", nan, nan), want: []float64{nan, nan}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report := Impute(mustTable(t, nil, tt.col))
			assert.Equal(t, PathFallback, report.Path)
			assertFloats(t, tt.want, floatsOf(t, out, tt.col.Name))
		})
	}
}

func TestImpute_FallbackWhenAllTimestampsMissing(t *testing.T) {
	table := mustTable(t, []time.Time{{}, {}, {}},
		numeric("pm2_5", 2, nan, 4),
		text("wd", "", "NW", ""),
	)

	out, report := Impute(table)
	assert.Equal(t, PathFallback, report.Path)
	assertFloats(t, []float64{2, 3, 4}, floatsOf(t, out, "pm2_5"))

	wd, _ := out.Column("wd")
	assert.Equal(t, []string{"NW", "NW", "NW"}, wd.Texts)
}

func TestImpute_DoesNotMutateInput(t *testing.T) {
	table := mustTable(t, []time.Time{t0.Add(time.Hour), t0},
		numeric("pm10", nan, 5),
	)

	_, _ = Impute(table)
	assertFloats(t, []float64{nan, 5}, floatsOf(t, table, "pm10"))
	assert.Equal(t, []time.Time{t0.Add(time.Hour), t0}, table.Times())
}

func TestImpute_Idempotent(t *testing.T) {
	times := []time.Time{t0.Add(3 * time.Hour), t0, t0.Add(time.Hour), t0.Add(2 * time.Hour)}
	table := mustTable(t, times,
		numeric("pm2_5", 40, nan, 20, nan),
		numeric("temp", 3, 1, nan, 2.5),
		numeric("wspm", nan, 1.2, nan, 0.4),
		text("wd", "NE", "", "N", ""),
		text("station", "Dongsi", "Dongsi", "Dongsi", "Dongsi"),
	)

	once, _ := Impute(table)
	twice, report := Impute(once)

	assert.Empty(t, report.Filled)
	assert.Equal(t, once.Times(), twice.Times())
	for _, name := range once.ColumnNames() {
		a, _ := once.Column(name)
		b, _ := twice.Column(name)
		if a.Kind == models.KindText {
			assert.Equal(t, a.Texts, b.Texts, name)
			continue
		}
		assertFloats(t, a.Floats, b.Floats)
	}
}

func TestImpute_Report(t *testing.T) {
	table := mustTable(t, hourly(3),
		numeric("pm10", nan, 2, nan),
		numeric("temp", nan, 2, 3),
		numeric("so2", 1, 2, 3),
	)

	_, report := Impute(table)
	assert.Equal(t, map[string]int{"pm10": 2}, report.Filled)
	assert.Equal(t, []string{"temp"}, report.Unfilled)
}

func TestImpute_Empty(t *testing.T) {
	out, report := Impute(models.EmptyTable())
	assert.True(t, out.Empty())
	assert.Equal(t, PathNone, report.Path)
}

package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality-eda/internal/models"
)

func TestClassifier_Labels(t *testing.T) {
	tests := []struct {
		name   string
		target string
		cols   []models.Column
		want   string
	}{
		{
			name:   "no missing values",
			target: "pm10",
			cols:   []models.Column{numeric("pm10", 1, 2, 3), numeric("so2", 3, 2, 1)},
			want:   models.LabelNoMissing,
		},
		{
			name:   "indicator perfectly correlated at ten percent missing",
			target: "pm10",
			cols: []models.Column{
				numeric("pm10", nan, 1, 2, 3, 4, 5, 6, 7, 8, 9),
				numeric("x", 1, 0, 0, 0, 0, 0, 0, 0, 0, 0),
			},
			want: models.LabelMAR,
		},
		{
			name:   "high rate without predictor",
			target: "pm10",
			cols: []models.Column{
				numeric("pm10", nan, nan, nan, 1, 2, 3, 4, 5, 6, 7),
				numeric("y", 1, 2, 3, 2, 2, 2, 2, 2, 2, 2),
			},
			want: models.LabelMNAR,
		},
		{
			name:   "low rate without predictor",
			target: "pm10",
			cols: []models.Column{
				numeric("pm10", nan, 1, 2, 3, 4, 5, 6, 7, 8, 9),
				numeric("y", 5, 4, 6, 4, 6, 4, 6, 4, 6, 5),
			},
			want: models.LabelMCAR,
		},
		{
			name:   "no other numeric columns",
			target: "pm10",
			cols: []models.Column{
				numeric("pm10", nan, nan, nan, 1),
				text("station", "a", "a", "a", "a"),
			},
			want: models.LabelMCAR,
		},
		{
			name:   "other column entirely missing",
			target: "pm10",
			cols:   []models.Column{numeric("pm10", nan, nan, 1), numeric("co", nan, nan, nan)},
			want:   models.LabelMCAR,
		},
		{
			name:   "other column constant",
			target: "pm10",
			cols:   []models.Column{numeric("pm10", nan, nan, 1), numeric("co", 4, 4, 4)},
			want:   models.LabelMCAR,
		},
		{
			name:   "rows missing in the other column are skipped",
			target: "pm10",
			cols: []models.Column{
				numeric("pm10", nan, nan, 1, 2, 3),
				numeric("co", nan, nan, 1, 5, 9),
			},
			want: models.LabelMCAR,
		},
		{
			name:   "text target",
			target: "wd",
			cols: []models.Column{
				text("wd", "", "N", "N", "N"),
				numeric("pm10", 100, 1, 1, 1),
			},
			want: models.LabelMAR,
		},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustTable(t, nil, tt.cols...)
			rec, err := c.Classify(tt.target, table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Label)
			assert.Equal(t, tt.want, c.Label(tt.target, table))
		})
	}
}

func TestClassifier_EmptyTable(t *testing.T) {
	rec, err := NewClassifier().Classify("pm10", models.EmptyTable())
	require.NoError(t, err)
	assert.Equal(t, models.LabelNoData, rec.Label)
}

func TestClassifier_UnknownColumn(t *testing.T) {
	table := mustTable(t, nil, numeric("pm10", 1))
	_, err := NewClassifier().Classify("pm25", table)
	assert.True(t, errors.Is(err, models.ErrColumnNotFound))
	assert.Equal(t, "", NewClassifier().Label("pm25", table))
}

func TestClassifier_Record(t *testing.T) {
	table := mustTable(t, nil,
		numeric("pm10", nan, 1, 2, 3, 4, 5, 6, 7, 8, 9),
		numeric("x", 1, 0, 0, 0, 0, 0, 0, 0, 0, 0),
		numeric("empty", nan, nan, nan, nan, nan, nan, nan, nan, nan, nan),
	)

	rec, err := NewClassifier().Classify("pm10", table)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, float64(rec.MissingFraction), 1e-12)
	assert.InDelta(t, 1.0, float64(rec.Correlations["x"]), 1e-12)
	assert.True(t, rec.Correlations["empty"].IsNaN())
	assert.InDelta(t, 1.0, float64(rec.MaxAbsCorrelation), 1e-12)
}

func TestClassifier_ConfigurableThresholds(t *testing.T) {
	table := mustTable(t, nil,
		numeric("pm10", nan, 1, 2, 3, 4, 5, 6, 7, 8, 9),
		numeric("y", 5, 4, 6, 4, 6, 4, 6, 4, 6, 5),
	)

	assert.Equal(t, models.LabelMCAR, NewClassifier().Label("pm10", table))

	strict := &Classifier{MARCorrelation: DefaultMARCorrelation, MNARRate: 0.05}
	assert.Equal(t, models.LabelMNAR, strict.Label("pm10", table))
}

func TestClassifier_DatetimeAxis(t *testing.T) {
	table := mustTable(t, []time.Time{t0, {}, t0.Add(2 * time.Hour)}, numeric("pm10", 1, 2, 3))
	rec, err := NewClassifier().Classify(models.DatetimeColumn, table)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, float64(rec.MissingFraction), 1e-12)
	assert.Equal(t, models.LabelMNAR, rec.Label)
}

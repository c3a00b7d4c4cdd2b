package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality-eda/internal/models"
	"airquality-eda/pkg/logging"
	"airquality-eda/pkg/metrics"
)

// stationTable is four hourly PRSA rows with one gap in PM2.5 and one in wd
func stationTable(t *testing.T) *models.Table {
	t.Helper()
	table, err := models.NewTable([]models.Column{
		{Name: "No", Kind: models.KindNumeric, Floats: []float64{1, 2, 3, 4}},
		{Name: "year", Kind: models.KindNumeric, Floats: []float64{2013, 2013, 2013, 2013}},
		{Name: "month", Kind: models.KindNumeric, Floats: []float64{3, 3, 3, 3}},
		{Name: "day", Kind: models.KindNumeric, Floats: []float64{1, 1, 1, 1}},
		{Name: "hour", Kind: models.KindNumeric, Floats: []float64{0, 1, 2, 3}},
		{Name: "PM2.5", Kind: models.KindNumeric, Floats: []float64{10, math.NaN(), 30, 40}},
		{Name: "TEMP", Kind: models.KindNumeric, Floats: []float64{1, 2, 3, 4}},
		{Name: "wd", Kind: models.KindText, Texts: []string{"N", "", "S", "S"}},
		{Name: "station", Kind: models.KindText, Texts: []string{"Dongsi", "Dongsi", "Dongsi", "Dongsi"}},
	}, nil)
	require.NoError(t, err)
	return table
}

// funcSource lets a test swap what the next load returns
type funcSource struct {
	mu   sync.Mutex
	load func() (*models.Table, error)
}

func (s *funcSource) Load(ctx context.Context) (*models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *funcSource) Describe() string { return "func" }

func (s *funcSource) set(fn func() (*models.Table, error)) {
	s.mu.Lock()
	s.load = fn
	s.mu.Unlock()
}

func newService(t *testing.T, src TableSource) *AnalysisService {
	t.Helper()
	collector := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewAnalysisService(src, DefaultAnalysisOptions(), logging.NewNopLogger(), collector)
}

func TestInitialize_BuildsSnapshot(t *testing.T) {
	src := &StaticSource{Table: stationTable(t), Name: "static:dongsi"}
	snap := Initialize(context.Background(), src, DefaultAnalysisOptions(), logging.NewNopLogger(), nil)

	require.NoError(t, snap.LoadErr)
	assert.Equal(t, "static:dongsi", snap.Source)
	assert.Equal(t, 4, snap.Original.Len())
	assert.Equal(t, 4, snap.Imputed.Len())
	assert.True(t, snap.Original.HasTimes())
	assert.Equal(t, []string{"pm2_5", "temp"}, snap.AnalysisColumns)

	pm, ok := snap.Imputed.Column("pm2_5")
	require.True(t, ok)
	assert.Equal(t, []float64{10, 20, 30, 40}, pm.Floats)

	wd, ok := snap.Imputed.Column("wd")
	require.True(t, ok)
	assert.Equal(t, []string{"N", "N", "S", "S"}, wd.Texts)

	// the original keeps its gaps
	orig, _ := snap.Original.Column("pm2_5")
	assert.Equal(t, 1, orig.MissingCount())
}

func TestInitialize_LoadFailureYieldsEmptySnapshot(t *testing.T) {
	boom := errors.New("connection refused")
	src := &funcSource{load: func() (*models.Table, error) { return nil, boom }}

	snap := Initialize(context.Background(), src, DefaultAnalysisOptions(), logging.NewNopLogger(), nil)

	assert.ErrorIs(t, snap.LoadErr, boom)
	assert.True(t, snap.Empty())
	assert.Equal(t, 0, snap.Imputed.Len())
	assert.Empty(t, snap.AnalysisColumns)
}

func TestAnalysisService_MissingAnalysis(t *testing.T) {
	svc := newService(t, &StaticSource{Table: stationTable(t)})
	svc.Start(context.Background())

	result := svc.GetMissingAnalysis(context.Background())

	assert.Equal(t, []models.ColumnCount{{Column: "pm2_5", Count: 1}, {Column: "wd", Count: 1}}, result.Before)
	assert.Empty(t, result.After)
	assert.NotNil(t, result.After)
	assert.Equal(t, map[string]string{"pm2_5": models.LabelMNAR, "wd": models.LabelMNAR}, result.Types)
	require.Len(t, result.Records, 2)
	assert.InDelta(t, 0.25, float64(result.Records[0].MissingFraction), 1e-12)
}

func TestAnalysisService_KSResults(t *testing.T) {
	svc := newService(t, &StaticSource{Table: stationTable(t)})
	svc.Start(context.Background())

	results := svc.GetKSTestResults(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, "pm2_5", results[0].Column)
	assert.InDelta(t, 1.0/6.0, float64(results[0].Statistic), 1e-12)
	assert.Equal(t, models.VerdictNoChange, results[0].Verdict)
	assert.Nil(t, results[0].Err)
}

func TestAnalysisService_EmptyBeforeStart(t *testing.T) {
	svc := newService(t, &StaticSource{Table: stationTable(t)})

	result := svc.GetMissingAnalysis(context.Background())
	assert.NotNil(t, result.Before)
	assert.NotNil(t, result.Types)
	assert.Empty(t, result.Records)
	assert.Empty(t, svc.GetKSTestResults(context.Background()))

	rec, err := svc.ClassifyColumn(context.Background(), "pm2_5")
	require.NoError(t, err)
	assert.Equal(t, models.LabelNoData, rec.Label)

	original, imputed, cols := svc.GetData()
	assert.True(t, original.Empty())
	assert.True(t, imputed.Empty())
	assert.Empty(t, cols)
}

func TestAnalysisService_ClassifyColumn(t *testing.T) {
	svc := newService(t, &StaticSource{Table: stationTable(t)})
	svc.Start(context.Background())

	rec, err := svc.ClassifyColumn(context.Background(), "temp")
	require.NoError(t, err)
	assert.Equal(t, models.LabelNoMissing, rec.Label)

	_, err = svc.ClassifyColumn(context.Background(), "pm25")
	assert.ErrorIs(t, err, models.ErrColumnNotFound)
}

func TestAnalysisService_Summary(t *testing.T) {
	svc := newService(t, &StaticSource{Table: stationTable(t), Name: "static:dongsi"})
	svc.Start(context.Background())

	summary := svc.Summary()

	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 4, summary.ImputedRows)
	assert.Equal(t, "Dongsi", summary.Station)
	assert.Equal(t, "static:dongsi", summary.Source)
	assert.Equal(t, 2, summary.AnalysisCount)
	require.NotNil(t, summary.TimeRange)
	assert.Equal(t, 3, summary.TimeRange.End.Hour())
	assert.True(t, summary.TimeRange.Start.Before(summary.TimeRange.End))
}

func TestAnalysisService_ReloadSwapsSnapshot(t *testing.T) {
	first := stationTable(t)
	src := &funcSource{load: func() (*models.Table, error) { return first, nil }}
	svc := newService(t, src)
	svc.Start(context.Background())
	before := svc.Snapshot()

	second, err := models.NewTable([]models.Column{
		{Name: "PM10", Kind: models.KindNumeric, Floats: []float64{1, math.NaN(), 3}},
	}, nil)
	require.NoError(t, err)
	src.set(func() (*models.Table, error) { return second, nil })

	snap, err := svc.Reload(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.NotSame(t, before, snap)
	assert.Equal(t, 3, svc.Summary().Rows)

	// readers holding the old snapshot still see the old data
	assert.Equal(t, 4, before.Original.Len())
}

func TestAnalysisService_ReloadFailureKeepsSnapshot(t *testing.T) {
	src := &funcSource{load: func() (*models.Table, error) { return stationTable(t), nil }}
	svc := newService(t, src)
	svc.Start(context.Background())
	before := svc.Snapshot()

	src.set(func() (*models.Table, error) { return nil, errors.New("file vanished") })

	snap, err := svc.Reload(context.Background(), TriggerWatch)
	assert.ErrorIs(t, err, ErrReloadFailed)
	assert.Same(t, before, snap)
	assert.Same(t, before, svc.Snapshot())
}

func TestGuard_RecoversPanic(t *testing.T) {
	aerr := guard("pm10", models.StageValidate, func() error {
		panic("index out of range")
	})
	require.NotNil(t, aerr)
	assert.Equal(t, "pm10", aerr.Variable)
	assert.Equal(t, models.StageValidate, aerr.Stage)
	assert.Equal(t, "error: panic: index out of range", aerr.Note())

	assert.Nil(t, guard("pm10", models.StageValidate, func() error { return nil }))
}

func TestOptionsDefaultsApplied(t *testing.T) {
	svc := NewAnalysisService(&StaticSource{}, AnalysisOptions{}, logging.NewNopLogger(), nil)
	assert.Equal(t, DefaultAnalysisOptions().MARCorrelation, svc.classifier.MARCorrelation)
	assert.Equal(t, DefaultAnalysisOptions().KSAlpha, svc.validator.Alpha)
	assert.Equal(t, "static", svc.Snapshot().Source)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"airquality-eda/internal/config"
	"airquality-eda/internal/models"
	"airquality-eda/internal/pipeline"
	"airquality-eda/pkg/logging"
	"airquality-eda/pkg/metrics"
)

// AnalysisOptions parameterizes the missing-data pipeline
type AnalysisOptions struct {
	MARCorrelation   float64
	MNARRate         float64
	KSAlpha          float64
	IncludeDateParts bool
	Strategies       models.StrategyMap
}

// DefaultAnalysisOptions returns the built-in thresholds and strategies
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		MARCorrelation: pipeline.DefaultMARCorrelation,
		MNARRate:       pipeline.DefaultMNARRate,
		KSAlpha:        pipeline.DefaultAlpha,
		Strategies:     models.DefaultStrategies(),
	}
}

// OptionsFromConfig builds analysis options from configuration
func OptionsFromConfig(cfg *config.Config) (AnalysisOptions, error) {
	strategies, err := cfg.Strategies()
	if err != nil {
		return AnalysisOptions{}, err
	}
	return AnalysisOptions{
		MARCorrelation:   cfg.Analysis.MARCorrelationThreshold,
		MNARRate:         cfg.Analysis.MNARMissingRate,
		KSAlpha:          cfg.Analysis.KSAlpha,
		IncludeDateParts: cfg.Analysis.IncludeDateParts,
		Strategies:       strategies,
	}, nil
}

// Snapshot is the frozen result of one initialization: the normalized
// original table, its imputed counterpart and the analysis columns. It is
// never modified after Initialize returns it.
type Snapshot struct {
	Original        *models.Table
	Imputed         *models.Table
	AnalysisColumns []string
	Report          pipeline.ImputeReport
	Source          string
	LoadedAt        time.Time
	LoadErr         error
}

// Empty reports whether the snapshot holds no observations
func (s *Snapshot) Empty() bool {
	return s == nil || s.Original.Empty()
}

// Initialize loads the raw table from src, normalizes and imputes it. A
// load failure is logged and yields an empty snapshot carrying LoadErr.
func Initialize(ctx context.Context, src TableSource, opts AnalysisOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Snapshot {
	start := time.Now()
	snap := &Snapshot{
		Original:        models.EmptyTable(),
		Imputed:         models.EmptyTable(),
		AnalysisColumns: []string{},
		Report:          pipeline.ImputeReport{Path: pipeline.PathNone, Filled: map[string]int{}},
		Source:          src.Describe(),
		LoadedAt:        start.UTC(),
	}

	logger.Info(ctx, "[INIT_START] Loading observation table", logging.Fields{
		"source": snap.Source,
	})

	raw, err := src.Load(ctx)
	if err != nil {
		snap.LoadErr = err
		logger.Error(ctx, "[INIT_LOAD_ERROR] Failed to load observation table", logging.Fields{
			"source": snap.Source,
		}, err)
		return snap
	}
	if raw.Empty() {
		snap.LoadErr = models.ErrEmptyTable
		logger.Warn(ctx, "[INIT_EMPTY] Observation table has no rows", logging.Fields{
			"source": snap.Source,
		})
		return snap
	}

	snap.Original = pipeline.NewNormalizer(opts.Strategies).Normalize(raw)

	imputeStart := time.Now()
	snap.Imputed, snap.Report = pipeline.Impute(snap.Original)
	metricsCollector.ObserveImputation(time.Since(imputeStart))

	snap.AnalysisColumns = pipeline.AnalysisColumns(snap.Imputed, opts.IncludeDateParts)

	build := time.Since(start)
	metricsCollector.RecordSnapshot(snap.Original.Len(), snap.Imputed.Len(), snap.Report.Filled, build)

	logger.Info(ctx, "[INIT_COMPLETE] Snapshot ready", logging.Fields{
		"source":           snap.Source,
		"rows":             snap.Original.Len(),
		"columns":          len(snap.Original.ColumnNames()),
		"analysis_columns": len(snap.AnalysisColumns),
		"imputation_path":  snap.Report.Path,
		"unfilled_columns": snap.Report.Unfilled,
		"duration_ms":      build.Milliseconds(),
	})

	return snap
}

// AnalysisService serves the missing-data analysis over the current
// snapshot. Reads are lock free; a reload swaps in a complete new snapshot.
type AnalysisService struct {
	source     TableSource
	opts       AnalysisOptions
	classifier *pipeline.Classifier
	validator  *pipeline.Validator
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
}

// NewAnalysisService creates a service over src. Call Start to build the
// first snapshot; until then every operation sees an empty table.
func NewAnalysisService(src TableSource, opts AnalysisOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalysisService {
	defaults := DefaultAnalysisOptions()
	if opts.Strategies == nil {
		opts.Strategies = defaults.Strategies
	}
	if opts.MARCorrelation <= 0 {
		opts.MARCorrelation = defaults.MARCorrelation
	}
	if opts.MNARRate <= 0 {
		opts.MNARRate = defaults.MNARRate
	}
	if opts.KSAlpha <= 0 {
		opts.KSAlpha = defaults.KSAlpha
	}
	s := &AnalysisService{
		source:     src,
		opts:       opts,
		classifier: &pipeline.Classifier{MARCorrelation: opts.MARCorrelation, MNARRate: opts.MNARRate},
		validator:  &pipeline.Validator{Alpha: opts.KSAlpha},
		logger:     logger,
		metrics:    metricsCollector,
	}
	s.current.Store(&Snapshot{
		Original:        models.EmptyTable(),
		Imputed:         models.EmptyTable(),
		AnalysisColumns: []string{},
		Report:          pipeline.ImputeReport{Path: pipeline.PathNone, Filled: map[string]int{}},
		Source:          src.Describe(),
	})
	return s
}

// Start builds and publishes the initial snapshot
func (s *AnalysisService) Start(ctx context.Context) *Snapshot {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap := Initialize(ctx, s.source, s.opts, s.logger, s.metrics)
	s.current.Store(snap)
	return snap
}

// ErrReloadFailed is returned when a reload could not load a usable table
var ErrReloadFailed = errors.New("reload failed")

// Reload builds a new snapshot and swaps it in. When the load fails the
// current snapshot stays in place.
func (s *AnalysisService) Reload(ctx context.Context, trigger string) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap := Initialize(ctx, s.source, s.opts, s.logger, s.metrics)
	if snap.LoadErr != nil {
		s.metrics.RecordReload(trigger, "failed")
		s.logger.Warn(ctx, "[RELOAD_KEPT] Reload failed, keeping current snapshot", logging.Fields{
			"trigger": trigger,
			"error":   snap.LoadErr.Error(),
		})
		return s.Snapshot(), fmt.Errorf("%w: %v", ErrReloadFailed, snap.LoadErr)
	}

	s.current.Store(snap)
	s.metrics.RecordReload(trigger, "success")
	s.logger.Info(ctx, "[RELOAD_COMPLETE] Snapshot replaced", logging.Fields{
		"trigger": trigger,
		"rows":    snap.Original.Len(),
	})
	return snap, nil
}

// Snapshot returns the current snapshot
func (s *AnalysisService) Snapshot() *Snapshot {
	return s.current.Load()
}

// GetData returns the original table, the imputed table and the analysis
// column names of the current snapshot
func (s *AnalysisService) GetData() (*models.Table, *models.Table, []string) {
	snap := s.Snapshot()
	return snap.Original, snap.Imputed, append([]string{}, snap.AnalysisColumns...)
}

// GetMissingAnalysis returns the missing counts before and after imputation
// and a mechanism label for every originally incomplete column
func (s *AnalysisService) GetMissingAnalysis(ctx context.Context) models.MissingAnalysis {
	snap := s.Snapshot()
	result := models.MissingAnalysis{
		Before:  []models.ColumnCount{},
		After:   []models.ColumnCount{},
		Types:   map[string]string{},
		Records: []models.MechanismRecord{},
	}
	if snap.Empty() {
		return result
	}

	result.Before = pipeline.MissingCounts(snap.Original)
	result.After = pipeline.MissingCounts(snap.Imputed)

	for _, name := range pipeline.IncompleteColumns(snap.Original) {
		rec := s.classify(ctx, name, snap.Original)
		result.Types[name] = rec.Note()
		result.Records = append(result.Records, rec)
	}
	return result
}

// ClassifyColumn returns the mechanism record of a single column. It
// returns models.ErrColumnNotFound for unknown columns of a loaded table.
func (s *AnalysisService) ClassifyColumn(ctx context.Context, name string) (models.MechanismRecord, error) {
	snap := s.Snapshot()
	if !snap.Empty() && !snap.Original.HasColumn(name) {
		return models.MechanismRecord{}, fmt.Errorf("column %q: %w", name, models.ErrColumnNotFound)
	}
	return s.classify(ctx, name, snap.Original), nil
}

func (s *AnalysisService) classify(ctx context.Context, name string, t *models.Table) models.MechanismRecord {
	var rec models.MechanismRecord
	aerr := guard(name, models.StageClassify, func() error {
		var err error
		rec, err = s.classifier.Classify(name, t)
		return err
	})
	if aerr != nil {
		rec = models.MechanismRecord{
			Column:            name,
			MissingFraction:   models.Float(math.NaN()),
			MaxAbsCorrelation: models.Float(math.NaN()),
			Err:               aerr,
		}
		s.logger.Error(ctx, "[CLASSIFY_ERROR] Missingness classification failed", logging.Fields{
			"column": name,
		}, aerr)
		s.metrics.RecordMechanism("error")
		return rec
	}
	s.metrics.RecordMechanism(rec.Label)
	return rec
}

// GetKSTestResults compares observed and imputed distributions for every
// analysis column that had missing values
func (s *AnalysisService) GetKSTestResults(ctx context.Context) []models.ShiftRecord {
	snap := s.Snapshot()
	results := []models.ShiftRecord{}
	if snap.Empty() {
		return results
	}

	columns := pipeline.AnalysisColumns(snap.Original, s.opts.IncludeDateParts)
	for _, name := range columns {
		before, _ := snap.Original.Column(name)
		if before.MissingCount() == 0 {
			continue
		}

		var rec models.ShiftRecord
		aerr := guard(name, models.StageValidate, func() error {
			recs := s.validator.Validate(snap.Original, snap.Imputed, []string{name})
			if len(recs) == 0 {
				return fmt.Errorf("no result for %s", name)
			}
			rec = recs[0]
			return nil
		})
		if aerr != nil {
			rec = models.ShiftRecord{
				Column:    name,
				Statistic: models.Float(math.NaN()),
				PValue:    models.Float(math.NaN()),
				Verdict:   aerr.Note(),
				Err:       aerr,
			}
		}
		if rec.Err != nil {
			s.logger.Error(ctx, "[KS_ERROR] Distribution comparison failed", logging.Fields{
				"column": name,
			}, rec.Err)
		}
		s.metrics.RecordShiftVerdict(rec.VerdictCategory())
		results = append(results, rec)
	}
	return results
}

// Summary describes the current snapshot
func (s *AnalysisService) Summary() models.DataSummary {
	snap := s.Snapshot()
	summary := models.DataSummary{
		AnalysisColumns: append([]string{}, snap.AnalysisColumns...),
		AnalysisCount:   len(snap.AnalysisColumns),
		LoadedAt:        snap.LoadedAt,
		Source:          snap.Source,
	}
	if snap.Empty() {
		return summary
	}

	summary.Rows = snap.Original.Len()
	summary.Columns = len(snap.Original.ColumnNames())
	if snap.Original.HasTimes() {
		summary.Columns++
	}
	summary.ImputedRows = snap.Imputed.Len()

	if station, ok := snap.Original.Column("station"); ok && station.Len() > 0 {
		if station.Kind == models.KindText {
			summary.Station = station.Texts[0]
		} else if !station.IsMissing(0) {
			summary.Station = fmt.Sprint(station.Floats[0])
		}
	}

	var first, last time.Time
	for _, ts := range snap.Original.Times() {
		if ts.IsZero() {
			continue
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	if !first.IsZero() {
		summary.TimeRange = &models.TimeRange{Start: first, End: last}
	}
	return summary
}

// guard runs fn and converts a returned error or a panic into an
// AnalysisError for variable
func guard(variable, stage string, fn func() error) (aerr *models.AnalysisError) {
	defer func() {
		if r := recover(); r != nil {
			aerr = models.NewAnalysisError(variable, stage, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		var existing *models.AnalysisError
		if errors.As(err, &existing) {
			return existing
		}
		return models.NewAnalysisError(variable, stage, err)
	}
	return nil
}

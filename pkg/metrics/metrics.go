package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Ingestion Metrics
	IngestionRowsTotal   prometheus.Counter
	IngestionDuration    prometheus.Histogram
	IngestionErrorsTotal *prometheus.CounterVec
	IngestionBatchSize   prometheus.Histogram

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	// Pipeline Metrics
	DatasetRows         *prometheus.GaugeVec
	ImputationDuration  prometheus.Histogram
	ImputedCells        *prometheus.GaugeVec
	MechanismLabels     *prometheus.CounterVec
	ShiftVerdicts       *prometheus.CounterVec
	ReloadsTotal        *prometheus.CounterVec
	SnapshotBuildTimeMS prometheus.Histogram
}

// NewCollector creates a collector whose metrics are registered on reg.
// Passing prometheus.DefaultRegisterer exposes them on promhttp.Handler().
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		IngestionRowsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_rows_total",
				Help:      "Total number of observation rows written to the tabular store",
			},
		),

		IngestionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_duration_seconds",
				Help:      "Duration of ingestion operations in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		IngestionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_errors_total",
				Help:      "Total number of ingestion errors by type",
			},
			[]string{"error_type"},
		),

		IngestionBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_batch_size",
				Help:      "Number of rows per batch during ingestion",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000},
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		DatasetRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Rows in the loaded observation table",
			},
			[]string{"table"}, // "original", "imputed"
		),

		ImputationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "imputation_duration_seconds",
				Help:      "Duration of a full-table imputation in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		ImputedCells: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "imputed_cells",
				Help:      "Cells filled by imputation in the current snapshot, by column",
			},
			[]string{"column"},
		),

		MechanismLabels: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missingness_labels_total",
				Help:      "Missingness mechanism labels assigned, by label",
			},
			[]string{"label"},
		),

		ShiftVerdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "distribution_shift_verdicts_total",
				Help:      "Distribution-shift test outcomes, by verdict",
			},
			[]string{"verdict"},
		),

		ReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_reloads_total",
				Help:      "Dataset reloads by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),

		SnapshotBuildTimeMS: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_build_milliseconds",
				Help:      "Time to load, normalize and impute a snapshot in milliseconds",
				Buckets:   []float64{10, 50, 100, 500, 1000, 2000, 5000, 10000},
			},
		),
	}
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// ObserveAPIRequest records the duration of a request to endpoint
func (c *Collector) ObserveAPIRequest(endpoint string, d time.Duration) {
	if c == nil {
		return
	}
	c.APIRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	if c == nil {
		return
	}
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordIngestionError increments ingestion error counter
func (c *Collector) RecordIngestionError(errorType string) {
	if c == nil {
		return
	}
	c.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordIngestedBatch records a committed batch of n rows
func (c *Collector) RecordIngestedBatch(n int) {
	if c == nil {
		return
	}
	c.IngestionBatchSize.Observe(float64(n))
	c.IngestionRowsTotal.Add(float64(n))
}

// ObserveIngestion records the duration of a full ingestion run
func (c *Collector) ObserveIngestion(d time.Duration) {
	if c == nil {
		return
	}
	c.IngestionDuration.Observe(d.Seconds())
}

// ObserveDBQuery records the duration of a query of the given type
func (c *Collector) ObserveDBQuery(queryType string, d time.Duration) {
	if c == nil {
		return
	}
	c.DBQueryDuration.WithLabelValues(queryType).Observe(d.Seconds())
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	if c == nil {
		return
	}
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	if c == nil {
		return
	}
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}

// RecordSnapshot publishes the row counts and per-column fill counts of a
// freshly built snapshot
func (c *Collector) RecordSnapshot(originalRows, imputedRows int, filled map[string]int, build time.Duration) {
	if c == nil {
		return
	}
	c.DatasetRows.WithLabelValues("original").Set(float64(originalRows))
	c.DatasetRows.WithLabelValues("imputed").Set(float64(imputedRows))
	c.ImputedCells.Reset()
	for column, n := range filled {
		c.ImputedCells.WithLabelValues(column).Set(float64(n))
	}
	c.SnapshotBuildTimeMS.Observe(float64(build.Milliseconds()))
}

// ObserveImputation records the duration of one imputation pass
func (c *Collector) ObserveImputation(d time.Duration) {
	if c == nil {
		return
	}
	c.ImputationDuration.Observe(d.Seconds())
}

// RecordMechanism counts a missingness label
func (c *Collector) RecordMechanism(label string) {
	if c == nil {
		return
	}
	c.MechanismLabels.WithLabelValues(label).Inc()
}

// RecordShiftVerdict counts a distribution-shift outcome
func (c *Collector) RecordShiftVerdict(verdict string) {
	if c == nil {
		return
	}
	c.ShiftVerdicts.WithLabelValues(verdict).Inc()
}

// RecordReload counts a reload attempt
func (c *Collector) RecordReload(trigger, outcome string) {
	if c == nil {
		return
	}
	c.ReloadsTotal.WithLabelValues(trigger, outcome).Inc()
}

package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Mechanism labels produced by the missingness classifier
const (
	LabelNoData    = "no data"
	LabelNoMissing = "no missing"
	LabelMCAR      = "MCAR"
	LabelMAR       = "MAR"
	LabelMNAR      = "MNAR"
)

// Distribution-shift verdicts
const (
	VerdictNoChange     = "no significant change"
	VerdictChange       = "significant change"
	VerdictInsufficient = "insufficient data"
)

// Float is a float64 that encodes NaN and infinities as JSON null
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// IsNaN reports whether f is NaN
func (f Float) IsNaN() bool {
	return math.IsNaN(float64(f))
}

// MechanismRecord is the per-variable missingness classification
type MechanismRecord struct {
	Column            string           `json:"column"`
	MissingFraction   Float            `json:"missing_fraction"`
	Correlations      map[string]Float `json:"correlations,omitempty"`
	MaxAbsCorrelation Float            `json:"max_abs_correlation"`
	Label             string           `json:"label"`
	Err               *AnalysisError   `json:"error,omitempty"`
}

// Note returns the label, or "error: <message>" when classification failed
func (r MechanismRecord) Note() string {
	if r.Err != nil {
		return r.Err.Note()
	}
	return r.Label
}

// ShiftRecord is the pre/post imputation KS comparison of one variable
type ShiftRecord struct {
	Column    string         `json:"column"`
	Statistic Float          `json:"ks_statistic"`
	PValue    Float          `json:"p_value"`
	Verdict   string         `json:"verdict"`
	Err       *AnalysisError `json:"error,omitempty"`
}

// VerdictCategory collapses error notes into "error" for metric labels
func (r ShiftRecord) VerdictCategory() string {
	if r.Err != nil {
		return "error"
	}
	return r.Verdict
}

// ColumnCount is a column name with its missing-value count
type ColumnCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// MissingAnalysis is the before/after missing-value report
type MissingAnalysis struct {
	Before  []ColumnCount     `json:"before"`
	After   []ColumnCount     `json:"after"`
	Types   map[string]string `json:"types"`
	Records []MechanismRecord `json:"records"`
}

// TimeRange is the span of the datetime axis
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DataSummary describes the loaded dataset
type DataSummary struct {
	Rows            int        `json:"rows"`
	Columns         int        `json:"columns"`
	AnalysisColumns []string   `json:"analysis_columns"`
	AnalysisCount   int        `json:"analysis_variables"`
	Station         string     `json:"station,omitempty"`
	TimeRange       *TimeRange `json:"time_range,omitempty"`
	ImputedRows     int        `json:"imputed_rows"`
	LoadedAt        time.Time  `json:"loaded_at"`
	Source          string     `json:"source"`
}

package pipeline

import (
	"fmt"
	"math"

	"airquality-eda/internal/models"
)

// Default classifier thresholds
const (
	DefaultMARCorrelation = 0.3
	DefaultMNARRate       = 0.20
)

// Classifier labels the missingness mechanism of a variable. It is a
// heuristic: a missingness indicator that correlates with another observed
// variable suggests MAR, a high missing rate without such a predictor is
// flagged MNAR, anything else is MCAR.
type Classifier struct {
	MARCorrelation float64
	MNARRate       float64
}

// NewClassifier returns a classifier with the default thresholds
func NewClassifier() *Classifier {
	return &Classifier{MARCorrelation: DefaultMARCorrelation, MNARRate: DefaultMNARRate}
}

// Classify computes the mechanism record for variable. The datetime axis
// can be classified like any other column. An error is returned only when
// the table is non-empty and variable is not one of its columns.
func (c *Classifier) Classify(variable string, t *models.Table) (models.MechanismRecord, error) {
	rec := models.MechanismRecord{
		Column:            variable,
		MissingFraction:   models.Float(math.NaN()),
		MaxAbsCorrelation: models.Float(math.NaN()),
	}

	if t.Empty() {
		rec.Label = models.LabelNoData
		return rec, nil
	}

	mask, ok := t.MissingMask(variable)
	if !ok {
		return rec, fmt.Errorf("classify %q: %w", variable, models.ErrColumnNotFound)
	}

	missing := 0
	indicator := make([]float64, len(mask))
	for i, m := range mask {
		if m {
			indicator[i] = 1
			missing++
		}
	}
	p := float64(missing) / float64(len(mask))
	rec.MissingFraction = models.Float(p)

	if missing == 0 {
		rec.Label = models.LabelNoMissing
		return rec, nil
	}

	rec.Correlations = make(map[string]models.Float)
	maxAbs := math.NaN()
	for _, name := range t.NumericColumnNames() {
		if name == variable {
			continue
		}
		col, _ := t.Column(name)
		r, defined := indicatorCorrelation(indicator, col.Floats)
		rec.Correlations[name] = models.Float(r)
		if !defined {
			continue
		}
		if math.IsNaN(maxAbs) || math.Abs(r) > maxAbs {
			maxAbs = math.Abs(r)
		}
	}
	rec.MaxAbsCorrelation = models.Float(maxAbs)
	rec.Label = c.label(p, maxAbs)
	return rec, nil
}

// Label is Classify reduced to its label. Unknown columns yield "".
func (c *Classifier) Label(variable string, t *models.Table) string {
	rec, err := c.Classify(variable, t)
	if err != nil {
		return ""
	}
	return rec.Label
}

func (c *Classifier) label(p, maxAbs float64) string {
	switch {
	case math.IsNaN(maxAbs):
		return models.LabelMCAR
	case maxAbs > c.MARCorrelation:
		return models.LabelMAR
	case p > c.MNARRate:
		return models.LabelMNAR
	default:
		return models.LabelMCAR
	}
}

// indicatorCorrelation correlates the indicator with values over the rows
// where values is observed
func indicatorCorrelation(indicator, values []float64) (float64, bool) {
	x := make([]float64, 0, len(values))
	y := make([]float64, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		x = append(x, indicator[i])
		y = append(y, v)
	}
	return Pearson(x, y)
}

package pipeline

import (
	"fmt"
	"math"

	"airquality-eda/internal/models"
)

// DefaultAlpha is the significance level of the distribution-shift test
const DefaultAlpha = 0.05

// Validator compares each variable's observed values before imputation with
// the completed column after imputation
type Validator struct {
	Alpha float64
}

// NewValidator returns a validator at the default significance level
func NewValidator() *Validator {
	return &Validator{Alpha: DefaultAlpha}
}

// Compare runs the two-sample KS test between the observed values of before
// and the non-missing values of after. Failures are recorded in the result.
func (v *Validator) Compare(before, after models.Column) models.ShiftRecord {
	rec := models.ShiftRecord{
		Column:    before.Name,
		Statistic: models.Float(math.NaN()),
		PValue:    models.Float(math.NaN()),
	}

	if before.Kind != models.KindNumeric || after.Kind != models.KindNumeric {
		err := models.NewAnalysisError(before.Name, models.StageValidate, fmt.Errorf("column is not numeric"))
		rec.Err = err
		rec.Verdict = err.Note()
		return rec
	}

	orig := before.Observed()
	completed := after.Observed()
	if len(orig) < 2 || len(completed) < 2 {
		rec.Verdict = models.VerdictInsufficient
		return rec
	}

	d, p, err := KolmogorovSmirnov(orig, completed)
	if err != nil {
		aerr := models.NewAnalysisError(before.Name, models.StageValidate, err)
		rec.Err = aerr
		rec.Verdict = aerr.Note()
		return rec
	}

	rec.Statistic = models.Float(d)
	rec.PValue = models.Float(p)
	if p > v.Alpha {
		rec.Verdict = models.VerdictNoChange
	} else {
		rec.Verdict = models.VerdictChange
	}
	return rec
}

// Validate compares every column in columns that had at least one missing
// value in original. Columns absent from either table become error rows.
func (v *Validator) Validate(original, imputed *models.Table, columns []string) []models.ShiftRecord {
	results := make([]models.ShiftRecord, 0, len(columns))
	for _, name := range columns {
		before, ok := original.Column(name)
		if !ok || before.MissingCount() == 0 {
			continue
		}
		after, ok := imputed.Column(name)
		if !ok {
			err := models.NewAnalysisError(name, models.StageValidate, models.ErrColumnNotFound)
			results = append(results, models.ShiftRecord{
				Column:    name,
				Statistic: models.Float(math.NaN()),
				PValue:    models.Float(math.NaN()),
				Verdict:   err.Note(),
				Err:       err,
			})
			continue
		}
		results = append(results, v.Compare(before, after))
	}
	return results
}

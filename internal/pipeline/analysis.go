package pipeline

import (
	"sort"

	"airquality-eda/internal/models"
)

var identifierColumns = map[string]struct{}{"station": {}, "no": {}}

// AnalysisColumns returns the numeric measurement columns of t: identifiers
// are dropped, and so are the date parts unless includeDateParts is set
func AnalysisColumns(t *models.Table, includeDateParts bool) []string {
	out := []string{}
	for _, name := range t.NumericColumnNames() {
		if _, skip := identifierColumns[name]; skip {
			continue
		}
		if !includeDateParts && isDatePart(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func isDatePart(name string) bool {
	for _, p := range datePartColumns {
		if p == name {
			return true
		}
	}
	return false
}

// MissingCounts lists columns with at least one missing value, most
// missing first, ties broken by name
func MissingCounts(t *models.Table) []models.ColumnCount {
	counts := []models.ColumnCount{}
	for name, n := range t.MissingCounts() {
		if n > 0 {
			counts = append(counts, models.ColumnCount{Column: name, Count: n})
		}
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Column < counts[j].Column
	})
	return counts
}

// IncompleteColumns returns every column of t, the datetime axis included,
// that has at least one missing value, in table order
func IncompleteColumns(t *models.Table) []string {
	counts := t.MissingCounts()
	out := []string{}
	for _, name := range t.ColumnNames() {
		if counts[name] > 0 {
			out = append(out, name)
		}
	}
	if counts[models.DatetimeColumn] > 0 && t.HasTimes() {
		out = append(out, models.DatetimeColumn)
	}
	return out
}

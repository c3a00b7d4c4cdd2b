package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"airquality-eda/internal/models"
)

// datePartColumns build the timestamp when all four are present
var datePartColumns = [4]string{"year", "month", "day", "hour"}

// dateLayouts are tried in order when parsing a free-form date column
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04",
	"01/02/2006",
	"20060102",
}

var nameReplacer = strings.NewReplacer(".", "_", " ", "_")

// NormalizeName canonicalizes a raw column name: trimmed, lower-cased, with
// "." and " " replaced by "_"
func NormalizeName(raw string) string {
	lower := cases.Lower(language.Und).String(strings.TrimSpace(raw))
	return nameReplacer.Replace(lower)
}

// Normalizer canonicalizes column names, resolves each column's imputation
// strategy and derives the datetime axis
type Normalizer struct {
	Strategies models.StrategyMap
}

// NewNormalizer returns a normalizer using strategies, or the defaults when nil
func NewNormalizer(strategies models.StrategyMap) *Normalizer {
	if strategies == nil {
		strategies = models.DefaultStrategies()
	}
	return &Normalizer{Strategies: strategies}
}

// Normalize returns a new table; raw is not modified. Rows whose date parts
// do not form a valid timestamp get the zero time.
func (n *Normalizer) Normalize(raw *models.Table) *models.Table {
	if raw == nil {
		return models.EmptyTable()
	}

	strategies := n.Strategies
	if strategies == nil {
		strategies = models.DefaultStrategies()
	}

	cols := raw.Columns()
	used := make(map[string]bool, len(cols))
	for i := range cols {
		name := NormalizeName(cols[i].Name)
		if name == "" {
			name = "column"
		}
		name = uniqueName(name, used)
		cols[i].Name = name
		cols[i].Strategy = strategies.Resolve(name, cols[i].Kind)
	}

	times, dateCol := deriveTimes(cols, raw.Len())

	if times != nil {
		kept := cols[:0]
		for _, c := range cols {
			// a raw "datetime" column becomes the axis itself
			if c.Name == models.DatetimeColumn && c.Name == dateCol {
				continue
			}
			if c.Name == models.DatetimeColumn {
				c.Name = uniqueName("datetime_raw", used)
			}
			kept = append(kept, c)
		}
		cols = kept
	} else if raw.HasTimes() {
		times = raw.Times()
	}

	out, err := models.NewTable(cols, times)
	if err != nil {
		// names were deduplicated and lengths come from a valid table
		return raw
	}
	return out
}

// uniqueName returns name, or name with the first free "_k" suffix when it is
// already taken, and marks the result as used
func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for k := 1; used[candidate]; k++ {
		candidate = name + "_" + strconv.Itoa(k)
	}
	used[candidate] = true
	return candidate
}

// deriveTimes returns the datetime axis and the name of the column it came
// from ("" for date parts). A nil slice means no timestamp could be derived.
func deriveTimes(cols []models.Column, rows int) ([]time.Time, string) {
	byName := make(map[string]models.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	parts := make([]models.Column, 0, len(datePartColumns))
	for _, name := range datePartColumns {
		if c, ok := byName[name]; ok {
			parts = append(parts, c)
		}
	}
	if len(parts) == len(datePartColumns) {
		times := make([]time.Time, rows)
		for r := 0; r < rows; r++ {
			times[r] = timeFromParts(parts, r)
		}
		return times, ""
	}

	for _, c := range cols {
		if !strings.Contains(c.Name, "date") {
			continue
		}
		times := make([]time.Time, rows)
		for r := 0; r < rows; r++ {
			times[r] = parseDateCell(c, r)
		}
		return times, c.Name
	}

	return nil, ""
}

func timeFromParts(parts []models.Column, row int) time.Time {
	var v [4]int
	for i, c := range parts {
		n, ok := integerCell(c, row)
		if !ok {
			return time.Time{}
		}
		v[i] = n
	}
	year, month, day, hour := v[0], v[1], v[2], v[3]
	if month < 1 || month > 12 || day < 1 || hour < 0 || hour > 23 {
		return time.Time{}
	}
	ts := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}
	}
	return ts
}

func integerCell(c models.Column, row int) (int, bool) {
	if c.IsMissing(row) {
		return 0, false
	}
	if c.Kind == models.KindText {
		s := strings.TrimSpace(c.Texts[row])
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return wholeNumber(f)
	}
	return wholeNumber(c.Floats[row])
}

func wholeNumber(f float64) (int, bool) {
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseDateCell(c models.Column, row int) time.Time {
	if c.IsMissing(row) {
		return time.Time{}
	}
	s := ""
	if c.Kind == models.KindText {
		s = strings.TrimSpace(c.Texts[row])
	} else {
		n, ok := wholeNumber(c.Floats[row])
		if !ok {
			return time.Time{}
		}
		s = strconv.Itoa(n)
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

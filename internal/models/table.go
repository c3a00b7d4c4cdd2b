package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DatetimeColumn is the name the combined timestamp is exposed under
const DatetimeColumn = "datetime"

// ColumnKind distinguishes numeric measurements from text values
type ColumnKind int

const (
	KindNumeric ColumnKind = iota
	KindText
)

// String returns the kind name used in API payloads
func (k ColumnKind) String() string {
	if k == KindText {
		return "text"
	}
	return "numeric"
}

// Column is one named variable of an observation table.
// Numeric columns mark missing entries with NaN; text columns with "".
type Column struct {
	Name     string
	Kind     ColumnKind
	Strategy Strategy
	Floats   []float64
	Texts    []string
}

// Len returns the number of entries in the column
func (c Column) Len() int {
	if c.Kind == KindText {
		return len(c.Texts)
	}
	return len(c.Floats)
}

// IsMissing reports whether entry i is missing
func (c Column) IsMissing(i int) bool {
	if c.Kind == KindText {
		return c.Texts[i] == ""
	}
	return math.IsNaN(c.Floats[i])
}

// MissingCount returns the number of missing entries
func (c Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Observed returns the non-missing values of a numeric column
func (c Column) Observed() []float64 {
	out := make([]float64, 0, len(c.Floats))
	for _, v := range c.Floats {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func (c Column) clone() Column {
	out := c
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Texts != nil {
		out.Texts = append([]string(nil), c.Texts...)
	}
	return out
}

// Table is a read-only observation table: one row per hourly reading.
// Accessors hand out copies, so a *Table can be shared between goroutines.
type Table struct {
	columns []Column
	index   map[string]int
	times   []time.Time // nil when the table carries no datetime
	rows    int
}

// NewTable validates and freezes columns (and optional timestamps) into a
// Table. Inputs are copied. Columns left at StrategyUnset are resolved with
// DefaultStrategies.
func NewTable(columns []Column, times []time.Time) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    -1,
	}

	defaults := DefaultStrategies()
	for _, c := range columns {
		if c.Name == "" {
			return nil, &ValidationError{Field: "column", Message: "column name must not be empty"}
		}
		if c.Name == DatetimeColumn && times != nil {
			return nil, &ValidationError{Field: "column", Value: c.Name, Message: "datetime is reserved for the timestamp axis"}
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, &ValidationError{Field: "column", Value: c.Name, Message: "duplicate column name"}
		}
		if c.Kind == KindText && c.Texts == nil {
			c.Texts = make([]string, len(c.Floats))
		}
		if c.Kind == KindNumeric && c.Floats == nil {
			c.Floats = make([]float64, 0)
		}
		if t.rows >= 0 && c.Len() != t.rows {
			return nil, &ValidationError{
				Field:   "column",
				Value:   c.Name,
				Message: fmt.Sprintf("column has %d rows, expected %d", c.Len(), t.rows),
			}
		}
		t.rows = c.Len()
		if c.Strategy == StrategyUnset {
			c.Strategy = defaults.Resolve(c.Name, c.Kind)
		}

		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c.clone())
	}

	if times != nil {
		if t.rows >= 0 && len(times) != t.rows {
			return nil, &ValidationError{
				Field:   DatetimeColumn,
				Message: fmt.Sprintf("datetime has %d rows, expected %d", len(times), t.rows),
			}
		}
		t.rows = len(times)
		t.times = append([]time.Time{}, times...)
	}

	if t.rows < 0 {
		t.rows = 0
	}
	return t, nil
}

// EmptyTable returns a table with no rows and no columns
func EmptyTable() *Table {
	t, _ := NewTable(nil, nil)
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Empty reports whether the table has no rows
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// ColumnNames returns the regular column names in table order
func (t *Table) ColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// NumericColumnNames returns the names of numeric columns in table order
func (t *Table) NumericColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if c.Kind == KindNumeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// Column returns a copy of the named column
func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i].clone(), true
}

// Columns returns copies of every regular column
func (t *Table) Columns() []Column {
	if t == nil {
		return nil
	}
	out := make([]Column, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.clone()
	}
	return out
}

// HasColumn reports whether name is a regular column or the datetime axis
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	if name == DatetimeColumn && t.times != nil {
		return true
	}
	_, ok := t.index[name]
	return ok
}

// HasTimes reports whether the table carries a datetime axis
func (t *Table) HasTimes() bool {
	return t != nil && t.times != nil
}

// Times returns a copy of the datetime axis; zero values are missing timestamps
func (t *Table) Times() []time.Time {
	if t == nil || t.times == nil {
		return nil
	}
	return append([]time.Time{}, t.times...)
}

// ValidTimes reports whether at least one timestamp is present
func (t *Table) ValidTimes() bool {
	if !t.HasTimes() {
		return false
	}
	for _, ts := range t.times {
		if !ts.IsZero() {
			return true
		}
	}
	return false
}

// MissingMask returns true for every missing entry of name. The datetime
// axis is addressable as DatetimeColumn.
func (t *Table) MissingMask(name string) ([]bool, bool) {
	if t == nil {
		return nil, false
	}
	if name == DatetimeColumn && t.times != nil {
		mask := make([]bool, len(t.times))
		for i, ts := range t.times {
			mask[i] = ts.IsZero()
		}
		return mask, true
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	c := t.columns[i]
	mask := make([]bool, c.Len())
	for r := range mask {
		mask[r] = c.IsMissing(r)
	}
	return mask, true
}

// MissingCounts returns the missing-entry count of every column, including
// the datetime axis when present
func (t *Table) MissingCounts() map[string]int {
	counts := make(map[string]int)
	if t == nil {
		return counts
	}
	for _, c := range t.columns {
		counts[c.Name] = c.MissingCount()
	}
	if t.times != nil {
		n := 0
		for _, ts := range t.times {
			if ts.IsZero() {
				n++
			}
		}
		counts[DatetimeColumn] = n
	}
	return counts
}

// Cell renders entry (row, column) as text; missing entries render as "".
func (t *Table) Cell(row int, name string) string {
	if name == DatetimeColumn && t.times != nil {
		if t.times[row].IsZero() {
			return ""
		}
		return t.times[row].Format("2006-01-02 15:04:05")
	}
	i, ok := t.index[name]
	if !ok {
		return ""
	}
	c := t.columns[i]
	if c.IsMissing(row) {
		return ""
	}
	if c.Kind == KindText {
		return c.Texts[row]
	}
	return strconv.FormatFloat(c.Floats[row], 'f', -1, 64)
}

// missingTokens are the raw cell spellings treated as absent values
var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"nan":  {},
	"null": {},
	"none": {},
	"n/a":  {},
}

// IsMissingToken reports whether a raw cell spells a missing value
func IsMissingToken(raw string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// InferColumn builds a column from raw text cells. It is numeric when every
// present cell parses as a float, text otherwise.
func InferColumn(name string, raw []string) Column {
	floats := make([]float64, len(raw))
	numeric := true
	for i, cell := range raw {
		if IsMissingToken(cell) {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			numeric = false
			break
		}
		floats[i] = v
	}

	if numeric {
		return Column{Name: name, Kind: KindNumeric, Floats: floats}
	}

	texts := make([]string, len(raw))
	for i, cell := range raw {
		if IsMissingToken(cell) {
			continue
		}
		texts[i] = strings.TrimSpace(cell)
	}
	return Column{Name: name, Kind: KindText, Texts: texts}
}

package models

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy is the imputation class a column belongs to
type Strategy int

const (
	StrategyUnset Strategy = iota
	// StrategyUnclassified covers numeric columns with no named class
	StrategyUnclassified
	// StrategyPollutant: particulates and gases, interpolated then closed with ffill/bfill
	StrategyPollutant
	// StrategyMeteorological: temperature, pressure, dew point; interpolated only
	StrategyMeteorological
	// StrategyZeroFloor: wind speed and precipitation, missing means zero
	StrategyZeroFloor
	// StrategyDirectional: wind direction, ffill then bfill
	StrategyDirectional
	// StrategyPassthrough: identifiers and text left untouched
	StrategyPassthrough
)

var strategyNames = map[Strategy]string{
	StrategyUnset:          "unset",
	StrategyUnclassified:   "unclassified",
	StrategyPollutant:      "pollutant",
	StrategyMeteorological: "meteorological",
	StrategyZeroFloor:      "zero_floor",
	StrategyDirectional:    "directional",
	StrategyPassthrough:    "passthrough",
}

// String returns the configuration tag of the strategy
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStrategy maps a configuration tag onto a Strategy
func ParseStrategy(tag string) (Strategy, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for s, name := range strategyNames {
		if s != StrategyUnset && name == tag {
			return s, nil
		}
	}
	return StrategyUnset, &ValidationError{Field: "strategy", Value: tag, Message: "unknown imputation strategy"}
}

// StrategyMap is a total mapping from canonical column name to strategy.
// Names absent from the map resolve by kind.
type StrategyMap map[string]Strategy

// DefaultStrategies returns the built-in mapping for the PRSA station files
func DefaultStrategies() StrategyMap {
	return StrategyMap{
		"pm2_5": StrategyPollutant,
		"pm10":  StrategyPollutant,
		"so2":   StrategyPollutant,
		"no2":   StrategyPollutant,
		"co":    StrategyPollutant,
		"o3":    StrategyPollutant,

		"temp": StrategyMeteorological,
		"pres": StrategyMeteorological,
		"dewp": StrategyMeteorological,

		"wspm": StrategyZeroFloor,
		"rain": StrategyZeroFloor,

		"wd": StrategyDirectional,

		"station": StrategyPassthrough,
	}
}

// Resolve returns the strategy for a column. Unmapped numeric columns are
// unclassified; unmapped text columns pass through.
func (m StrategyMap) Resolve(name string, kind ColumnKind) Strategy {
	if s, ok := m[name]; ok && s != StrategyUnset {
		return s
	}
	if kind == KindText {
		return StrategyPassthrough
	}
	return StrategyUnclassified
}

// With returns a copy of m with overrides applied
func (m StrategyMap) With(overrides map[string]Strategy) StrategyMap {
	out := make(StrategyMap, len(m)+len(overrides))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Names returns the mapped column names in sorted order
func (m StrategyMap) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParseStrategyOverrides converts configuration tags into a strategy map
func ParseStrategyOverrides(tags map[string]string) (map[string]Strategy, error) {
	out := make(map[string]Strategy, len(tags))
	for column, tag := range tags {
		s, err := ParseStrategy(tag)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		out[strings.ToLower(strings.TrimSpace(column))] = s
	}
	return out, nil
}

// ApplyStrategies returns a copy of t whose columns are re-resolved against m
func ApplyStrategies(t *Table, m StrategyMap) *Table {
	if t == nil {
		return EmptyTable()
	}
	cols := t.Columns()
	for i := range cols {
		cols[i].Strategy = m.Resolve(cols[i].Name, cols[i].Kind)
	}
	out, err := NewTable(cols, t.Times())
	if err != nil {
		// cols came from a valid table, so the shape cannot be wrong
		return t
	}
	return out
}

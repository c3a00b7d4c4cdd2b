package pipeline

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/interp"

	"airquality-eda/internal/models"
)

// Imputation paths
const (
	PathTime     = "time"
	PathFallback = "fallback"
	PathNone     = "none"
)

// ImputeReport summarizes one imputation pass
type ImputeReport struct {
	Path string
	// Filled counts the cells filled per column
	Filled map[string]int
	// Unfilled lists columns that still have missing values afterwards
	Unfilled []string
}

// Impute returns a completed copy of t. With a usable datetime axis rows are
// sorted by time (rows without a timestamp last) and filled per strategy;
// otherwise the non-temporal fallback is used. t is not modified.
func Impute(t *models.Table) (*models.Table, ImputeReport) {
	report := ImputeReport{Path: PathNone, Filled: map[string]int{}}
	if t.Empty() {
		return t, report
	}

	cols := t.Columns()
	times := t.Times()

	if t.ValidTimes() {
		report.Path = PathTime
		order := chronologicalOrder(times)
		times = permuteTimes(times, order)
		for i := range cols {
			cols[i] = permuteColumn(cols[i], order)
			before := cols[i].MissingCount()
			imputeByTime(&cols[i], times)
			report.observe(cols[i], before)
		}
	} else {
		report.Path = PathFallback
		for i := range cols {
			before := cols[i].MissingCount()
			imputeFallback(&cols[i])
			report.observe(cols[i], before)
		}
	}

	out, err := models.NewTable(cols, times)
	if err != nil {
		return t, ImputeReport{Path: PathNone, Filled: map[string]int{}}
	}
	return out, report
}

func (r *ImputeReport) observe(c models.Column, before int) {
	after := c.MissingCount()
	if before > after {
		r.Filled[c.Name] = before - after
	}
	if after > 0 {
		r.Unfilled = append(r.Unfilled, c.Name)
	}
}

func imputeByTime(c *models.Column, times []time.Time) {
	switch c.Strategy {
	case models.StrategyPollutant, models.StrategyUnclassified:
		if c.Kind != models.KindNumeric {
			return
		}
		interpolateTime(c.Floats, times)
		forwardFill(c)
		backwardFill(c)
	case models.StrategyMeteorological:
		if c.Kind != models.KindNumeric {
			return
		}
		interpolateTime(c.Floats, times)
	case models.StrategyZeroFloor:
		zeroFill(c)
	case models.StrategyDirectional:
		forwardFill(c)
		backwardFill(c)
	}
}

func imputeFallback(c *models.Column) {
	switch c.Strategy {
	case models.StrategyZeroFloor:
		zeroFill(c)
	case models.StrategyDirectional:
		forwardFill(c)
		backwardFill(c)
	case models.StrategyPollutant, models.StrategyMeteorological, models.StrategyUnclassified:
		if c.Kind != models.KindNumeric {
			return
		}
		median := Median(c.Observed())
		if math.IsNaN(median) {
			return
		}
		for i, v := range c.Floats {
			if math.IsNaN(v) {
				c.Floats[i] = median
			}
		}
	}
}

// interpolateTime fills interior gaps linearly in elapsed time between the
// nearest observed neighbours. Rows without a timestamp are neither anchors
// nor filled; leading and trailing gaps are left for the closure fills.
func interpolateTime(values []float64, times []time.Time) {
	var origin time.Time
	xs := make([]float64, 0, len(values))
	ys := make([]float64, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || times[i].IsZero() {
			continue
		}
		if len(xs) == 0 {
			origin = times[i]
		}
		x := times[i].Sub(origin).Seconds()
		if len(xs) > 0 && x <= xs[len(xs)-1] {
			// duplicate timestamp: the later reading wins
			ys[len(ys)-1] = v
			continue
		}
		xs = append(xs, x)
		ys = append(ys, v)
	}
	if len(xs) < 2 {
		return
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return
	}

	first, last := xs[0], xs[len(xs)-1]
	for i, v := range values {
		if !math.IsNaN(v) || times[i].IsZero() {
			continue
		}
		x := times[i].Sub(origin).Seconds()
		if x <= first || x >= last {
			continue
		}
		values[i] = pl.Predict(x)
	}
}

func zeroFill(c *models.Column) {
	if c.Kind != models.KindNumeric {
		return
	}
	for i, v := range c.Floats {
		if math.IsNaN(v) {
			c.Floats[i] = 0
		}
	}
}

func forwardFill(c *models.Column) {
	if c.Kind == models.KindText {
		last := ""
		for i, v := range c.Texts {
			if v == "" {
				c.Texts[i] = last
			} else {
				last = v
			}
		}
		return
	}
	last := math.NaN()
	for i, v := range c.Floats {
		if math.IsNaN(v) {
			c.Floats[i] = last
		} else {
			last = v
		}
	}
}

func backwardFill(c *models.Column) {
	if c.Kind == models.KindText {
		next := ""
		for i := len(c.Texts) - 1; i >= 0; i-- {
			if c.Texts[i] == "" {
				c.Texts[i] = next
			} else {
				next = c.Texts[i]
			}
		}
		return
	}
	next := math.NaN()
	for i := len(c.Floats) - 1; i >= 0; i-- {
		if math.IsNaN(c.Floats[i]) {
			c.Floats[i] = next
		} else {
			next = c.Floats[i]
		}
	}
}

// chronologicalOrder returns a stable ascending permutation by timestamp
// with missing timestamps last
func chronologicalOrder(times []time.Time) []int {
	order := make([]int, len(times))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := times[order[a]], times[order[b]]
		switch {
		case ta.IsZero():
			return false
		case tb.IsZero():
			return true
		}
		return ta.Before(tb)
	})
	return order
}

func permuteTimes(times []time.Time, order []int) []time.Time {
	out := make([]time.Time, len(order))
	for i, j := range order {
		out[i] = times[j]
	}
	return out
}

func permuteColumn(c models.Column, order []int) models.Column {
	if c.Kind == models.KindText {
		texts := make([]string, len(order))
		for i, j := range order {
			texts[i] = c.Texts[j]
		}
		c.Texts = texts
		return c
	}
	floats := make([]float64, len(order))
	for i, j := range order {
		floats[i] = c.Floats[j]
	}
	c.Floats = floats
	return c
}

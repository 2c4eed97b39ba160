package forecast

import (
	"fmt"
	"math"
	"sort"
)

// maxSpanMonths bounds the normalized series length so a stray far-future
// period cannot allocate an unbounded vector
const maxSpanMonths = 12 * 200

// NormalizedSeries is a gap-free monthly vector starting at Start
type NormalizedSeries struct {
	Start   Period
	Values  []float64
	Imputed []bool
}

// Len returns the number of months covered
func (s *NormalizedSeries) Len() int {
	return len(s.Values)
}

// End returns the last month covered
func (s *NormalizedSeries) End() Period {
	return s.Start.Add(len(s.Values) - 1)
}

// Periods returns the calendar months spanned, in order
func (s *NormalizedSeries) Periods() []Period {
	periods := make([]Period, len(s.Values))
	for i := range periods {
		periods[i] = s.Start.Add(i)
	}
	return periods
}

// ImputedCount returns how many months were filled rather than observed
func (s *NormalizedSeries) ImputedCount() int {
	count := 0
	for _, imp := range s.Imputed {
		if imp {
			count++
		}
	}
	return count
}

// Normalize sorts the points and expands them into a fixed monthly cadence.
// Months with no observation carry the last observed value forward.
func Normalize(points []TimeSeriesPoint) (*NormalizedSeries, error) {
	if len(points) == 0 {
		return nil, &DataError{Reason: "series is empty; at least 2 distinct months are required"}
	}

	sorted := make([]TimeSeriesPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Period.Index() < sorted[j].Period.Index()
	})

	for i, p := range sorted {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, &DataError{Reason: fmt.Sprintf("value for %s is not a finite number", p.Period)}
		}
		if p.Value < 0 {
			return nil, &DataError{Reason: fmt.Sprintf("value for %s is negative (%v)", p.Period, p.Value)}
		}
		if i > 0 && sorted[i-1].Period == p.Period {
			return nil, &DataError{Reason: fmt.Sprintf("duplicate observation for %s", p.Period)}
		}
	}

	if len(sorted) < 2 {
		return nil, &DataError{Reason: fmt.Sprintf("found %d distinct month, at least 2 are required", len(sorted))}
	}

	start := sorted[0].Period
	span := sorted[len(sorted)-1].Period.Index() - start.Index() + 1
	if span > maxSpanMonths {
		return nil, &DataError{Reason: fmt.Sprintf("series spans %d months, limit is %d", span, maxSpanMonths)}
	}

	values := make([]float64, span)
	observed := make([]bool, span)
	for _, p := range sorted {
		idx := p.Period.Index() - start.Index()
		values[idx] = p.Value
		observed[idx] = true
	}

	imputed := make([]bool, span)
	carry, haveCarry := 0.0, false
	for i := range values {
		if observed[i] {
			carry, haveCarry = values[i], true
			continue
		}
		imputed[i] = true
		if haveCarry {
			values[i] = carry
		} else {
			// Leading gap: carry the first observation backward
			values[i] = sorted[0].Value
		}
	}

	return &NormalizedSeries{
		Start:   start,
		Values:  values,
		Imputed: imputed,
	}, nil
}

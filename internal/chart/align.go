// Package chart turns a published series view into the columnar layout a
// plotting widget expects: one shared ascending time axis and one value row
// per series, with Missing wherever a series has no sample at that time.
package chart

import (
	"math"
	"slices"

	"github.com/large-farva/livechart/internal/series"
)

// Missing marks an axis position where a series has no sample.
var Missing = math.NaN()

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Aligned is the rendering boundary: Values[i][j] is series Names[i] at Axis[j].
type Aligned struct {
	Axis   []int64
	Names  []string
	Values [][]float64
}

// Align builds the union of all timestamps in v and places every series on it.
// If a series repeats a timestamp the later sample wins.
func Align(v series.View) Aligned {
	n := len(v)
	rows := make(map[int64][]float64)
	for i, s := range v {
		for _, p := range s.Points {
			row, ok := rows[p.T]
			if !ok {
				row = make([]float64, n)
				for k := range row {
					row[k] = Missing
				}
				rows[p.T] = row
			}
			row[i] = p.V
		}
	}

	axis := make([]int64, 0, len(rows))
	for ts := range rows {
		axis = append(axis, ts)
	}
	slices.Sort(axis)

	a := Aligned{
		Axis:   axis,
		Names:  make([]string, n),
		Values: make([][]float64, n),
	}
	for i, s := range v {
		a.Names[i] = s.Name
		a.Values[i] = make([]float64, len(axis))
	}
	for j, ts := range axis {
		row := rows[ts]
		for i := range row {
			a.Values[i][j] = row[i]
		}
	}
	return a
}

// Len returns the number of axis positions.
func (a Aligned) Len() int { return len(a.Axis) }

// ForwardFilled returns copies of the value rows with every gap replaced by
// the previous present value. Leading gaps take the first present value; a
// row with no values at all becomes zeros.
func (a Aligned) ForwardFilled() [][]float64 {
	out := make([][]float64, len(a.Values))
	for i, row := range a.Values {
		filled := make([]float64, len(row))
		first := 0.0
		for _, v := range row {
			if !IsMissing(v) {
				first = v
				break
			}
		}
		prev := first
		for j, v := range row {
			if IsMissing(v) {
				filled[j] = prev
				continue
			}
			filled[j] = v
			prev = v
		}
		out[i] = filled
	}
	return out
}

// Bounds returns the smallest and largest present values. ok is false when
// there are none.
func (a Aligned) Bounds() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range a.Values {
		for _, v := range row {
			if IsMissing(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// Latest returns the last present value of series i.
func (a Aligned) Latest(i int) (float64, bool) {
	if i < 0 || i >= len(a.Values) {
		return 0, false
	}
	row := a.Values[i]
	for j := len(row) - 1; j >= 0; j-- {
		if !IsMissing(row[j]) {
			return row[j], true
		}
	}
	return 0, false
}

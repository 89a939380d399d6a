// Package timeseries holds daily value series attached to network nodes and
// the gap-filling methods that operate on them. Missing values are NaN.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrLengthMismatch is returned when dates and values differ in length.
	ErrLengthMismatch = errors.New("dates and values differ in length")
	// ErrColumnMissing is returned when a CSV lacks a requested column.
	ErrColumnMissing = errors.New("column missing")
)

// Series is a timeseries of values indexed by date.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// New creates a series, sorting it by date.
func New(dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("%w: %d dates, %d values", ErrLengthMismatch, len(dates), len(values))
	}
	s := &Series{Dates: dates, Values: values}
	s.sortByDate()
	return s, nil
}

func (s *Series) sortByDate() {
	if sort.SliceIsSorted(s.Dates, func(i, j int) bool { return s.Dates[i].Before(s.Dates[j]) }) {
		return
	}
	idx := make([]int, len(s.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Dates[idx[a]].Before(s.Dates[idx[b]]) })

	dates := make([]time.Time, len(idx))
	values := make([]float64, len(idx))
	for i, j := range idx {
		dates[i] = s.Dates[j]
		values[i] = s.Values[j]
	}
	s.Dates, s.Values = dates, values
}

// Len returns the number of observations, missing ones included.
func (s *Series) Len() int {
	return len(s.Values)
}

// IsMissing reports whether the value at i is missing.
func (s *Series) IsMissing(i int) bool {
	return math.IsNaN(s.Values[i])
}

// Missing returns the number of missing values.
func (s *Series) Missing() int {
	n := 0
	for i := range s.Values {
		if s.IsMissing(i) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	return &Series{
		Dates:  append([]time.Time(nil), s.Dates...),
		Values: append([]float64(nil), s.Values...),
	}
}

// Filter returns the observations within r.
func (s *Series) Filter(r DateRange) *Series {
	out := &Series{}
	for i, d := range s.Dates {
		if r.Contains(d) {
			out.Dates = append(out.Dates, d)
			out.Values = append(out.Values, s.Values[i])
		}
	}
	return out
}

// Lookup returns the value observed on date d.
func (s *Series) Lookup(d time.Time) (float64, bool) {
	i := sort.Search(len(s.Dates), func(i int) bool { return !s.Dates[i].Before(d) })
	if i < len(s.Dates) && s.Dates[i].Equal(d) {
		return s.Values[i], true
	}
	return math.NaN(), false
}

// NABlock is a run of consecutive observations that are all missing or all present.
type NABlock struct {
	Start time.Time
	Count int
	IsNA  bool
}

// NABlocks splits the series into runs of equal missingness.
func (s *Series) NABlocks() []NABlock {
	var blocks []NABlock
	for i, d := range s.Dates {
		na := s.IsMissing(i)
		if len(blocks) > 0 && blocks[len(blocks)-1].IsNA == na {
			blocks[len(blocks)-1].Count++
			continue
		}
		blocks = append(blocks, NABlock{Start: d, Count: 1, IsNA: na})
	}
	return blocks
}

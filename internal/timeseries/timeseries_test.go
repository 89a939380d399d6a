package timeseries

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadi-hydro/nadi/internal/network"
)

var nan = math.NaN()

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// daily builds a series of consecutive days starting at start.
func daily(t *testing.T, start string, values ...float64) *Series {
	t.Helper()
	dates := make([]time.Time, len(values))
	for i := range values {
		dates[i] = day(start).AddDate(0, 0, i)
	}
	s, err := New(dates, append([]float64(nil), values...))
	require.NoError(t, err)
	return s
}

// assertValues compares values treating NaN as equal to NaN.
func assertValues(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "value %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "value %d", i)
	}
}

func TestReadCSV(t *testing.T) {
	input := "site,date,flow\nA,2020-01-02,2.5\nA,2020-01-01,1\nA,2020-01-03,NA\nA,2020-01-04,\nA,2020-01-05,oops\n"

	s, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	require.Equal(t, 5, s.Len())
	assert.Equal(t, day("2020-01-01"), s.Dates[0], "rows are sorted by date")
	assertValues(t, []float64{1, 2.5, nan, nan, nan}, s.Values)
	assert.Equal(t, 3, s.Missing())
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    CSVOptions
		wantErr error
		wantMsg string
	}{
		{"empty", "", CSVOptions{}, nil, "missing header"},
		{"no value column", "date,q\n2020-01-01,1\n", CSVOptions{}, ErrColumnMissing, `"flow"`},
		{"no date column", "day,flow\n", CSVOptions{}, ErrColumnMissing, `"date"`},
		{"bad date", "date,flow\n01/02/2020,1\n", CSVOptions{}, nil, "line 2: invalid date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestReadCSV_CustomColumns(t *testing.T) {
	input := "when,discharge\n01/02/2020,3\n"
	s, err := ReadCSV(strings.NewReader(input), CSVOptions{DateColumn: "when", ValueColumn: "discharge", DateFormat: "01/02/2006"})
	require.NoError(t, err)

	assert.Equal(t, day("2020-01-02"), s.Dates[0])
	assert.Equal(t, 3.0, s.Values[0])
}

func TestWriteCSV(t *testing.T) {
	s := daily(t, "2021-03-01", 1.5, nan, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, s, CSVOptions{}))
	assert.Equal(t, "date,flow\n2021-03-01,1.5\n2021-03-02,\n2021-03-03,3\n", buf.String())
}

func TestNew_LengthMismatch(t *testing.T) {
	_, err := New([]time.Time{day("2020-01-01")}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		input   string
		start   string
		end     string
		wantErr bool
	}{
		{"", "", "", false},
		{"2020-01-01,2020-12-31", "2020-01-01", "2020-12-31", false},
		{"2020-01-01,", "2020-01-01", "", false},
		{",2020-12-31", "", "2020-12-31", false},
		{"2020-06-01", "2020-06-01", "", false},
		{"2020-13-01,", "", "", true},
		{"2021-01-01,2020-01-01", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := ParseDateRange(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.start != "" {
				assert.Equal(t, day(tt.start), r.Start)
			} else {
				assert.True(t, r.Start.IsZero())
			}
			if tt.end != "" {
				assert.Equal(t, day(tt.end), r.End)
			} else {
				assert.True(t, r.End.IsZero())
			}
		})
	}
}

func TestSeries_Filter(t *testing.T) {
	s := daily(t, "2020-01-01", 1, 2, 3, 4, 5)
	r, err := ParseDateRange("2020-01-02,2020-01-04")
	require.NoError(t, err)

	f := s.Filter(r)
	assertValues(t, []float64{2, 3, 4}, f.Values)
	assert.Equal(t, "2020-01-02,2020-01-04", r.String())
}

func TestSeries_NABlocks(t *testing.T) {
	s := daily(t, "2020-01-01", 1, nan, nan, 4, 5, nan)

	blocks := s.NABlocks()
	assert.Equal(t, []NABlock{
		{Start: day("2020-01-01"), Count: 1, IsNA: false},
		{Start: day("2020-01-02"), Count: 2, IsNA: true},
		{Start: day("2020-01-04"), Count: 2, IsNA: false},
		{Start: day("2020-01-06"), Count: 1, IsNA: true},
	}, blocks)
}

func TestFills(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		fill   func(s *Series) int
		want   []float64
		filled int
	}{
		{
			name:   "forward unlimited",
			values: []float64{nan, 1, nan, nan, 4, nan},
			fill:   func(s *Series) int { return s.FillForward(0) },
			want:   []float64{nan, 1, 1, 1, 4, 4},
			filled: 3,
		},
		{
			name:   "forward limited",
			values: []float64{1, nan, nan, nan, 5},
			fill:   func(s *Series) int { return s.FillForward(2) },
			want:   []float64{1, 1, 1, nan, 5},
			filled: 2,
		},
		{
			name:   "backward limited",
			values: []float64{nan, nan, nan, 3, nan},
			fill:   func(s *Series) int { return s.FillBackward(1) },
			want:   []float64{nan, nan, 3, 3, nan},
			filled: 1,
		},
		{
			name:   "value",
			values: []float64{nan, 2, nan},
			fill:   func(s *Series) int { return s.FillValue(0) },
			want:   []float64{0, 2, 0},
			filled: 2,
		},
		{
			name:   "linear",
			values: []float64{nan, 0, nan, nan, 3, nan},
			fill:   func(s *Series) int { return s.FillLinear(0) },
			want:   []float64{nan, 0, 1, 2, 3, nan},
			filled: 2,
		},
		{
			name:   "linear limited",
			values: []float64{0, nan, nan, 3, nan, 5},
			fill:   func(s *Series) int { return s.FillLinear(1) },
			want:   []float64{0, nan, nan, 3, 4, 5},
			filled: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := daily(t, "2020-01-01", tt.values...)
			assert.Equal(t, tt.filled, tt.fill(s))
			assertValues(t, tt.want, s.Values)
		})
	}
}

func TestFillLinear_UsesDates(t *testing.T) {
	s, err := New(
		[]time.Time{day("2020-01-01"), day("2020-01-02"), day("2020-01-05")},
		[]float64{0, nan, 4},
	)
	require.NoError(t, err)

	s.FillLinear(0)
	assert.InDelta(t, 1.0, s.Values[1], 1e-9)
}

func TestFillSeasonalAndMonthly(t *testing.T) {
	s, err := New(
		[]time.Time{day("2019-01-10"), day("2020-01-10"), day("2021-01-10"), day("2021-01-11"), day("2021-02-01")},
		[]float64{2, 4, nan, 9, nan},
	)
	require.NoError(t, err)

	seasonal := s.Clone()
	assert.Equal(t, 1, seasonal.FillSeasonal())
	assertValues(t, []float64{2, 4, 3, 9, nan}, seasonal.Values)

	monthly := s.Clone()
	assert.Equal(t, 1, monthly.FillMonthly())
	assertValues(t, []float64{2, 4, 5, 9, nan}, monthly.Values)
}

func TestCast(t *testing.T) {
	donor := daily(t, "2020-01-01", 10, 20, nan)

	s := daily(t, "2020-01-02", nan, 1, nan)
	assert.Equal(t, 1, s.CastNAFrom(donor, 0.5))
	assertValues(t, []float64{10, 1, nan}, s.Values)

	s.CastFrom(donor)
	assertValues(t, []float64{20, nan, nan}, s.Values)
}

func TestSeries_Fill(t *testing.T) {
	s := daily(t, "2020-01-01", 1, nan, nan)

	n, err := s.Fill(MethodValue, "7.5")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assertValues(t, []float64{1, 7.5, 7.5}, s.Values)

	_, err = s.Fill(MethodForward, "-1")
	assert.Error(t, err)
	_, err = s.Fill(MethodValue, "abc")
	assert.Error(t, err)
}

func TestParseMethod(t *testing.T) {
	for input, want := range map[string]Method{
		"nff": MethodForward, "bfill": MethodBackward, "Value": MethodValue,
		"lin": MethodLinear, "sd": MethodSeasonal, "sm": MethodMonthly,
	} {
		got, err := ParseMethod(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseMethod("spline")
	assert.Error(t, err)
}

func TestFillFromNeighbours(t *testing.T) {
	g, err := network.ParseConnections(strings.NewReader("a -> c\nb -> c\nc -> e\nd -> e\n"))
	require.NoError(t, err)
	net, err := network.New(g, nil)
	require.NoError(t, err)
	for name, area := range map[string]float64{"a": 10, "b": 20, "c": 40, "d": 5, "e": 50} {
		require.NoError(t, net.SetAttr(name, "area", network.FloatAttr(area)))
	}

	series := map[string]*Series{
		"a": daily(t, "2020-01-01", nan, nan, nan),
		"c": daily(t, "2020-01-01", 4, nan, nan),
		"e": daily(t, "2020-01-01", 5, 10, nan),
		"b": daily(t, "2020-01-01", 2, 2, 2),
	}

	filled, err := FillFromNeighbours(net, series, "area")
	require.NoError(t, err)

	// c takes day 2 from e (nearest, downstream) and day 3 from b (upstream)
	assertValues(t, []float64{4, 8, 4}, series["c"].Values)
	// a is filled only from observed data: c (distance 1) then e (distance 2)
	assertValues(t, []float64{1, 2, nan}, series["a"].Values)
	// e has no direct neighbour with day 3 and takes it from b two edges up
	assertValues(t, []float64{5, 10, 5}, series["e"].Values)

	assert.Equal(t, map[string]int{"e": 1, "c": 2, "a": 2}, filled)
}

func TestFillFromNeighbours_MissingProp(t *testing.T) {
	g, err := network.ParseConnections(strings.NewReader("a -> b\n"))
	require.NoError(t, err)
	net, err := network.New(g, nil)
	require.NoError(t, err)

	series := map[string]*Series{
		"a": daily(t, "2020-01-01", nan),
		"b": daily(t, "2020-01-01", 1),
	}
	_, err = FillFromNeighbours(net, series, "area")
	assert.ErrorIs(t, err, network.ErrAttrMissing)

	filled, err := FillFromNeighbours(net, series, "")
	require.NoError(t, err)
	assert.Equal(t, 1, filled["a"])
	assertValues(t, []float64{1}, series["a"].Values)
}

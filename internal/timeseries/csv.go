package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// CSVOptions names the columns and date format of a timeseries CSV.
type CSVOptions struct {
	DateColumn  string
	ValueColumn string
	DateFormat  string // Go time layout
}

// DefaultCSVOptions returns the "date" and "flow" columns with ISO dates.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{DateColumn: "date", ValueColumn: "flow", DateFormat: DateLayout}
}

func (o CSVOptions) withDefaults() CSVOptions {
	d := DefaultCSVOptions()
	if o.DateColumn == "" {
		o.DateColumn = d.DateColumn
	}
	if o.ValueColumn == "" {
		o.ValueColumn = d.ValueColumn
	}
	if o.DateFormat == "" {
		o.DateFormat = d.DateFormat
	}
	return o
}

// ReadCSV reads a series from CSV with a header row. Empty, NA, NaN and
// unparsable values are missing; an unparsable date is an error.
func ReadCSV(r io.Reader, opts CSVOptions) (*Series, error) {
	opts = opts.withDefaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv: missing header")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	dateIdx, valueIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case opts.DateColumn:
			dateIdx = i
		case opts.ValueColumn:
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, opts.DateColumn)
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, opts.ValueColumn)
	}

	var dates []time.Time
	var values []float64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if dateIdx >= len(rec) {
			return nil, fmt.Errorf("line %d: missing date field", line)
		}
		d, err := time.Parse(opts.DateFormat, strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, rec[dateIdx], err)
		}
		v := math.NaN()
		if valueIdx < len(rec) {
			v = parseValue(rec[valueIdx])
		}
		dates = append(dates, d)
		values = append(values, v)
	}
	return New(dates, values)
}

func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatValue formats a value for CSV output; missing values are empty.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the series with a header row.
func WriteCSV(w io.Writer, s *Series, opts CSVOptions) error {
	opts = opts.withDefaults()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{opts.DateColumn, opts.ValueColumn}); err != nil {
		return err
	}
	for i, d := range s.Dates {
		if err := cw.Write([]string{d.Format(opts.DateFormat), FormatValue(s.Values[i])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

package tsdb

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"github.com/nadi-hydro/nadi/internal/timeseries"
)

// Frame is a small query result.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Echo returns every observation ordered by date.
func (d *DB) Echo(ctx context.Context) (*Frame, error) {
	return d.query(ctx, fmt.Sprintf(
		"SELECT date, value AS %s FROM %s ORDER BY date",
		quoteIdent(d.valueName), table))
}

// MonthlySeasonality returns the mean value per calendar month.
func (d *DB) MonthlySeasonality(ctx context.Context) (*Frame, error) {
	return d.query(ctx, fmt.Sprintf(
		"SELECT month(date) AS month, avg(value) AS %s FROM %s GROUP BY 1 ORDER BY 1",
		quoteIdent(d.valueName), table))
}

// DailySeasonality returns the mean value per day of the year.
func (d *DB) DailySeasonality(ctx context.Context) (*Frame, error) {
	return d.query(ctx, fmt.Sprintf(
		"SELECT dayofyear(date) AS day, avg(value) AS %s FROM %s GROUP BY 1 ORDER BY 1",
		quoteIdent(d.valueName), table))
}

// AnnualMean returns the mean and number of observed values per year.
func (d *DB) AnnualMean(ctx context.Context) (*Frame, error) {
	return d.query(ctx, fmt.Sprintf(
		"SELECT year(date) AS year, avg(value) AS %s, count(value) AS count FROM %s GROUP BY 1 ORDER BY 1",
		quoteIdent(d.valueName), table))
}

// MonthlyMean returns the mean and number of observed values per year and month.
func (d *DB) MonthlyMean(ctx context.Context) (*Frame, error) {
	return d.query(ctx, fmt.Sprintf(
		"SELECT year(date) AS year, month(date) AS month, avg(value) AS %s, count(value) AS count FROM %s GROUP BY 1, 2 ORDER BY 1, 2",
		quoteIdent(d.valueName), table))
}

// NABlocks returns the runs of missing and present values.
func (d *DB) NABlocks(ctx context.Context) (*Frame, error) {
	s, err := d.Series(ctx)
	if err != nil {
		return nil, err
	}
	return BlocksFrame(s.NABlocks()), nil
}

// BlocksFrame converts NA blocks to a frame.
func BlocksFrame(blocks []timeseries.NABlock) *Frame {
	f := &Frame{Columns: []string{"start_date", "count", "isna"}}
	for _, b := range blocks {
		f.Rows = append(f.Rows, []any{b.Start, int64(b.Count), b.IsNA})
	}
	return f
}

// SeriesFrame converts a series to a date/value frame.
func SeriesFrame(s *timeseries.Series, valueName string) *Frame {
	f := &Frame{Columns: []string{"date", valueName}}
	for i, date := range s.Dates {
		var v any
		if !s.IsMissing(i) {
			v = s.Values[i]
		}
		f.Rows = append(f.Rows, []any{date, v})
	}
	return f
}

func (d *DB) query(ctx context.Context, query string) (*Frame, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFrame(rows)
}

func scanFrame(rows *sql.Rows) (*Frame, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	f := &Frame{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		f.Rows = append(f.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Column returns the index of the named column.
func (f *Frame) Column(name string) (int, error) {
	for i, c := range f.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not found (have %s)", name, strings.Join(f.Columns, ", "))
}

// FormatCell formats a frame value for text output; NULL is empty.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.Format(timeseries.DateLayout)
	case float64:
		return timeseries.FormatValue(val)
	case float32:
		return timeseries.FormatValue(float64(val))
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val)
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int8:
		return float64(val), true
	default:
		return 0, false
	}
}

// WriteCSV writes the frame as CSV with a header row.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return err
	}
	for _, row := range f.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = FormatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes the frame as a table.
func (f *Frame) WriteTable(w io.Writer) error {
	if len(f.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)

	header := make(prettytable.Row, len(f.Columns))
	for i, col := range f.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range f.Rows {
		r := make(prettytable.Row, len(row))
		for i, v := range row {
			r[i] = FormatCell(v)
		}
		t.AppendRow(r)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(f.Rows))
	return nil
}

// WriteJSON writes the frame as an array of objects keyed by column.
func (f *Frame) WriteJSON(w io.Writer) error {
	records := make([]map[string]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		rec := make(map[string]any, len(row))
		for i, v := range row {
			switch val := v.(type) {
			case time.Time:
				rec[f.Columns[i]] = val.Format(timeseries.DateLayout)
			case float64:
				if math.IsNaN(val) || math.IsInf(val, 0) {
					rec[f.Columns[i]] = nil
				} else {
					rec[f.Columns[i]] = val
				}
			default:
				rec[f.Columns[i]] = val
			}
		}
		records = append(records, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WritePlot writes the other columns as CSV followed by a bar of '#'
// proportional to the min-max normalized value of column col.
func (f *Frame) WritePlot(w io.Writer, col string) error {
	ci, err := f.Column(col)
	if err != nil {
		return err
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range f.Rows {
		if v, ok := toFloat(row[ci]); ok {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}

	header := make([]string, 0, len(f.Columns)-1)
	for i, c := range f.Columns {
		if i != ci {
			header = append(header, c)
		}
	}
	_, _ = fmt.Fprintln(w, strings.Join(header, ","))

	for _, row := range f.Rows {
		cells := make([]string, 0, len(row)-1)
		for i, v := range row {
			if i != ci {
				cells = append(cells, FormatCell(v))
			}
		}
		bar := 0
		if v, ok := toFloat(row[ci]); ok && hi > lo {
			bar = int((v - lo) / (hi - lo) * 100)
		}
		if _, err := fmt.Fprintf(w, "%s\t %s\n", strings.Join(cells, ","), strings.Repeat("#", bar)); err != nil {
			return err
		}
	}
	return nil
}

// Package tsdb runs timeseries aggregations on an embedded DuckDB database.
package tsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/nadi-hydro/nadi/internal/timeseries"
)

const table = "series"

// DB is a DuckDB database holding one timeseries table with date and value columns.
type DB struct {
	db        *sql.DB
	logger    *slog.Logger
	valueName string // column name used for the value in query results
}

// Open opens a DuckDB database. An empty path or ":memory:" opens an in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	d := &DB{db: db, logger: logger, valueName: "value"}
	if err := d.exec(ctx, fmt.Sprintf("CREATE OR REPLACE TABLE %s (date DATE, value DOUBLE)", table)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DB) exec(ctx context.Context, query string, args ...any) error {
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// LoadCSV replaces the table with the date and value columns of a CSV file.
// Values that are empty or not numeric become NULL. A row whose date does
// not match opts.DateFormat fails the load, as in timeseries.ReadCSV.
func (d *DB) LoadCSV(ctx context.Context, path string, opts timeseries.CSVOptions) error {
	if opts.DateColumn == "" || opts.ValueColumn == "" || opts.DateFormat == "" {
		def := timeseries.DefaultCSVOptions()
		opts.DateColumn = cmp(opts.DateColumn, def.DateColumn)
		opts.ValueColumn = cmp(opts.ValueColumn, def.ValueColumn)
		opts.DateFormat = cmp(opts.DateFormat, def.DateFormat)
	}

	format, err := StrftimeLayout(opts.DateFormat)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	src := fmt.Sprintf("read_csv(%s, header=true, all_varchar=true)", quoteLiteral(absPath))
	if err := d.checkDates(ctx, src, opts.DateColumn, format); err != nil {
		return err
	}

	query := fmt.Sprintf(
		`CREATE OR REPLACE TABLE %s AS
		SELECT CAST(strptime(trim(%s), %s) AS DATE) AS date,
		       TRY_CAST(trim(%s) AS DOUBLE) AS value
		FROM %s
		ORDER BY date`,
		table,
		quoteIdent(opts.DateColumn), quoteLiteral(format),
		quoteIdent(opts.ValueColumn),
		src,
	)
	if err := d.exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}

	d.valueName = opts.ValueColumn

	n, err := d.Count(ctx)
	if err != nil {
		return err
	}
	d.logger.Debug("loaded timeseries csv", "path", absPath, "rows", n)
	return nil
}

// LoadSeries replaces the table with the observations of s.
func (d *DB) LoadSeries(ctx context.Context, s *timeseries.Series) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("failed to clear table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (date, value) VALUES (?, ?)", table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, date := range s.Dates {
		var v any
		if !s.IsMissing(i) {
			v = s.Values[i]
		}
		if _, err := stmt.ExecContext(ctx, date, v); err != nil {
			return fmt.Errorf("failed to insert %s: %w", date.Format(timeseries.DateLayout), err)
		}
	}
	return tx.Commit()
}

// SetValueName sets the name of the value column in query results.
func (d *DB) SetValueName(name string) {
	if name != "" {
		d.valueName = name
	}
}

// Filter removes the rows outside r.
func (d *DB) Filter(ctx context.Context, r timeseries.DateRange) error {
	if !r.Start.IsZero() {
		if err := d.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE date < ?", table), r.Start); err != nil {
			return err
		}
	}
	if !r.End.IsZero() {
		if err := d.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE date > ?", table), r.End); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of rows.
func (d *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Series exports the table as a timeseries.
func (d *DB) Series(ctx context.Context) (*timeseries.Series, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT date, value FROM %s ORDER BY date", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	s := &timeseries.Series{}
	for rows.Next() {
		var date time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&date, &value); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		s.Dates = append(s.Dates, date)
		if value.Valid {
			s.Values = append(s.Values, value.Float64)
		} else {
			s.Values = append(s.Values, math.NaN())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating series: %w", err)
	}
	return s, nil
}

// checkDates returns an error naming the first row of src whose date column
// does not parse with format. Line numbers count the header as line 1.
func (d *DB) checkDates(ctx context.Context, src, column, format string) error {
	query := fmt.Sprintf(
		`SELECT line, raw FROM (
			SELECT row_number() OVER () + 1 AS line, %s AS raw FROM %s
		) WHERE try_strptime(trim(raw), %s) IS NULL
		ORDER BY line LIMIT 1`,
		quoteIdent(column), src, quoteLiteral(format),
	)

	var (
		line int64
		raw  sql.NullString
	)
	err := d.db.QueryRowContext(ctx, query).Scan(&line, &raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return fmt.Errorf("line %d: invalid date %q", line, raw.String)
}

func cmp(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

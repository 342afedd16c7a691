// Package source reads the silver layer to discover which calendar months
// hold sales data. It is the read-only side of discovery; registry state
// decides what is still pending.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/retailops/goldpipe/internal/pipelinedb/queries"
	"github.com/retailops/goldpipe/internal/unit"
)

// ErrMonthWithoutYear is returned when Filters names a month but no year
var ErrMonthWithoutYear = errors.New("source: month filter requires a year filter")

// Filters narrows discovery. Zero values mean unfiltered. Filters naming
// months absent from the source simply match nothing; that is not an
// error.
type Filters struct {
	Year  int
	Month int
}

// Reader lists the distinct months present in the source fact data
type Reader interface {
	ListDistinctMonths(ctx context.Context, f Filters) ([]unit.Key, error)
}

// Querier is the single pool method the reader needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresReader discovers months from silver.fact_sales_daily joined to
// the date dimension.
type PostgresReader struct {
	db Querier
}

// NewPostgresReader creates a reader over db
func NewPostgresReader(db Querier) *PostgresReader {
	return &PostgresReader{db: db}
}

// ListDistinctMonths returns every (year, month) with at least one daily
// fact row, ascending.
func (r *PostgresReader) ListDistinctMonths(ctx context.Context, f Filters) ([]unit.Key, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case f.Year != 0 && f.Month != 0:
		rows, err = r.db.Query(ctx, queries.QuerySelectDistinctMonthsByYearMonth, f.Year, f.Month)
	case f.Year != 0:
		rows, err = r.db.Query(ctx, queries.QuerySelectDistinctMonthsByYear, f.Year)
	case f.Month != 0:
		return nil, ErrMonthWithoutYear
	default:
		rows, err = r.db.Query(ctx, queries.QuerySelectDistinctMonths)
	}
	if err != nil {
		return nil, fmt.Errorf("source: list distinct months: %w", err)
	}
	defer rows.Close()

	var keys []unit.Key
	for rows.Next() {
		var year, month int
		if err := rows.Scan(&year, &month); err != nil {
			return nil, fmt.Errorf("source: scan month row: %w", err)
		}
		keys = append(keys, unit.New(year, month))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: list distinct months: %w", err)
	}

	return keys, nil
}

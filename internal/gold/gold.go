// Package gold holds the aggregation steps that write the gold layer.
// Every step is a single full-recompute upsert statement, so one
// execution is one transaction and replaying a step against unchanged
// silver data leaves the target rows byte-identical. That data-level
// idempotence is what the engine's replay safety rests on; the registry
// and checkpoints only track progress.
package gold

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/goldpipe/internal/pipelinedb/queries"
	"github.com/retailops/goldpipe/internal/unit"
)

// Execer is the single pool method the steps need
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Step aggregates one unit into its gold target. Implementations must be
// idempotent upserts keyed by the unit's natural dimensions.
type Step interface {
	Name() string
	Aggregate(ctx context.Context, key unit.Key) (int64, error)
}

// SummaryStep refreshes a whole gold summary table from silver. Summary
// steps run once per pipeline run, after the unit loop.
type SummaryStep interface {
	Name() string
	Refresh(ctx context.Context) (int64, error)
}

// MonthlySales rolls the daily sales facts for one month into
// gold.fact_sales_monthly.
type MonthlySales struct {
	db Execer
}

// NewMonthlySales creates the monthly sales step over db
func NewMonthlySales(db Execer) *MonthlySales {
	return &MonthlySales{db: db}
}

func (s *MonthlySales) Name() string { return "monthly_sales" }

// Aggregate recomputes the month's aggregate row. Returns the number of
// rows written: 1 when the month has data, 0 when the source holds
// nothing for it.
func (s *MonthlySales) Aggregate(ctx context.Context, key unit.Key) (int64, error) {
	tag, err := s.db.Exec(ctx, queries.QueryUpsertMonthlySales, key.Year, key.Month)
	if err != nil {
		return 0, fmt.Errorf("gold: aggregate monthly sales for %s: %w", key, err)
	}
	return tag.RowsAffected(), nil
}

// ProductPerformance refreshes gold.fact_product_performance, the
// per-product lifetime metrics across all of silver.
type ProductPerformance struct {
	db Execer
}

// NewProductPerformance creates the product summary step over db
func NewProductPerformance(db Execer) *ProductPerformance {
	return &ProductPerformance{db: db}
}

func (s *ProductPerformance) Name() string { return "product_performance" }

func (s *ProductPerformance) Refresh(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, queries.QueryUpsertProductPerformance)
	if err != nil {
		return 0, fmt.Errorf("gold: refresh product performance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountrySales refreshes gold.fact_country_sales, the per-country
// lifetime metrics including each country's top product.
type CountrySales struct {
	db Execer
}

// NewCountrySales creates the country summary step over db
func NewCountrySales(db Execer) *CountrySales {
	return &CountrySales{db: db}
}

func (s *CountrySales) Name() string { return "country_sales" }

func (s *CountrySales) Refresh(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, queries.QueryUpsertCountrySales)
	if err != nil {
		return 0, fmt.Errorf("gold: refresh country sales: %w", err)
	}
	return tag.RowsAffected(), nil
}

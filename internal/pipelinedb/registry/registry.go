package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/goldpipe/internal/pipelinedb/queries"
	"github.com/retailops/goldpipe/internal/unit"
)

// Querier is the subset of pgxpool.Pool the registry needs. Tests supply
// a fake; production code passes the pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry tracks which units have been processed (ops.processed_months).
// A unit is excluded from discovery iff its row says completed; failed and
// in_progress rows stay eligible, so crashed or failed runs are redone.
type Registry struct {
	db     Querier
	logger *slog.Logger
}

// New creates a unit registry backed by db
func New(db Querier, logger *slog.Logger) *Registry {
	return &Registry{db: db, logger: logger}
}

// ListCompleted returns the set of unit keys whose latest status is
// completed. No side effects.
func (r *Registry) ListCompleted(ctx context.Context) (map[unit.Key]struct{}, error) {
	rows, err := r.db.Query(ctx, queries.QueryListCompletedMonths)
	if err != nil {
		return nil, fmt.Errorf("pipelinedb: list completed units: %w", err)
	}
	defer rows.Close()

	completed := make(map[unit.Key]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("pipelinedb: scan completed unit: %w", err)
		}
		key, err := unit.Parse(raw)
		if err != nil {
			// A malformed key in the registry is operator-injected data;
			// surface it instead of silently re-aggregating the unit.
			return nil, fmt.Errorf("pipelinedb: registry row %q: %w", raw, err)
		}
		completed[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipelinedb: list completed units: %w", err)
	}

	return completed, nil
}

// Claim marks a unit in_progress in a single upsert round trip. Returns
// true if the claim took effect, false if the unit is already completed
// and must be skipped. Safe to call repeatedly: failed and in_progress
// rows are re-claimable.
func (r *Registry) Claim(ctx context.Context, key unit.Key) (bool, error) {
	var claimed string
	err := r.db.QueryRow(ctx, queries.QueryClaimMonth, key.String(), key.Year, key.Month).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict guard filtered the row: already completed.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pipelinedb: claim unit %s: %w", key, err)
	}

	r.logger.Debug("Unit claimed", "unit", key.String())
	return true, nil
}

// MarkCompleted transitions a unit to completed and stamps processed_at.
// Calling it twice leaves state unchanged.
func (r *Registry) MarkCompleted(ctx context.Context, key unit.Key) error {
	_, err := r.db.Exec(ctx, queries.QueryMarkMonthCompleted, key.String(), key.Year, key.Month)
	if err != nil {
		return fmt.Errorf("pipelinedb: mark unit %s completed: %w", key, err)
	}
	return nil
}

// MarkFailed records a failed attempt. The unit stays eligible for the
// next discovery pass; failure detail lives in the checkpoint ledger and
// event log, not here.
func (r *Registry) MarkFailed(ctx context.Context, key unit.Key) error {
	_, err := r.db.Exec(ctx, queries.QueryMarkMonthFailed, key.String(), key.Year, key.Month)
	if err != nil {
		return fmt.Errorf("pipelinedb: mark unit %s failed: %w", key, err)
	}
	return nil
}

// ResetAll deletes every registry row, making all units eligible again.
// Destructive; the CLI gates it behind confirmation.
func (r *Registry) ResetAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, queries.QueryResetAllMonths)
	if err != nil {
		return 0, fmt.Errorf("pipelinedb: reset registry: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ResetUnit deletes one registry row so the unit can be reprocessed
func (r *Registry) ResetUnit(ctx context.Context, key unit.Key) (int64, error) {
	tag, err := r.db.Exec(ctx, queries.QueryResetMonth, key.String())
	if err != nil {
		return 0, fmt.Errorf("pipelinedb: reset unit %s: %w", key, err)
	}
	return tag.RowsAffected(), nil
}

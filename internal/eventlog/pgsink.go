package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/goldpipe/internal/pipelinedb/queries"
)

// Execer is the single pool method the sink needs
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink appends events to ops.pipeline_logs
type PostgresSink struct {
	db Execer
}

// NewPostgresSink creates a sink writing through db
func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

// WriteEvent inserts one event row. Blank source fields travel as NULL,
// matching rows written by earlier tooling against the same table.
func (s *PostgresSink) WriteEvent(ctx context.Context, e *Event) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		var err error
		meta, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("eventlog: encode metadata: %w", err)
		}
	}

	_, err := s.db.Exec(ctx, queries.QueryInsertPipelineLog,
		e.Timestamp, e.Level, e.Message,
		nullIfEmpty(e.Logger), nullIfEmpty(e.Pipeline), nullIfEmpty(e.RunID),
		nullIfEmpty(e.Module), nullIfEmpty(e.Function), nullIfZero(e.Line),
		meta,
	)
	if err != nil {
		return fmt.Errorf("eventlog: write event: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

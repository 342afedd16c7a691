package pipelinedb

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema creates the ops, silver and gold schemas and tables. Every
// statement in the script is IF NOT EXISTS, so replaying it against a
// populated database is safe.
func (s *Store) InitSchema(ctx context.Context) error {
	// A zero-argument Exec runs over the simple protocol, which accepts
	// the multi-statement script in one round trip.
	if _, err := s.Pool().Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("pipelinedb: init schema: %w", err)
	}

	s.logger.Info("Warehouse schema initialized")
	return nil
}

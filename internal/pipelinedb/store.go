package pipelinedb

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/retailops/goldpipe/internal/pipelinedb/checkpoint"
	"github.com/retailops/goldpipe/internal/pipelinedb/connection"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
	"github.com/retailops/goldpipe/internal/pipelinedb/registry"
)

// Store bundles the warehouse connection pool with the bookkeeping stores
// the engine mutates: the unit registry and the checkpoint ledger. Both
// share one pool, so losing the connection takes out idempotence tracking
// and checkpointing together.
type Store struct {
	pool        *connection.ConnectionPool
	registry    *registry.Registry
	checkpoints *checkpoint.Store
	config      *models.Config
	logger      *slog.Logger
}

// Open connects to the warehouse and wires up the sub-stores.
// Returns an error if the database is unreachable.
func Open(cfg *models.Config) (*Store, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := connection.NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}

	return &Store{
		pool:        pool,
		registry:    registry.New(pool.Pool(), cfg.Logger),
		checkpoints: checkpoint.New(pool.Pool(), cfg.Logger),
		config:      cfg,
		logger:      cfg.Logger,
	}, nil
}

// Registry returns the unit registry
func (s *Store) Registry() *registry.Registry {
	return s.registry
}

// Checkpoints returns the checkpoint ledger
func (s *Store) Checkpoints() *checkpoint.Store {
	return s.checkpoints
}

// Pool returns the underlying pgx pool for direct SQL
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool.Pool()
}

// IsHealthy returns database connection health status
func (s *Store) IsHealthy() bool {
	return s.pool.IsHealthy()
}

// ConnectionStats returns connection pool statistics
func (s *Store) ConnectionStats() *pgxpool.Stat {
	return s.pool.Stats()
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

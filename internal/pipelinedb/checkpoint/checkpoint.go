package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
	"github.com/retailops/goldpipe/internal/pipelinedb/queries"
	"github.com/retailops/goldpipe/internal/utils"
)

// Querier is the subset of pgxpool.Pool the checkpoint store needs
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the stage-level checkpoint ledger (ops.pipeline_checkpoints).
// One row per (pipeline, run, stage, checkpoint_key); Begin opens it
// in_progress, Complete/Fail close it with duration and merged metadata.
// Rows are retained indefinitely for audit.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a checkpoint store backed by db
func New(db Querier, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Begin opens a checkpoint for a stage. Re-beginning the same key resets
// the existing row to in_progress, so a re-run of a stage replaces its
// earlier attempt within the same run.
func (s *Store) Begin(ctx context.Context, pipeline, runID, stage, key string, metadata map[string]any) (*models.CheckpointRecord, error) {
	start := utils.NowUTC()

	meta, err := marshalMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("pipelinedb: encode checkpoint metadata: %w", err)
	}

	var id int64
	err = s.db.QueryRow(ctx, queries.QueryBeginCheckpoint,
		pipeline, runID, stage, key, start, meta).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("pipelinedb: begin checkpoint %s/%s: %w", stage, key, err)
	}

	s.logger.Debug("Checkpoint opened",
		"stage", stage,
		"checkpoint_key", key,
		"run_id", runID,
	)

	return &models.CheckpointRecord{
		ID:            id,
		PipelineName:  pipeline,
		RunID:         runID,
		Stage:         stage,
		CheckpointKey: key,
		Status:        models.StatusInProgress,
		StartTime:     start,
		Metadata:      metadata,
	}, nil
}

// Complete closes a checkpoint as completed, recording the stage value
// (typically rows affected) and merging metadata into the row.
func (s *Store) Complete(ctx context.Context, rec *models.CheckpointRecord, value string, metadata map[string]any) error {
	return s.finish(ctx, rec, value, models.StatusCompleted, metadata)
}

// Fail closes a checkpoint as failed. Error detail goes in metadata; the
// checkpoint_value is fixed so failed rows are greppable.
func (s *Store) Fail(ctx context.Context, rec *models.CheckpointRecord, metadata map[string]any) error {
	return s.finish(ctx, rec, "failed", models.StatusFailed, metadata)
}

func (s *Store) finish(ctx context.Context, rec *models.CheckpointRecord, value string, status models.Status, metadata map[string]any) error {
	end := utils.NowUTC()
	durationMS := end.Sub(rec.StartTime).Milliseconds()

	meta, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("pipelinedb: encode checkpoint metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, queries.QueryFinishCheckpoint,
		rec.ID, value, string(status), end, durationMS, meta)
	if err != nil {
		return fmt.Errorf("pipelinedb: finish checkpoint %s/%s: %w", rec.Stage, rec.CheckpointKey, err)
	}

	rec.CheckpointValue = value
	rec.Status = status
	rec.EndTime = &end
	rec.DurationMS = &durationMS
	return nil
}

// Query lists checkpoint rows for diagnostics, ordered by start time.
// An empty runID means all runs of the pipeline.
func (s *Store) Query(ctx context.Context, pipeline, runID string) ([]models.CheckpointRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if runID == "" {
		rows, err = s.db.Query(ctx, queries.QuerySelectCheckpointsByPipeline, pipeline)
	} else {
		rows, err = s.db.Query(ctx, queries.QuerySelectCheckpointsByRun, pipeline, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("pipelinedb: query checkpoints: %w", err)
	}
	defer rows.Close()

	var records []models.CheckpointRecord
	for rows.Next() {
		var (
			rec     models.CheckpointRecord
			value   *string
			status  string
			metaRaw []byte
		)
		err := rows.Scan(
			&rec.ID, &rec.PipelineName, &rec.RunID, &rec.Stage, &rec.CheckpointKey,
			&value, &status, &rec.StartTime, &rec.EndTime, &rec.DurationMS,
			&metaRaw, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("pipelinedb: scan checkpoint: %w", err)
		}
		if value != nil {
			rec.CheckpointValue = *value
		}
		rec.Status = models.Status(status)
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("pipelinedb: decode checkpoint metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipelinedb: query checkpoints: %w", err)
	}

	return records, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

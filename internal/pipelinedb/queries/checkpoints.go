package queries

// SQL queries for the ops.pipeline_checkpoints ledger

const (
	// QueryBeginCheckpoint opens a checkpoint row for a stage. Re-running
	// the same (pipeline, run, stage, key) resets it to in_progress with a
	// fresh start_time, so a retried stage overwrites its earlier attempt.
	QueryBeginCheckpoint = `
		INSERT INTO ops.pipeline_checkpoints
			(pipeline_name, run_id, stage, checkpoint_key, status, start_time, metadata)
		VALUES ($1, $2, $3, $4, 'in_progress', $5, $6)
		ON CONFLICT (pipeline_name, run_id, stage, checkpoint_key) DO UPDATE SET
			status = 'in_progress',
			start_time = EXCLUDED.start_time,
			end_time = NULL,
			duration_ms = NULL,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	// QueryFinishCheckpoint closes a checkpoint row with a terminal status
	// and merges any new metadata into what Begin recorded
	QueryFinishCheckpoint = `
		UPDATE ops.pipeline_checkpoints SET
			checkpoint_value = $2,
			status = $3,
			end_time = $4,
			duration_ms = $5,
			metadata = COALESCE(metadata, '{}'::jsonb) || COALESCE($6::jsonb, '{}'::jsonb),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	// QuerySelectCheckpointsByRun lists one run's checkpoints in execution order
	QuerySelectCheckpointsByRun = `
		SELECT id, pipeline_name, run_id, stage, checkpoint_key, checkpoint_value,
		       status, start_time, end_time, duration_ms, metadata, created_at, updated_at
		FROM ops.pipeline_checkpoints
		WHERE pipeline_name = $1 AND run_id = $2
		ORDER BY start_time ASC, id ASC
	`

	// QuerySelectCheckpointsByPipeline lists checkpoints across all runs
	QuerySelectCheckpointsByPipeline = `
		SELECT id, pipeline_name, run_id, stage, checkpoint_key, checkpoint_value,
		       status, start_time, end_time, duration_ms, metadata, created_at, updated_at
		FROM ops.pipeline_checkpoints
		WHERE pipeline_name = $1
		ORDER BY start_time ASC, id ASC
	`
)

package queries

// SQL queries for the ops.pipeline_logs event table

const (
	// QueryInsertPipelineLog appends one structured event
	QueryInsertPipelineLog = `
		INSERT INTO ops.pipeline_logs
			(timestamp, level, message, logger, pipeline_name, run_id,
			 module, function, line, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
)

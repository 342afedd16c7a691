package queries

// SQL queries for connection and schema health checks

const (
	// QueryHealthCheck is a simple connection check
	QueryHealthCheck = `SELECT 1`

	// QueryTableExists checks if a table exists in a given schema
	QueryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`
)

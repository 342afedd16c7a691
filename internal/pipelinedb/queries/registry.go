package queries

// SQL queries for the ops.processed_months unit registry

const (
	// QueryListCompletedMonths retrieves the keys of all completed units
	QueryListCompletedMonths = `
		SELECT month_key
		FROM ops.processed_months
		WHERE status = 'completed'
		ORDER BY month_key
	`

	// QueryClaimMonth claims a unit for processing in a single round trip.
	// The WHERE guard skips rows already completed, so the statement
	// returns no row for them and the caller treats that as "skip".
	QueryClaimMonth = `
		INSERT INTO ops.processed_months (month_key, year, month, status, updated_at)
		VALUES ($1, $2, $3, 'in_progress', CURRENT_TIMESTAMP)
		ON CONFLICT (month_key) DO UPDATE SET
			status = 'in_progress',
			updated_at = CURRENT_TIMESTAMP
		WHERE processed_months.status <> 'completed'
		RETURNING month_key
	`

	// QueryMarkMonthCompleted finalizes a claimed unit
	QueryMarkMonthCompleted = `
		INSERT INTO ops.processed_months (month_key, year, month, status, processed_at, updated_at)
		VALUES ($1, $2, $3, 'completed', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (month_key) DO UPDATE SET
			status = 'completed',
			processed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE processed_months.status <> 'completed'
	`

	// QueryMarkMonthFailed records a failed attempt; the row stays
	// eligible for the next discovery pass
	QueryMarkMonthFailed = `
		INSERT INTO ops.processed_months (month_key, year, month, status, updated_at)
		VALUES ($1, $2, $3, 'failed', CURRENT_TIMESTAMP)
		ON CONFLICT (month_key) DO UPDATE SET
			status = 'failed',
			updated_at = CURRENT_TIMESTAMP
	`

	// QueryResetAllMonths clears the whole registry
	QueryResetAllMonths = `DELETE FROM ops.processed_months`

	// QueryResetMonth clears a single unit so it can be reprocessed
	QueryResetMonth = `
		DELETE FROM ops.processed_months
		WHERE month_key = $1
	`
)

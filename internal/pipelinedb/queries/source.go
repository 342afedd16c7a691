package queries

// SQL queries for discovering work in the silver layer

const (
	// QuerySelectDistinctMonths lists every (year, month) present in the
	// daily sales facts
	QuerySelectDistinctMonths = `
		SELECT DISTINCT d.year, d.month
		FROM silver.fact_sales_daily fsd
		JOIN silver.dim_date d ON fsd.date_id = d.date_id
		ORDER BY d.year, d.month
	`

	// QuerySelectDistinctMonthsByYear narrows discovery to one year
	QuerySelectDistinctMonthsByYear = `
		SELECT DISTINCT d.year, d.month
		FROM silver.fact_sales_daily fsd
		JOIN silver.dim_date d ON fsd.date_id = d.date_id
		WHERE d.year = $1
		ORDER BY d.year, d.month
	`

	// QuerySelectDistinctMonthsByYearMonth narrows discovery to one month
	QuerySelectDistinctMonthsByYearMonth = `
		SELECT DISTINCT d.year, d.month
		FROM silver.fact_sales_daily fsd
		JOIN silver.dim_date d ON fsd.date_id = d.date_id
		WHERE d.year = $1 AND d.month = $2
		ORDER BY d.year, d.month
	`
)

package queries

// SQL queries writing the gold layer. Every statement is a full-recompute
// upsert: replaying it against unchanged silver data produces identical rows.

const (
	// QueryUpsertMonthlySales recomputes one month's aggregate from the
	// daily sales facts
	QueryUpsertMonthlySales = `
		INSERT INTO gold.fact_sales_monthly (
			year, month,
			total_revenue, total_quantity, total_transactions,
			total_products, total_countries,
			avg_revenue_per_transaction, avg_quantity_per_transaction,
			unique_customers
		)
		SELECT
			d.year,
			d.month,
			SUM(fsd.total_revenue),
			SUM(fsd.total_quantity),
			SUM(fsd.total_transactions),
			COUNT(DISTINCT fsd.product_id),
			COUNT(DISTINCT fsd.country),
			CASE
				WHEN SUM(fsd.total_transactions) > 0
				THEN ROUND(SUM(fsd.total_revenue)::NUMERIC / SUM(fsd.total_transactions), 2)
				ELSE 0
			END,
			CASE
				WHEN SUM(fsd.total_transactions) > 0
				THEN ROUND(SUM(fsd.total_quantity)::NUMERIC / SUM(fsd.total_transactions), 2)
				ELSE 0
			END,
			COUNT(DISTINCT fsd.customer_id)
		FROM silver.fact_sales_daily fsd
		JOIN silver.dim_date d ON fsd.date_id = d.date_id
		WHERE d.year = $1 AND d.month = $2
		GROUP BY d.year, d.month
		ON CONFLICT (year, month) DO UPDATE SET
			total_revenue = EXCLUDED.total_revenue,
			total_quantity = EXCLUDED.total_quantity,
			total_transactions = EXCLUDED.total_transactions,
			total_products = EXCLUDED.total_products,
			total_countries = EXCLUDED.total_countries,
			avg_revenue_per_transaction = EXCLUDED.avg_revenue_per_transaction,
			avg_quantity_per_transaction = EXCLUDED.avg_quantity_per_transaction,
			unique_customers = EXCLUDED.unique_customers,
			updated_at = CURRENT_TIMESTAMP
	`

	// QueryUpsertProductPerformance refreshes per-product lifetime metrics
	// across all of silver
	QueryUpsertProductPerformance = `
		INSERT INTO gold.fact_product_performance (
			product_id, stock_code, description, category,
			total_revenue, total_quantity, total_transactions,
			total_days_sold, total_countries,
			avg_revenue_per_day, avg_quantity_per_day,
			avg_revenue_per_transaction, avg_quantity_per_transaction,
			first_sale_date, last_sale_date
		)
		SELECT
			dp.product_id,
			dp.stock_code,
			dp.description,
			dp.category,
			SUM(fsd.total_revenue),
			SUM(fsd.total_quantity),
			SUM(fsd.total_transactions),
			COUNT(DISTINCT fsd.date_id),
			COUNT(DISTINCT fsd.country),
			CASE
				WHEN COUNT(DISTINCT fsd.date_id) > 0
				THEN ROUND(SUM(fsd.total_revenue)::NUMERIC / COUNT(DISTINCT fsd.date_id), 2)
				ELSE 0
			END,
			CASE
				WHEN COUNT(DISTINCT fsd.date_id) > 0
				THEN ROUND(SUM(fsd.total_quantity)::NUMERIC / COUNT(DISTINCT fsd.date_id), 2)
				ELSE 0
			END,
			CASE
				WHEN SUM(fsd.total_transactions) > 0
				THEN ROUND(SUM(fsd.total_revenue)::NUMERIC / SUM(fsd.total_transactions), 2)
				ELSE 0
			END,
			CASE
				WHEN SUM(fsd.total_transactions) > 0
				THEN ROUND(SUM(fsd.total_quantity)::NUMERIC / SUM(fsd.total_transactions), 2)
				ELSE 0
			END,
			MIN(d.date),
			MAX(d.date)
		FROM silver.fact_sales_daily fsd
		JOIN silver.dim_product dp ON fsd.product_id = dp.product_id
		JOIN silver.dim_date d ON fsd.date_id = d.date_id
		GROUP BY dp.product_id, dp.stock_code, dp.description, dp.category
		ON CONFLICT (product_id) DO UPDATE SET
			total_revenue = EXCLUDED.total_revenue,
			total_quantity = EXCLUDED.total_quantity,
			total_transactions = EXCLUDED.total_transactions,
			total_days_sold = EXCLUDED.total_days_sold,
			total_countries = EXCLUDED.total_countries,
			avg_revenue_per_day = EXCLUDED.avg_revenue_per_day,
			avg_quantity_per_day = EXCLUDED.avg_quantity_per_day,
			avg_revenue_per_transaction = EXCLUDED.avg_revenue_per_transaction,
			avg_quantity_per_transaction = EXCLUDED.avg_quantity_per_transaction,
			first_sale_date = EXCLUDED.first_sale_date,
			last_sale_date = EXCLUDED.last_sale_date,
			updated_at = CURRENT_TIMESTAMP
	`

	// QueryUpsertCountrySales refreshes per-country lifetime metrics,
	// including each country's top product by revenue
	QueryUpsertCountrySales = `
		INSERT INTO gold.fact_country_sales (
			country, total_revenue, total_quantity, total_transactions,
			total_products, total_days_active, unique_customers,
			avg_revenue_per_transaction, avg_quantity_per_transaction,
			top_product_id, top_product_revenue,
			first_transaction_date, last_transaction_date
		)
		SELECT
			fsd.country,
			SUM(fsd.total_revenue),
			SUM(fsd.total_quantity),
			SUM(fsd.total_transactions),
			COUNT(DISTINCT fsd.product_id),
			COUNT(DISTINCT fsd.date_id),
			COUNT(DISTINCT fsd.customer_id),
			CASE
				WHEN SUM(fsd.total_transactions) > 0
				THEN ROUND(SUM(fsd.total_revenue)::NUMERIC / SUM(fsd.total_transactions), 2)
				ELSE 0
			END,
			CASE
				WHEN SUM(fsd.total_transactions) > 0
				THEN ROUND(SUM(fsd.total_quantity)::NUMERIC / SUM(fsd.total_transactions), 2)
				ELSE 0
			END,
			(
				SELECT fsd2.product_id
				FROM silver.fact_sales_daily fsd2
				WHERE fsd2.country = fsd.country
				GROUP BY fsd2.product_id
				ORDER BY SUM(fsd2.total_revenue) DESC
				LIMIT 1
			),
			(
				SELECT SUM(fsd3.total_revenue)
				FROM silver.fact_sales_daily fsd3
				WHERE fsd3.country = fsd.country AND fsd3.product_id = (
					SELECT fsd2.product_id
					FROM silver.fact_sales_daily fsd2
					WHERE fsd2.country = fsd.country
					GROUP BY fsd2.product_id
					ORDER BY SUM(fsd2.total_revenue) DESC
					LIMIT 1
				)
			),
			MIN(d.date),
			MAX(d.date)
		FROM silver.fact_sales_daily fsd
		JOIN silver.dim_date d ON fsd.date_id = d.date_id
		GROUP BY fsd.country
		ON CONFLICT (country) DO UPDATE SET
			total_revenue = EXCLUDED.total_revenue,
			total_quantity = EXCLUDED.total_quantity,
			total_transactions = EXCLUDED.total_transactions,
			total_products = EXCLUDED.total_products,
			total_days_active = EXCLUDED.total_days_active,
			unique_customers = EXCLUDED.unique_customers,
			avg_revenue_per_transaction = EXCLUDED.avg_revenue_per_transaction,
			avg_quantity_per_transaction = EXCLUDED.avg_quantity_per_transaction,
			top_product_id = EXCLUDED.top_product_id,
			top_product_revenue = EXCLUDED.top_product_revenue,
			first_transaction_date = EXCLUDED.first_transaction_date,
			last_transaction_date = EXCLUDED.last_transaction_date,
			updated_at = CURRENT_TIMESTAMP
	`
)

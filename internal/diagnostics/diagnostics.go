// Package diagnostics runs the fixed set of business-analytics data
// quality checks behind GET /diagnostics/data-quality (spec §6.1).
// Each check is a standalone SQL query against the store; the registry
// shape mirrors how the rest of the core composes independent, named
// units of work.
package diagnostics

import (
	"context"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// Result is the outcome of one data quality check.
type Result struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	Passed        bool   `json:"passed"`
	AffectedCount int64  `json:"affected_count"`
	Detail        string `json:"detail,omitempty"`
}

// Check is a single named data quality rule. Query must return a single
// COUNT(*) column of the rows that violate the rule — zero is a pass.
type Check struct {
	Name  string
	Label string
	Query string
}

// registry is the fixed set of checks run by RunAll. Order is stable so
// repeated runs diff cleanly. Each check's semantics is ground-truthed
// against diagnostic_service.py's fifteen business-analytics checks
// (run_all_checks): revenue/volume sanity, customer and trend anomalies,
// catalog coverage gaps, and data-entry impossibilities. Query expresses
// each one as a single COUNT(*) of the rows the Python check flags,
// since the store-query shape here only carries a pass/fail count, not
// the richer multi-status report the original returns.
var registry = []Check{
	{"revenue_vs_volume", "2025 rows with revenue, or 2026 rows missing it",
		`SELECT COUNT(*) FROM sales
		 WHERE (EXTRACT(YEAR FROM week_start) = 2025 AND total_price_usd > 0)
		    OR (EXTRACT(YEAR FROM week_start) = 2026 AND (total_price_usd IS NULL OR total_price_usd = 0))`},
	{"customer_status_distribution", "Customer base more than 80% dormant (no order in 180 days)",
		`SELECT CASE WHEN dormant_pct > 80 THEN dormant ELSE 0 END FROM (
			SELECT
				COUNT(*) FILTER (WHERE last_order < NOW() - INTERVAL '180 days') AS dormant,
				100.0 * COUNT(*) FILTER (WHERE last_order < NOW() - INTERVAL '180 days') / NULLIF(COUNT(*), 0) AS dormant_pct
			FROM (SELECT customer_normalized, MAX(week_start) AS last_order FROM sales GROUP BY customer_normalized) c
		 ) x`},
	{"extreme_trend_percentages", "Products with >500% growth or <-80% decline vs the prior 90 days",
		`WITH vol AS (
			SELECT product_id,
				SUM(quantity_m2) FILTER (WHERE week_start >= NOW() - INTERVAL '90 days') AS curr,
				SUM(quantity_m2) FILTER (WHERE week_start >= NOW() - INTERVAL '180 days' AND week_start < NOW() - INTERVAL '90 days') AS prior
			FROM sales GROUP BY product_id
		 )
		 SELECT COUNT(*) FROM vol
		 WHERE prior > 0 AND (100.0 * (curr - prior) / prior > 500 OR 100.0 * (curr - prior) / prior < -80)`},
	{"confidence_vs_transactions", "Products with 20+ transactions but coefficient of variation above 1.0",
		`SELECT COUNT(*) FROM (
			SELECT product_id, STDDEV_POP(quantity_m2) / NULLIF(AVG(quantity_m2), 0) AS cv
			FROM sales WHERE quantity_m2 > 0
			GROUP BY product_id HAVING COUNT(*) >= 20
		 ) s WHERE cv > 1.0`},
	{"products_without_sales", "Active catalog products with zero sales history (>30% of catalog)",
		`SELECT CASE WHEN no_sales > total * 0.3 THEN no_sales ELSE 0 END FROM (
			SELECT
				(SELECT COUNT(*) FROM products WHERE active = true) AS total,
				(SELECT COUNT(*) FROM products p WHERE active = true
				 AND NOT EXISTS (SELECT 1 FROM sales s WHERE s.product_id = p.id)) AS no_sales
		 ) c`},
	{"products_without_inventory", "Products with sales but no warehouse inventory on hand (>5 products)",
		`SELECT CASE WHEN n > 5 THEN n ELSE 0 END FROM (
			SELECT COUNT(DISTINCT s.product_id) AS n FROM sales s
			WHERE NOT EXISTS (
				SELECT 1 FROM warehouse_snapshots ws
				WHERE ws.product_id = s.product_id AND ws.quantity_m2 > 0
			)
		 ) m`},
	{"tier_vs_revenue_mismatch", "Tier A customers with under $1,000 revenue",
		`SELECT COUNT(DISTINCT customer_name) FROM customer_patterns WHERE tier = 'A' AND revenue_usd < 1000`},
	{"trend_direction_logic", "Recent sales referencing a product the catalog can't resolve",
		`SELECT COUNT(*) FROM (
			SELECT DISTINCT product_id FROM sales WHERE week_start >= NOW() - INTERVAL '180 days'
		 ) s LEFT JOIN products p ON p.id = s.product_id WHERE p.id IS NULL`},
	{"2026_data_quality", "2026 rows with volume but no revenue, or revenue but no volume",
		`SELECT COUNT(*) FROM sales
		 WHERE EXTRACT(YEAR FROM week_start) = 2026
		 AND ((quantity_m2 > 0 AND (total_price_usd IS NULL OR total_price_usd = 0))
		   OR (total_price_usd > 0 AND (quantity_m2 IS NULL OR quantity_m2 = 0)))`},
	{"impossible_data", "Negative quantities/revenue, or revenue recorded without volume",
		`SELECT COUNT(*) FROM sales
		 WHERE quantity_m2 < 0 OR total_price_usd < 0
		    OR (total_price_usd > 0 AND (quantity_m2 IS NULL OR quantity_m2 = 0))`},
	{"duplicate_customers", "Customer names that collide once punctuation and case are stripped",
		`SELECT COUNT(*) FROM (
			SELECT regexp_replace(upper(customer_normalized), '[ ,.]', '', 'g') AS norm FROM (
				SELECT DISTINCT customer_normalized FROM sales WHERE customer_normalized IS NOT NULL
			) d
			GROUP BY norm HAVING COUNT(*) > 1
		 ) dup`},
	{"date_sanity", "Sales dated in the future, or before 2024",
		`SELECT COUNT(*) FROM sales WHERE week_start > NOW() OR week_start < '2024-01-01'`},
	{"days_of_stock_edge_cases", "Products with warehouse stock but zero sales in the last 90 days",
		`SELECT COUNT(*) FROM warehouse_snapshots ws
		 WHERE ws.snapshot_date = (SELECT MAX(ws2.snapshot_date) FROM warehouse_snapshots ws2 WHERE ws2.product_id = ws.product_id)
		 AND ws.quantity_m2 > 0
		 AND NOT EXISTS (SELECT 1 FROM sales s WHERE s.product_id = ws.product_id AND s.week_start >= NOW() - INTERVAL '90 days')`},
	{"sparkline_data", "Sales history referencing a product missing from the catalog",
		`SELECT COUNT(DISTINCT s.product_id) FROM sales s LEFT JOIN products p ON p.id = s.product_id WHERE p.id IS NULL`},
	{"country_inference", "Customer names matching an unexpected market (Colombia)",
		`SELECT COUNT(DISTINCT customer_normalized) FROM sales
		 WHERE customer_normalized IS NOT NULL
		 AND (upper(customer_normalized) LIKE '%COLOMBIA%' OR upper(customer_normalized) LIKE '% CO')`},
}

// RunAll executes every registered check and returns one Result per check,
// in registry order.
func RunAll(ctx context.Context, store *db.Store) ([]Result, error) {
	out := make([]Result, 0, len(registry))
	for _, c := range registry {
		var count int64
		if err := store.DB().QueryRowContext(ctx, c.Query).Scan(&count); err != nil {
			return nil, apperr.Wrap("run data quality check "+c.Name, err)
		}
		out = append(out, Result{
			Name:          c.Name,
			Label:         c.Label,
			Passed:        count == 0,
			AffectedCount: count,
		})
	}
	return out, nil
}

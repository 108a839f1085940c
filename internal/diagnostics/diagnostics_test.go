package diagnostics

import "testing"

func TestRegistry_NamesAreUniqueAndNonEmpty(t *testing.T) {
	seen := make(map[string]bool, len(registry))
	for _, c := range registry {
		if c.Name == "" {
			t.Errorf("check has empty Name (label %q)", c.Label)
		}
		if c.Label == "" {
			t.Errorf("check %q has empty Label", c.Name)
		}
		if c.Query == "" {
			t.Errorf("check %q has empty Query", c.Name)
		}
		if seen[c.Name] {
			t.Errorf("duplicate check name %q", c.Name)
		}
		seen[c.Name] = true
	}
}

func TestRegistry_HasFixedCheckCount(t *testing.T) {
	if len(registry) != 15 {
		t.Errorf("len(registry) = %d, want 15 data quality checks", len(registry))
	}
}

// TestRegistry_MatchesBusinessAnalyticsCheckSet pins the registry to the
// ground-truth check names from diagnostic_service.py's run_all_checks,
// not the relational-integrity checks a generic SQL-schema audit would
// produce.
func TestRegistry_MatchesBusinessAnalyticsCheckSet(t *testing.T) {
	want := []string{
		"revenue_vs_volume",
		"customer_status_distribution",
		"extreme_trend_percentages",
		"confidence_vs_transactions",
		"products_without_sales",
		"products_without_inventory",
		"tier_vs_revenue_mismatch",
		"trend_direction_logic",
		"2026_data_quality",
		"impossible_data",
		"duplicate_customers",
		"date_sanity",
		"days_of_stock_edge_cases",
		"sparkline_data",
		"country_inference",
	}
	if len(registry) != len(want) {
		t.Fatalf("len(registry) = %d, want %d", len(registry), len(want))
	}
	for i, name := range want {
		if registry[i].Name != name {
			t.Errorf("registry[%d].Name = %q, want %q", i, registry[i].Name, name)
		}
	}
}

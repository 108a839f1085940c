package recommend

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClassifyStockout_NoVelocity(t *testing.T) {
	got := ClassifyStockout("p1", decimal.NewFromInt(100), decimal.Zero, decimal.Zero, mustDate("2026-03-01"), time.Time{}, time.Time{})
	if got.HasData {
		t.Errorf("HasData = true, want false when velocity is zero")
	}
	if got.Tier != TierYourCall {
		t.Errorf("Tier = %v, want YOUR_CALL", got.Tier)
	}
}

func TestClassifyStockout_Tiers(t *testing.T) {
	today := mustDate("2026-03-01")
	next := mustDate("2026-03-10")
	second := mustDate("2026-04-01")

	cases := []struct {
		name      string
		warehouse decimal.Decimal
		velocity  decimal.Decimal
		want      StockoutTier
	}{
		{"stockout before next boat", decimal.NewFromInt(50), decimal.NewFromInt(10), TierHighPriority},
		{"stockout before second boat", decimal.NewFromInt(150), decimal.NewFromInt(10), TierConsider},
		{"well covered", decimal.NewFromInt(2000), decimal.NewFromInt(10), TierWellCovered},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ClassifyStockout("p1", c.warehouse, decimal.Zero, c.velocity, today, next, second)
			if !got.HasData {
				t.Fatalf("HasData = false, want true")
			}
			if got.Tier != c.want {
				t.Errorf("Tier = %v, want %v (days_to_stockout=%v)", got.Tier, c.want, got.DaysToStockout)
			}
		})
	}
}

func TestComputeAllocationTargets_ScalesDownWhenOverCapacity(t *testing.T) {
	velocities := map[string]decimal.Decimal{
		"p1": decimal.NewFromInt(1000),
		"p2": decimal.NewFromInt(1000),
	}
	stddevs := map[string]decimal.Decimal{
		"p1": decimal.Zero,
		"p2": decimal.Zero,
	}
	// lead=30 days => raw target 30000 each, sum 60000; capacity much smaller.
	capacityPallets := decimal.NewFromInt(10)
	m2PerPallet := decimal.NewFromInt(100) // capacity = 1000 m2

	targets := ComputeAllocationTargets(velocities, stddevs, 30, capacityPallets, m2PerPallet)

	sum := decimal.Zero
	for _, tg := range targets {
		sum = sum.Add(tg.Target)
		if tg.ScaleFactor.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			t.Errorf("ScaleFactor = %v, want < 1 when sum exceeds capacity", tg.ScaleFactor)
		}
	}
	if sum.GreaterThan(decimal.NewFromInt(1000).Add(decimal.NewFromFloat(0.01))) {
		t.Errorf("scaled sum = %v, want <= capacity 1000", sum)
	}
}

func TestComputeAllocationTargets_NoScalingUnderCapacity(t *testing.T) {
	velocities := map[string]decimal.Decimal{"p1": decimal.NewFromInt(1)}
	stddevs := map[string]decimal.Decimal{"p1": decimal.Zero}

	targets := ComputeAllocationTargets(velocities, stddevs, 5, decimal.NewFromInt(740), db.M2PerPallet)
	tg := targets["p1"]
	if !tg.ScaleFactor.Equal(decimal.NewFromInt(1)) {
		t.Errorf("ScaleFactor = %v, want 1 when under capacity", tg.ScaleFactor)
	}
}

func TestCustomerDemandScore_SkipsNotYetDue(t *testing.T) {
	today := mustDate("2026-03-01")
	patterns := []db.CustomerPattern{
		{
			ProductID:     "p1",
			CustomerName:  "acme",
			Tier:          db.CustomerTierA,
			LastOrderDate: mustDate("2026-02-25"),
			AvgGapDays:    decimal.NewFromInt(30), // due 2026-03-27, not yet overdue
		},
		{
			ProductID:     "p1",
			CustomerName:  "beta",
			Tier:          db.CustomerTierB,
			LastOrderDate: mustDate("2026-01-01"),
			AvgGapDays:    decimal.NewFromInt(10), // due 2026-01-11, 49 days overdue
		},
	}
	score := CustomerDemandScore(patterns, today)
	// beta: tier B weight 50 * overdue_multiplier(49 days -> 2.0) = 100
	want := decimal.NewFromInt(100)
	if !score.Equal(want) {
		t.Errorf("CustomerDemandScore = %v, want %v", score, want)
	}
}

func TestAssignCustomerTiers(t *testing.T) {
	revenue := map[string]decimal.Decimal{
		"whale":  decimal.NewFromInt(800),
		"medium": decimal.NewFromInt(150),
		"small":  decimal.NewFromInt(50),
	}
	tiers := AssignCustomerTiers(revenue)
	if tiers["whale"] != db.CustomerTierA {
		t.Errorf("whale tier = %v, want A", tiers["whale"])
	}
	if tiers["medium"] != db.CustomerTierB {
		t.Errorf("medium tier = %v, want B", tiers["medium"])
	}
	if tiers["small"] != db.CustomerTierC {
		t.Errorf("small tier = %v, want C", tiers["small"])
	}
}

func TestAssignCustomerTiers_ZeroRevenue(t *testing.T) {
	tiers := AssignCustomerTiers(map[string]decimal.Decimal{"a": decimal.Zero})
	if tiers["a"] != db.CustomerTierC {
		t.Errorf("tier = %v, want C when total revenue is zero", tiers["a"])
	}
}

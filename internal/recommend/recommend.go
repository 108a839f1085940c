// Package recommend computes per-product allocation targets, stockout
// classification, and the customer-demand score that feeds the order
// builder (spec §4.9).
package recommend

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// StockoutTier is the closed enum for a product's urgency-to-reorder
// classification relative to upcoming boats.
type StockoutTier string

const (
	TierHighPriority StockoutTier = "HIGH_PRIORITY"
	TierConsider     StockoutTier = "CONSIDER"
	TierWellCovered  StockoutTier = "WELL_COVERED"
	TierYourCall     StockoutTier = "YOUR_CALL"
)

// Stockout is the classification result for one product.
type Stockout struct {
	ProductID      string
	DaysToStockout decimal.Decimal
	HasData        bool
	Tier           StockoutTier
}

// ClassifyStockout computes days_to_stockout = (warehouse + in_transit) / v
// and buckets it against the next two boat arrivals (spec §4.9).
func ClassifyStockout(productID string, warehouse, inTransit, velocity decimal.Decimal, today, nextBoatArrival, secondBoatArrival time.Time) Stockout {
	if velocity.IsZero() {
		return Stockout{ProductID: productID, HasData: false, Tier: TierYourCall}
	}

	supply := warehouse.Add(inTransit)
	daysToStockout := supply.Div(velocity)

	stockoutDate := today.AddDate(0, 0, int(math.Round(mustFloat(daysToStockout))))

	var tier StockoutTier
	switch {
	case !nextBoatArrival.IsZero() && stockoutDate.Before(nextBoatArrival):
		tier = TierHighPriority
	case !secondBoatArrival.IsZero() && stockoutDate.Before(secondBoatArrival):
		tier = TierConsider
	default:
		tier = TierWellCovered
	}

	return Stockout{
		ProductID:      productID,
		DaysToStockout: daysToStockout.Round(4),
		HasData:        true,
		Tier:           tier,
	}
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// AllocationTarget is the per-SKU base + safety-stock coverage target.
type AllocationTarget struct {
	ProductID   string
	Target      decimal.Decimal
	ScaleFactor decimal.Decimal // 1.0 unless scaled down to fit warehouse capacity
}

// ComputeAllocationTargets computes target = v*lead + stddev*Z*sqrt(lead)
// per product, then scales every target down by the same factor if their
// sum exceeds warehouse capacity (spec §4.9).
func ComputeAllocationTargets(velocities map[string]decimal.Decimal, stddevs map[string]decimal.Decimal, leadTimeDays int, warehouseCapacityPallets decimal.Decimal, m2PerPallet decimal.Decimal) map[string]AllocationTarget {
	lead := decimal.NewFromInt(int64(leadTimeDays))
	sqrtLead := decimal.NewFromFloat(math.Sqrt(float64(leadTimeDays)))

	targets := make(map[string]decimal.Decimal, len(velocities))
	sum := decimal.Zero
	for productID, v := range velocities {
		stddev := stddevs[productID]
		target := v.Mul(lead).Add(stddev.Mul(db.SafetyStockZScore).Mul(sqrtLead))
		targets[productID] = target
		sum = sum.Add(target)
	}

	capacityM2 := warehouseCapacityPallets.Mul(m2PerPallet)
	scale := decimal.NewFromInt(1)
	if sum.GreaterThan(capacityM2) && !sum.IsZero() {
		scale = capacityM2.Div(sum)
	}

	out := make(map[string]AllocationTarget, len(targets))
	for productID, target := range targets {
		out[productID] = AllocationTarget{
			ProductID:   productID,
			Target:      target.Mul(scale).Round(4),
			ScaleFactor: scale.Round(4),
		}
	}
	return out
}

// overdueMultiplier maps days_overdue to the fixed-point weighting from
// spec §4.9.
func overdueMultiplier(daysOverdue decimal.Decimal) decimal.Decimal {
	switch {
	case daysOverdue.LessThanOrEqual(decimal.NewFromInt(14)):
		return decimal.NewFromFloat(1.0)
	case daysOverdue.LessThanOrEqual(decimal.NewFromInt(30)):
		return decimal.NewFromFloat(1.5)
	case daysOverdue.LessThanOrEqual(decimal.NewFromInt(60)):
		return decimal.NewFromFloat(2.0)
	default:
		return decimal.NewFromFloat(2.5)
	}
}

// CustomerDemandScore sums tier_weight * overdue_multiplier across every
// customer pattern for one product (spec §4.9).
func CustomerDemandScore(patterns []db.CustomerPattern, today time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range patterns {
		dueDate := p.LastOrderDate.AddDate(0, 0, int(mustFloat(p.AvgGapDays)))
		daysOverdue := decimal.NewFromInt(int64(today.Sub(dueDate).Hours() / 24))
		if daysOverdue.IsNegative() {
			continue
		}
		total = total.Add(p.Tier.Weight().Mul(overdueMultiplier(daysOverdue)))
	}
	return total
}

type revenueEntry struct {
	name    string
	revenue decimal.Decimal
}

// AssignCustomerTiers buckets customers by cumulative revenue share into
// A (top 20%), B (next 30%), C (rest) (spec §4.9). revenueByCustomer maps
// customer name to total revenue; returns the same keys mapped to tier.
func AssignCustomerTiers(revenueByCustomer map[string]decimal.Decimal) map[string]db.CustomerTier {
	entries := make([]revenueEntry, 0, len(revenueByCustomer))
	total := decimal.Zero
	for name, rev := range revenueByCustomer {
		entries = append(entries, revenueEntry{name, rev})
		total = total.Add(rev)
	}
	sortByRevenueDesc(entries)

	tiers := make(map[string]db.CustomerTier, len(entries))
	if total.IsZero() {
		for _, e := range entries {
			tiers[e.name] = db.CustomerTierC
		}
		return tiers
	}

	cumulative := decimal.Zero
	twentyPct := decimal.NewFromFloat(0.20)
	fiftyPct := decimal.NewFromFloat(0.50)
	for _, e := range entries {
		cumulative = cumulative.Add(e.revenue)
		share := cumulative.Div(total)
		switch {
		case share.LessThanOrEqual(twentyPct):
			tiers[e.name] = db.CustomerTierA
		case share.LessThanOrEqual(fiftyPct):
			tiers[e.name] = db.CustomerTierB
		default:
			tiers[e.name] = db.CustomerTierC
		}
	}
	return tiers
}

func sortByRevenueDesc(entries []revenueEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].revenue.GreaterThan(entries[j-1].revenue); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

package orderbuilder

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/velocity"
)

// LiquidationReason is the closed enum for why a SKU is flagged as a
// liquidation candidate (spec §4.7.5).
type LiquidationReason string

const (
	ReasonDecliningOverstocked LiquidationReason = "declining_overstocked"
	ReasonNoSales              LiquidationReason = "no_sales"
	ReasonExtremeOverstock     LiquidationReason = "extreme_overstock"
)

// LiquidationCandidate is one overstocked SKU identified when a plan's
// constraints force deferral.
type LiquidationCandidate struct {
	ProductID      string
	SKU            string
	Pallets        int
	DaysOfStock    decimal.Decimal
	HasDaysOfStock bool
	ChangePct      decimal.Decimal
	Reason         LiquidationReason
}

// LiquidationInput is one product's stock/trend state evaluated for
// liquidation.
type LiquidationInput struct {
	ProductID   string
	SKU         string
	Pallets     int
	DaysOfStock decimal.Decimal
	HasData     bool
	Trend       velocity.Direction
	ChangePct   decimal.Decimal
}

// FindLiquidationCandidates flags SKUs whose removal would free space,
// sorted by pallets desc then trend asc (spec §4.7.5).
func FindLiquidationCandidates(inputs []LiquidationInput, minDecliningDaysOfStock, extremeOverstockDays decimal.Decimal) []LiquidationCandidate {
	var out []LiquidationCandidate

	for _, in := range inputs {
		switch {
		case !in.HasData || in.DaysOfStock.GreaterThanOrEqual(decimal.NewFromInt(365)):
			out = append(out, LiquidationCandidate{
				ProductID: in.ProductID, SKU: in.SKU, Pallets: in.Pallets,
				DaysOfStock: in.DaysOfStock, HasDaysOfStock: in.HasData,
				ChangePct: in.ChangePct, Reason: ReasonNoSales,
			})
		case in.HasData && in.DaysOfStock.GreaterThanOrEqual(extremeOverstockDays):
			out = append(out, LiquidationCandidate{
				ProductID: in.ProductID, SKU: in.SKU, Pallets: in.Pallets,
				DaysOfStock: in.DaysOfStock, HasDaysOfStock: true,
				ChangePct: in.ChangePct, Reason: ReasonExtremeOverstock,
			})
		case in.Trend == velocity.DirectionDown && in.ChangePct.LessThanOrEqual(decimal.NewFromInt(-20)) &&
			in.HasData && in.DaysOfStock.GreaterThanOrEqual(minDecliningDaysOfStock):
			out = append(out, LiquidationCandidate{
				ProductID: in.ProductID, SKU: in.SKU, Pallets: in.Pallets,
				DaysOfStock: in.DaysOfStock, HasDaysOfStock: true,
				ChangePct: in.ChangePct, Reason: ReasonDecliningOverstocked,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pallets != out[j].Pallets {
			return out[i].Pallets > out[j].Pallets
		}
		return out[i].ChangePct.LessThan(out[j].ChangePct)
	})

	return out
}

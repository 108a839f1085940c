package orderbuilder

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/velocity"
)

func TestFindLiquidationCandidates_NoSalesData(t *testing.T) {
	inputs := []LiquidationInput{
		{ProductID: "p1", SKU: "SKU-1", Pallets: 10, HasData: false},
	}
	out := FindLiquidationCandidates(inputs, decimal.NewFromInt(90), decimal.NewFromInt(180))
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Reason != ReasonNoSales {
		t.Errorf("Reason = %v, want no_sales", out[0].Reason)
	}
}

func TestFindLiquidationCandidates_ExtremeOverstock(t *testing.T) {
	inputs := []LiquidationInput{
		{ProductID: "p1", SKU: "SKU-1", Pallets: 20, HasData: true, DaysOfStock: decimal.NewFromInt(200)},
	}
	out := FindLiquidationCandidates(inputs, decimal.NewFromInt(90), decimal.NewFromInt(180))
	if len(out) != 1 || out[0].Reason != ReasonExtremeOverstock {
		t.Fatalf("out = %+v, want one extreme_overstock candidate", out)
	}
}

func TestFindLiquidationCandidates_DecliningOverstocked(t *testing.T) {
	inputs := []LiquidationInput{
		{
			ProductID: "p1", SKU: "SKU-1", Pallets: 15, HasData: true,
			DaysOfStock: decimal.NewFromInt(100), Trend: velocity.DirectionDown, ChangePct: decimal.NewFromInt(-25),
		},
	}
	out := FindLiquidationCandidates(inputs, decimal.NewFromInt(90), decimal.NewFromInt(180))
	if len(out) != 1 || out[0].Reason != ReasonDecliningOverstocked {
		t.Fatalf("out = %+v, want one declining_overstocked candidate", out)
	}
}

func TestFindLiquidationCandidates_HealthyProductNotFlagged(t *testing.T) {
	inputs := []LiquidationInput{
		{
			ProductID: "p1", SKU: "SKU-1", Pallets: 5, HasData: true,
			DaysOfStock: decimal.NewFromInt(20), Trend: velocity.DirectionUp, ChangePct: decimal.NewFromInt(10),
		},
	}
	out := FindLiquidationCandidates(inputs, decimal.NewFromInt(90), decimal.NewFromInt(180))
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0 for a healthy growing product", len(out))
	}
}

func TestFindLiquidationCandidates_SortedByPalletsDesc(t *testing.T) {
	inputs := []LiquidationInput{
		{ProductID: "small", SKU: "s", Pallets: 10, HasData: false},
		{ProductID: "big", SKU: "b", Pallets: 50, HasData: false},
	}
	out := FindLiquidationCandidates(inputs, decimal.NewFromInt(90), decimal.NewFromInt(180))
	if len(out) != 2 || out[0].ProductID != "big" {
		t.Fatalf("out = %+v, want big (more pallets) first", out)
	}
}

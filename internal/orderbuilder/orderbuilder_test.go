package orderbuilder

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
	"github.com/pinggolf/tile-supply-planner/internal/recommend"
)

// testToday/testBoats give factoryRequestLine a production-ready target
// boat to select: today is a Sunday, next Monday + 7-day avg production
// lands inside the window before testBoats[1]'s departure.
var testToday = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
var testBoats = []db.Boat{
	{ID: "b1", DepartureDate: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), ArrivalDate: time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)},
	{ID: "b2", DepartureDate: time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC), ArrivalDate: time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC)},
}

func TestBuild_SiesaProductGoesToShipNow(t *testing.T) {
	candidates := []CandidateProduct{
		{ProductID: "p1", SKU: "SKU-1", Siesa: decimal.NewFromInt(1000), Velocity: decimal.NewFromInt(10)},
	}
	plan := Build(candidates, 2, nil, testToday, 7, testBoats)
	if len(plan.ShipNow) != 1 {
		t.Fatalf("len(ShipNow) = %d, want 1", len(plan.ShipNow))
	}
	if plan.ShipNow[0].ProductID != "p1" {
		t.Errorf("ShipNow[0].ProductID = %q, want p1", plan.ShipNow[0].ProductID)
	}
}

func TestBuild_ExcludedSKUIsSkipped(t *testing.T) {
	candidates := []CandidateProduct{
		{ProductID: "p1", SKU: "SKU-1", Siesa: decimal.NewFromInt(1000)},
	}
	plan := Build(candidates, 2, map[string]bool{"SKU-1": true}, testToday, 7, testBoats)
	if len(plan.ShipNow) != 0 {
		t.Errorf("len(ShipNow) = %d, want 0 for an excluded SKU", len(plan.ShipNow))
	}
}

func TestBuild_AddToProductionWhenRowCanGrow(t *testing.T) {
	row := &db.ProductionScheduleRow{ID: "row1", Status: db.ProductionScheduled, RequestedM2: decimal.NewFromInt(500)}
	candidates := []CandidateProduct{
		{ProductID: "p1", SKU: "SKU-1", Siesa: decimal.Zero, LatestRow: row, SuggestedM2: decimal.NewFromInt(900)},
	}
	plan := Build(candidates, 2, nil, testToday, 7, testBoats)
	if len(plan.AddToProduction) != 1 {
		t.Fatalf("len(AddToProduction) = %d, want 1", len(plan.AddToProduction))
	}
	want := decimal.NewFromInt(400)
	if !plan.AddToProduction[0].AdditionalM2.Equal(want) {
		t.Errorf("AdditionalM2 = %v, want %v", plan.AddToProduction[0].AdditionalM2, want)
	}
}

func TestBuild_FactoryRequestAppliesContainerMinimum(t *testing.T) {
	candidates := []CandidateProduct{
		{
			ProductID: "p1", SKU: "SKU-1",
			Warehouse: decimal.NewFromInt(100), InTransit: decimal.Zero,
			Velocity: decimal.NewFromInt(50), // projected deeply negative -> needs restock
		},
	}
	plan := Build(candidates, 2, nil, testToday, 7, testBoats)
	if len(plan.FactoryRequest) != 1 {
		t.Fatalf("len(FactoryRequest) = %d, want 1", len(plan.FactoryRequest))
	}
	line := plan.FactoryRequest[0]
	if line.Containers < 1 {
		t.Errorf("Containers = %d, want at least 1", line.Containers)
	}
}

func TestBuild_FactoryRequestSkippedWithNoTargetBoat(t *testing.T) {
	candidates := []CandidateProduct{
		{ProductID: "p1", SKU: "SKU-1", Warehouse: decimal.NewFromInt(100), Velocity: decimal.NewFromInt(50)},
	}
	plan := Build(candidates, 2, nil, testToday, 7, nil)
	if len(plan.FactoryRequest) != 0 {
		t.Errorf("len(FactoryRequest) = %d, want 0 when no boat departs after production-ready", len(plan.FactoryRequest))
	}
}

func TestBuild_ShipNowCappedAtBLCapacity(t *testing.T) {
	candidates := []CandidateProduct{
		{ProductID: "p1", SKU: "SKU-1", Siesa: decimal.NewFromInt(1_000_000), Velocity: decimal.NewFromInt(100)},
	}
	plan := Build(candidates, 1, nil, testToday, 7, testBoats)
	capacityM2 := db.BLCapacityPallets(1).Mul(db.M2PerPallet)
	var totalM2 decimal.Decimal
	for _, l := range plan.ShipNow {
		totalM2 = totalM2.Add(l.M2)
	}
	if totalM2.GreaterThan(capacityM2) {
		t.Errorf("shipped M2 %v exceeds BL capacity %v", totalM2, capacityM2)
	}
}

// TestBuild_ScenarioE4_ContainerMinimumWithLowVolumeSkip reproduces spec
// §8.3 scenario E4: a slow-moving SKU with no supply is flagged low-volume
// and skipped, while a faster one gets rounded up to exactly one
// container.
func TestBuild_ScenarioE4_ContainerMinimumWithLowVolumeSkip(t *testing.T) {
	candidates := []CandidateProduct{
		{ProductID: "slow", SKU: "P-SLOW", Velocity: decimal.NewFromInt(1)},
		{ProductID: "fast", SKU: "P-FAST", Velocity: decimal.NewFromInt(20)},
	}
	plan := Build(candidates, 2, nil, testToday, 7, testBoats)
	if len(plan.FactoryRequest) != 2 {
		t.Fatalf("len(FactoryRequest) = %d, want 2", len(plan.FactoryRequest))
	}

	byID := map[string]FactoryRequestLine{}
	for _, l := range plan.FactoryRequest {
		byID[l.ProductID] = l
	}

	slow := byID["slow"]
	if !slow.IsLowVolume {
		t.Error("slow product IsLowVolume = false, want true (1881.6 m2 / 1 m2/day > 365 days)")
	}
	if slow.Containers != 0 || !slow.M2.IsZero() {
		t.Errorf("slow product should not be requested: Containers=%d M2=%v", slow.Containers, slow.M2)
	}

	fast := byID["fast"]
	if fast.IsLowVolume {
		t.Error("fast product IsLowVolume = true, want false")
	}
	if !fast.MinimumApplied || fast.Containers != 1 {
		t.Errorf("fast product MinimumApplied=%v Containers=%d, want true/1", fast.MinimumApplied, fast.Containers)
	}
	want := decimal.NewFromInt(14).Mul(db.M2PerPallet)
	if !fast.M2.Equal(want) {
		t.Errorf("fast product M2 = %v, want %v (one container)", fast.M2, want)
	}
}

// TestAllocateBLs_ScenarioE5_ThreeCriticalOverTwoBLs reproduces spec
// §8.3 scenario E5: three critical products spread round-robin across
// two BLs leaves one BL with 2 and the other with 1, which is still
// within the ceil(total*0.4) risk-even threshold.
func TestAllocateBLs_ScenarioE5_ThreeCriticalOverTwoBLs(t *testing.T) {
	lines := []ShipNowLine{
		{ProductID: "c1", SKU: "C1", Pallets: 14, Score: 95},
		{ProductID: "c2", SKU: "C2", Pallets: 14, Score: 90},
		{ProductID: "c3", SKU: "C3", Pallets: 14, Score: 88},
	}
	bls, warnings := allocateBLs(lines, nil, 2)
	if len(bls) != 2 {
		t.Fatalf("len(bls) = %d, want 2", len(bls))
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none (no BL exceeds capacity)", warnings)
	}
	if bls[0].CriticalCount != 2 || bls[1].CriticalCount != 1 {
		t.Errorf("critical counts = %d, %d, want 2, 1 (round-robin: BL1 gets C1,C3; BL2 gets C2)", bls[0].CriticalCount, bls[1].CriticalCount)
	}
	if bls[0].Pallets != 28 || bls[0].Containers != 2 {
		t.Errorf("BL1 pallets=%d containers=%d, want 28/2", bls[0].Pallets, bls[0].Containers)
	}
	if bls[1].Pallets != 14 || bls[1].Containers != 1 {
		t.Errorf("BL2 pallets=%d containers=%d, want 14/1", bls[1].Pallets, bls[1].Containers)
	}
	if !isRiskEven(bls) {
		t.Error("isRiskEven = false, want true (max critical 2 <= ceil(3*0.4)=2)")
	}
}

func TestNextMonday_StrictlyAfterToday(t *testing.T) {
	got := nextMonday(testToday) // Sunday 2026-03-01
	want := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextMonday(%v) = %v, want %v", testToday, got, want)
	}
}

func TestScore_StockoutAndDemandContribute(t *testing.T) {
	urgent := CandidateProduct{
		Stockout:    recommend.Stockout{HasData: true, DaysToStockout: decimal.NewFromInt(3)},
		DemandScore: decimal.NewFromInt(250),
	}
	idle := CandidateProduct{
		Stockout:    recommend.Stockout{HasData: true, DaysToStockout: decimal.NewFromInt(90)},
		DemandScore: decimal.Zero,
	}
	if score(urgent) <= score(idle) {
		t.Errorf("score(urgent)=%d should exceed score(idle)=%d", score(urgent), score(idle))
	}
}

func TestAllocateBLs_SpreadsCriticalLinesRoundRobin(t *testing.T) {
	lines := []ShipNowLine{
		{ProductID: "p1", SKU: "s1", Pallets: 5, Score: 90},
		{ProductID: "p2", SKU: "s2", Pallets: 5, Score: 90},
		{ProductID: "p3", SKU: "s3", Pallets: 5, Score: 90},
		{ProductID: "p4", SKU: "s4", Pallets: 5, Score: 90},
	}
	bls, _ := allocateBLs(lines, nil, 2)
	if len(bls) != 2 {
		t.Fatalf("len(bls) = %d, want 2", len(bls))
	}
	if bls[0].CriticalCount != 2 || bls[1].CriticalCount != 2 {
		t.Errorf("critical counts = %d, %d, want 2 each (round-robin across 2 BLs)", bls[0].CriticalCount, bls[1].CriticalCount)
	}
}

// TestAllocateBLs_MigratesCriticalLineWithWarningWhenNoNonCriticalLeft
// covers spec §4.7.4.5's fallback: when a BL exceeds MaxContainersPerBL
// and every line on it is critical, a critical line is migrated anyway
// and a warning is emitted (§8.1 invariant 5).
func TestAllocateBLs_MigratesCriticalLineWithWarningWhenNoNonCriticalLeft(t *testing.T) {
	lines := []ShipNowLine{
		{ProductID: "c1", SKU: "C1", Pallets: 65, Score: 95},
		{ProductID: "c2", SKU: "C2", Pallets: 40, Score: 90},
		{ProductID: "c3", SKU: "C3", Pallets: 10, Score: 88},
	}
	bls, warnings := allocateBLs(lines, nil, 2)

	if len(warnings) != 1 {
		t.Fatalf("len(warnings) = %d, want 1; warnings=%v", len(warnings), warnings)
	}

	for _, bl := range bls {
		if bl.Containers > 5 {
			t.Errorf("BL %d Containers = %d, want <= 5 after rebalance", bl.Index, bl.Containers)
		}
	}
}

func TestIsRiskEven(t *testing.T) {
	even := []BL{{CriticalCount: 2}, {CriticalCount: 2}}
	if !isRiskEven(even) {
		t.Error("isRiskEven(even) = false, want true")
	}
	uneven := []BL{{CriticalCount: 10}, {CriticalCount: 0}}
	if isRiskEven(uneven) {
		t.Error("isRiskEven(uneven) = true, want false when one BL holds all critical lines")
	}
}

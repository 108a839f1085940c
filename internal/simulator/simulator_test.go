package simulator

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

func testFactory() db.Factory {
	return db.Factory{
		ID:                  "f1",
		ProductionLeadDays:  20,
		TransportToPortDays: 5,
		UnitType:            db.UnitTypeM2,
	}
}

func TestRun_EmptyBoatsReturnsEmpty(t *testing.T) {
	out := Run(Input{Factory: testFactory(), Today: mustDate("2026-03-01")})
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
}

func TestRun_LowStockYieldsCriticalUrgency(t *testing.T) {
	today := mustDate("2026-03-01")
	boat := db.Boat{ID: "b1", DepartureDate: mustDate("2026-03-10"), ArrivalDate: mustDate("2026-04-05")}

	in := Input{
		Factory: testFactory(),
		Boats:   []db.Boat{boat},
		Products: []ProductInput{
			{
				ProductID:     "p1",
				SKU:           "SKU-1",
				Warehouse0:    decimal.NewFromInt(50),
				Velocity:      decimal.NewFromInt(100), // burns through fast
				PalletDivisor: db.M2PerPallet,
			},
		},
		Today: today,
	}

	out := Run(in)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	details := out[0].ProductDetails
	if len(details) != 1 {
		t.Fatalf("len(details) = %d, want 1", len(details))
	}
	if details[0].Urgency != db.UrgencyCritical {
		t.Errorf("Urgency = %v, want critical (days_of_stock=%v)", details[0].Urgency, details[0].DaysOfStockAtArrival)
	}
}

func TestRun_NoVelocityIsAlwaysOK(t *testing.T) {
	today := mustDate("2026-03-01")
	boat := db.Boat{ID: "b1", DepartureDate: mustDate("2026-03-10"), ArrivalDate: mustDate("2026-04-05")}

	in := Input{
		Factory: testFactory(),
		Boats:   []db.Boat{boat},
		Products: []ProductInput{
			{ProductID: "p1", SKU: "SKU-1", Warehouse0: decimal.Zero, Velocity: decimal.Zero, PalletDivisor: db.M2PerPallet},
		},
		Today: today,
	}

	out := Run(in)
	d := out[0].ProductDetails[0]
	if d.HasVelocity {
		t.Error("HasVelocity = true, want false")
	}
	if d.Urgency != db.UrgencyOK {
		t.Errorf("Urgency = %v, want ok when there is no velocity signal", d.Urgency)
	}
}

func TestRun_CommittedDraftItemIsNotRecomputed(t *testing.T) {
	today := mustDate("2026-03-01")
	boat := db.Boat{ID: "b1", DepartureDate: mustDate("2026-03-10"), ArrivalDate: mustDate("2026-04-05")}

	in := Input{
		Factory: testFactory(),
		Boats:   []db.Boat{boat},
		Products: []ProductInput{
			{ProductID: "p1", SKU: "SKU-1", Warehouse0: decimal.NewFromInt(1000), Velocity: decimal.NewFromInt(10), PalletDivisor: db.M2PerPallet},
		},
		DraftItems: []DraftItemInput{
			{BoatID: "b1", ProductID: "p1", SelectedPallets: 7, Committed: true},
		},
		Today: today,
	}

	out := Run(in)
	d := out[0].ProductDetails[0]
	if !d.IsCommitted {
		t.Error("IsCommitted = false, want true for an ordered/confirmed draft item")
	}
	if d.SuggestedPallets != 7 {
		t.Errorf("SuggestedPallets = %d, want 7 (the committed draft quantity)", d.SuggestedPallets)
	}
}

func TestRun_MultiBoatCarriesStockForward(t *testing.T) {
	today := mustDate("2026-03-01")
	boats := []db.Boat{
		{ID: "b1", DepartureDate: mustDate("2026-03-10"), ArrivalDate: mustDate("2026-04-05")},
		{ID: "b2", DepartureDate: mustDate("2026-04-20"), ArrivalDate: mustDate("2026-05-15")},
	}
	in := Input{
		Factory: testFactory(),
		Boats:   boats,
		Products: []ProductInput{
			{ProductID: "p1", SKU: "SKU-1", Warehouse0: decimal.NewFromInt(100000), Velocity: decimal.NewFromInt(50), PalletDivisor: db.M2PerPallet},
		},
		Today: today,
	}
	out := Run(in)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	// Second boat's effective stock should reflect the first boat's
	// post-fill carry forward, not a reset to Warehouse0.
	if out[1].ProductDetails[0].Effective.Equal(decimal.NewFromInt(100000)) {
		t.Error("second boat's Effective stock equals the initial warehouse balance, want carried-forward state")
	}
}

// TestRun_ScenarioE1_FreshSIESACoversGap reproduces spec §8.3 scenario E1:
// a single boat, one SKU, where fresh SIESA fully covers the coverage gap
// so the suggested order is zero and urgency stays ok.
func TestRun_ScenarioE1_FreshSIESACoversGap(t *testing.T) {
	today := mustDate("2026-03-01")
	factory := db.Factory{ID: "f1", ProductionLeadDays: 5, TransportToPortDays: 2, UnitType: db.UnitTypeM2}
	boat := db.Boat{ID: "b1", DepartureDate: mustDate("2026-03-20"), ArrivalDate: mustDate("2026-04-05")}

	in := Input{
		Factory: factory,
		Boats:   []db.Boat{boat},
		Products: []ProductInput{
			{
				ProductID:           "p1",
				SKU:                 "P1",
				Warehouse0:          decimal.NewFromInt(500),
				Siesa0:              decimal.NewFromInt(3000),
				Velocity:            decimal.NewFromInt(10),
				PalletDivisor:       db.M2PerPallet,
				TransportToPortDays: factory.TransportToPortDays,
			},
		},
		Today: today,
	}

	out := Run(in)
	d := out[0].ProductDetails[0]

	if !d.Effective.Equal(decimal.NewFromInt(3500)) {
		t.Errorf("Effective = %v, want 3500", d.Effective)
	}
	if !d.Projected.Equal(decimal.NewFromInt(3120)) {
		t.Errorf("Projected = %v, want 3120", d.Projected)
	}
	if d.Urgency != db.UrgencyOK {
		t.Errorf("Urgency = %v, want ok", d.Urgency)
	}
	if d.SuggestedPallets != 0 {
		t.Errorf("SuggestedPallets = %d, want 0", d.SuggestedPallets)
	}
}

// TestRun_ScenarioE2_SIESAFlowsToFirstBoatThenDepletes reproduces spec
// §8.3 scenario E2: SIESA is one-time supply consumed by the first
// eligible boat, and the second boat's coverage gap goes critical.
func TestRun_ScenarioE2_SIESAFlowsToFirstBoatThenDepletes(t *testing.T) {
	today := mustDate("2026-03-01")
	factory := db.Factory{ID: "f1", ProductionLeadDays: 5, TransportToPortDays: 2, UnitType: db.UnitTypeM2}
	boats := []db.Boat{
		{ID: "b1", DepartureDate: mustDate("2026-03-20"), ArrivalDate: mustDate("2026-04-05")},
		{ID: "b2", DepartureDate: mustDate("2026-04-20"), ArrivalDate: mustDate("2026-05-10")},
	}

	in := Input{
		Factory: factory,
		Boats:   boats,
		Products: []ProductInput{
			{
				ProductID:           "p1",
				SKU:                 "P1",
				Warehouse0:          decimal.NewFromInt(100),
				Siesa0:              decimal.NewFromInt(1000),
				Velocity:            decimal.NewFromInt(10),
				PalletDivisor:       db.M2PerPallet,
				TransportToPortDays: factory.TransportToPortDays,
			},
		},
		Today: today,
	}

	out := Run(in)
	b1 := out[0].ProductDetails[0]
	if !b1.Projected.Equal(decimal.NewFromInt(720)) {
		t.Errorf("b1 Projected = %v, want 720", b1.Projected)
	}
	if b1.SuggestedPallets != 0 {
		t.Errorf("b1 SuggestedPallets = %d, want 0", b1.SuggestedPallets)
	}

	b2 := out[1].ProductDetails[0]
	if !b2.Projected.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("b2 Projected = %v, want -10", b2.Projected)
	}
	if b2.Urgency != db.UrgencyCritical {
		t.Errorf("b2 Urgency = %v, want critical", b2.Urgency)
	}
	if b2.SuggestedPallets != 8 {
		t.Errorf("b2 SuggestedPallets = %d, want 8", b2.SuggestedPallets)
	}
}

// TestRun_ScenarioE3_CommittedDraftLocksQuantityAndCascades reproduces
// spec §8.3 scenario E3: a confirmed draft on the first boat forces its
// suggested quantity, and the fill cascades into the second boat's
// baseline stock.
func TestRun_ScenarioE3_CommittedDraftLocksQuantityAndCascades(t *testing.T) {
	today := mustDate("2026-03-01")
	factory := db.Factory{ID: "f1", ProductionLeadDays: 5, TransportToPortDays: 2, UnitType: db.UnitTypeM2}
	boats := []db.Boat{
		{ID: "b1", DepartureDate: mustDate("2026-03-20"), ArrivalDate: mustDate("2026-04-05")},
		{ID: "b2", DepartureDate: mustDate("2026-04-20"), ArrivalDate: mustDate("2026-05-10")},
	}

	in := Input{
		Factory: factory,
		Boats:   boats,
		Products: []ProductInput{
			{
				ProductID:           "p1",
				SKU:                 "P1",
				Warehouse0:          decimal.NewFromInt(100),
				Siesa0:              decimal.NewFromInt(1000),
				Velocity:            decimal.NewFromInt(10),
				PalletDivisor:       db.M2PerPallet,
				TransportToPortDays: factory.TransportToPortDays,
			},
		},
		DraftItems: []DraftItemInput{
			{BoatID: "b1", ProductID: "p1", SelectedPallets: 5, Committed: true},
		},
		Today: today,
	}

	out := Run(in)
	b1 := out[0].ProductDetails[0]
	if !b1.IsCommitted || b1.SuggestedPallets != 5 {
		t.Fatalf("b1 IsCommitted=%v SuggestedPallets=%d, want true/5", b1.IsCommitted, b1.SuggestedPallets)
	}

	b2 := out[1].ProductDetails[0]
	wantProjected := decimal.NewFromInt(720).Add(decimal.NewFromInt(5).Mul(db.M2PerPallet)).Sub(decimal.NewFromInt(10 * 73))
	if !b2.Projected.Equal(wantProjected) {
		t.Errorf("b2 Projected = %v, want %v", b2.Projected, wantProjected)
	}
	if b2.Urgency != db.UrgencyOK {
		t.Errorf("b2 Urgency = %v, want ok", b2.Urgency)
	}
	if b2.SuggestedPallets != 3 {
		t.Errorf("b2 SuggestedPallets = %d, want 3", b2.SuggestedPallets)
	}
}

func TestConfidenceBand(t *testing.T) {
	today := mustDate("2026-03-01")
	cases := []struct {
		days int
		want string
	}{
		{10, "very_high"},
		{25, "high"},
		{50, "medium"},
		{80, "low"},
		{120, "very_low"},
	}
	for _, c := range cases {
		band := confidenceBand(today.AddDate(0, 0, c.days), today)
		if band.Label != c.want {
			t.Errorf("confidenceBand(+%dd) = %v, want %v", c.days, band.Label, c.want)
		}
	}
}

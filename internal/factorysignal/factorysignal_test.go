package factorysignal

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
	}
}

func TestCompute_OnTrackWhenNoParticipant(t *testing.T) {
	today := mustDate("2026-03-01")
	products := []ProductSignalInput{
		{ProductID: "p1", Siesa: decimal.NewFromInt(100000), Velocity: decimal.NewFromInt(10)},
	}
	res := Compute(products, testFactory(), nil, today)
	if res.HasParticipant {
		t.Errorf("HasParticipant = true, want false when gap never exceeds the minimum threshold")
	}
	if res.Signal != SignalOnTrack {
		t.Errorf("Signal = %v, want on_track", res.Signal)
	}
}

func TestCompute_SkipsZeroVelocityProducts(t *testing.T) {
	today := mustDate("2026-03-01")
	products := []ProductSignalInput{
		{ProductID: "p1", Siesa: decimal.Zero, Velocity: decimal.Zero},
	}
	res := Compute(products, testFactory(), nil, today)
	if res.HasParticipant {
		t.Errorf("HasParticipant = true, want false when velocity is zero (infinite coverage)")
	}
}

func TestCompute_OrderTodayWhenNoActiveRowButBoatAvailable(t *testing.T) {
	today := mustDate("2026-03-01")
	products := []ProductSignalInput{
		{ProductID: "p1", Siesa: decimal.Zero, Velocity: decimal.NewFromInt(500)},
	}
	boats := []db.Boat{
		{ID: "b1", DepartureDate: mustDate("2026-06-01")},
	}
	res := Compute(products, testFactory(), boats, today)
	if !res.HasParticipant {
		t.Fatal("HasParticipant = false, want true")
	}
	if res.Signal != SignalOrderToday {
		t.Errorf("Signal = %v, want order_today", res.Signal)
	}
	if res.LimitingProduct != "p1" {
		t.Errorf("LimitingProduct = %q, want p1", res.LimitingProduct)
	}
}

func TestCompute_NoProductionWhenNoBoatAvailable(t *testing.T) {
	today := mustDate("2026-03-01")
	products := []ProductSignalInput{
		{ProductID: "p1", Siesa: decimal.Zero, Velocity: decimal.NewFromInt(500)},
	}
	res := Compute(products, testFactory(), nil, today)
	if res.Signal != SignalNoProduction {
		t.Errorf("Signal = %v, want no_production", res.Signal)
	}
}

// TestCompute_ProductionDelayedWhenRowMissesTargetBoat grounds in spec
// §8.3 scenario E6's production_delayed branch: an overdue order_by with
// an active production row whose delivery cannot reach the target boat
// before its departure.
func TestCompute_ProductionDelayedWhenRowMissesTargetBoat(t *testing.T) {
	today := mustDate("2026-04-10")
	factory := db.Factory{ID: "f1", ProductionLeadDays: 10, TransportToPortDays: 5}
	row := &db.ProductionScheduleRow{ID: "row1", Status: db.ProductionScheduled, EstimatedDeliveryDate: mustDate("2026-05-15")}
	products := []ProductSignalInput{
		{ProductID: "p1", Siesa: decimal.NewFromInt(50), Velocity: decimal.NewFromInt(50), ActiveRow: row},
	}
	boats := []db.Boat{
		{ID: "b1", DepartureDate: mustDate("2026-04-30")},
	}

	res := Compute(products, factory, boats, today)
	if !res.HasParticipant {
		t.Fatal("HasParticipant = false, want true")
	}
	if res.Signal != SignalProductionDelayed {
		t.Errorf("Signal = %v, want production_delayed (row delivers %v, too late for target boat departing %v)",
			res.Signal, row.EstimatedDeliveryDate.AddDate(0, 0, factory.TransportToPortDays), boats[0].DepartureDate)
	}
}

func TestCompute_PicksEarliestOrderByAcrossProducts(t *testing.T) {
	today := mustDate("2026-03-01")
	products := []ProductSignalInput{
		{ProductID: "slow-runner", Siesa: decimal.NewFromInt(100000), Velocity: decimal.NewFromInt(10)},
		{ProductID: "fast-runner", Siesa: decimal.Zero, Velocity: decimal.NewFromInt(2000)},
	}
	res := Compute(products, testFactory(), nil, today)
	if res.LimitingProduct != "fast-runner" {
		t.Errorf("LimitingProduct = %q, want fast-runner (runs out soonest)", res.LimitingProduct)
	}
}

package deadline

import (
	"testing"
	"time"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testFactory(unitType db.UnitType) db.Factory {
	return db.Factory{
		ID:                  "f1",
		ProductionLeadDays:  45,
		TransportToPortDays: 5,
		CutoffDay:           time.Wednesday,
		UnitType:            unitType,
	}
}

func TestCompute_SiesaOnlyForM2Factories(t *testing.T) {
	departure := mustDate("2026-04-01")
	arrival := mustDate("2026-04-20")
	today := mustDate("2026-02-01")

	m2 := Compute(testFactory(db.UnitTypeM2), departure, arrival, today, false)
	if m2.SiesaOrderDate == nil {
		t.Fatal("SiesaOrderDate = nil, want set for an m2 factory")
	}

	units := Compute(testFactory(db.UnitTypeUnits), departure, arrival, today, false)
	if units.SiesaOrderDate != nil {
		t.Errorf("SiesaOrderDate = %v, want nil for a units factory", *units.SiesaOrderDate)
	}
}

func TestCompute_PiggybackCutoffOnlyWhenBeforeDeparture(t *testing.T) {
	departure := mustDate("2026-04-01")
	arrival := mustDate("2026-04-20")
	today := mustDate("2026-02-01")

	withSchedule := Compute(testFactory(db.UnitTypeM2), departure, arrival, today, true)
	if withSchedule.PiggybackCutoff == nil {
		t.Fatal("PiggybackCutoff = nil, want set when has_scheduled_production and next cutoff precedes departure")
	}

	withoutSchedule := Compute(testFactory(db.UnitTypeM2), departure, arrival, today, false)
	if withoutSchedule.PiggybackCutoff != nil {
		t.Errorf("PiggybackCutoff = %v, want nil when has_scheduled_production is false", *withoutSchedule.PiggybackCutoff)
	}
}

func TestCompute_MilestonesOrderedAndDated(t *testing.T) {
	departure := mustDate("2026-04-01")
	arrival := mustDate("2026-04-20")
	today := mustDate("2026-02-01")

	tl := Compute(testFactory(db.UnitTypeM2), departure, arrival, today, false)
	if !tl.InWarehouseDate.Equal(arrival.AddDate(0, 0, db.WarehouseBufferDays)) {
		t.Errorf("InWarehouseDate = %v, want arrival + %d days", tl.InWarehouseDate, db.WarehouseBufferDays)
	}
	for i := 1; i < len(tl.Milestones); i++ {
		if tl.Milestones[i].Date.Before(tl.Milestones[i-1].Date) {
			t.Errorf("milestone %d (%s, %v) precedes milestone %d (%s, %v)",
				i, tl.Milestones[i].Key, tl.Milestones[i].Date,
				i-1, tl.Milestones[i-1].Key, tl.Milestones[i-1].Date)
		}
	}
	if tl.CurrentMilestone == nil {
		t.Fatal("CurrentMilestone = nil, want the first unpassed milestone")
	}
	if tl.CurrentMilestone.Passed {
		t.Error("CurrentMilestone.Passed = true, want false for the first upcoming milestone")
	}
}

func TestCompute_AllMilestonesPassed(t *testing.T) {
	departure := mustDate("2026-04-01")
	arrival := mustDate("2026-04-20")
	today := mustDate("2026-06-01") // well past every milestone

	tl := Compute(testFactory(db.UnitTypeM2), departure, arrival, today, false)
	if tl.CurrentMilestone != nil {
		t.Errorf("CurrentMilestone = %+v, want nil once every milestone has passed", *tl.CurrentMilestone)
	}
}

package boatmerge

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

func testRoute() db.ShippingRoute {
	return db.ShippingRoute{
		ID:               "r1",
		OriginPort:       "Castellon",
		DestinationPort:  "Miami",
		DepartureWeekday: time.Monday,
		TransitDays:      25,
		FrequencyWeeks:   2,
		Carrier:          "MSC",
		Active:           true,
	}
}

func TestMerge_SynthesizesPhantomsWhenNoRealBoats(t *testing.T) {
	today := mustDate("2026-03-01") // a Sunday
	merged := Merge(nil, []db.ShippingRoute{testRoute()}, today, 60)
	if len(merged) == 0 {
		t.Fatal("Merge returned no boats, want synthesized phantoms for the active route")
	}
	for _, b := range merged {
		if !b.IsPhantom() {
			t.Errorf("boat %s is not marked phantom", b.ID)
		}
		if b.DepartureDate.Weekday() != time.Monday {
			t.Errorf("phantom %s departs on %v, want Monday", b.ID, b.DepartureDate.Weekday())
		}
	}
}

func TestMerge_SkipsInactiveRoutes(t *testing.T) {
	today := mustDate("2026-03-01")
	route := testRoute()
	route.Active = false
	merged := Merge(nil, []db.ShippingRoute{route}, today, 60)
	if len(merged) != 0 {
		t.Errorf("Merge returned %d boats for an inactive route, want 0", len(merged))
	}
}

func TestMerge_SuppressesPhantomNearRealBoat(t *testing.T) {
	today := mustDate("2026-03-01")
	route := testRoute()

	// A real boat departs on the same Monday the route would have produced
	// a phantom for; it should suppress that one candidate.
	firstMonday := mustDate("2026-03-02")
	real := db.Boat{ID: "real-1", DepartureDate: firstMonday, Status: db.BoatBooked}

	withoutReal := Merge(nil, []db.ShippingRoute{route}, today, 20)
	withReal := Merge([]db.Boat{real}, []db.ShippingRoute{route}, today, 20)

	// withReal swaps one suppressed phantom for the real boat itself, so
	// the total count is unchanged versus withoutReal.
	if len(withReal) != len(withoutReal) {
		t.Errorf("len(withReal) = %d, want %d (one phantom suppressed, one real boat added)", len(withReal), len(withoutReal))
	}
	for _, b := range withReal {
		if b.IsPhantom() && b.DepartureDate.Equal(firstMonday) {
			t.Errorf("phantom %s was not suppressed by the real boat on the same date", b.ID)
		}
	}
}

func TestMerge_DeterministicIDs(t *testing.T) {
	today := mustDate("2026-03-01")
	route := testRoute()
	a := Merge(nil, []db.ShippingRoute{route}, today, 60)
	b := Merge(nil, []db.ShippingRoute{route}, today, 60)
	if len(a) != len(b) {
		t.Fatalf("len(a)=%d len(b)=%d, want equal across repeated calls", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("phantom ID at index %d differs across calls: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestMerge_SortedByDeparture(t *testing.T) {
	today := mustDate("2026-03-01")
	route := testRoute()
	merged := Merge(nil, []db.ShippingRoute{route}, today, 90)
	for i := 1; i < len(merged); i++ {
		if merged[i].DepartureDate.Before(merged[i-1].DepartureDate) {
			t.Errorf("boat at index %d departs before boat at index %d, want sorted ascending", i, i-1)
		}
	}
}

// Package factorysignal computes, per factory, the next date by which a
// production run must start to keep SIESA finished goods ahead of the
// boat schedule, and classifies the resulting signal (spec §4.6).
//
// The registry shape mirrors how detector kinds were organized in the
// inherited codebase: a closed set of named classifiers consulted in
// order, here collapsed to the single signal rule the domain needs.
package factorysignal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// Signal is the closed enum for a factory's production-order urgency.
type Signal string

const (
	SignalOnTrack           Signal = "on_track"
	SignalInProduction      Signal = "in_production"
	SignalProductionDelayed Signal = "production_delayed"
	SignalOrderToday        Signal = "order_today"
	SignalNoProduction      Signal = "no_production"
)

// ProductSignalInput is one active product's state for the factory-order
// computation (spec §4.6).
type ProductSignalInput struct {
	ProductID       string
	CommittedToShip decimal.Decimal
	InProduction    decimal.Decimal
	Siesa           decimal.Decimal
	InTransitBulk   decimal.Decimal
	InTransitDrafts decimal.Decimal // drafts arriving before SIESA runs out
	Velocity        decimal.Decimal
	ActiveRow       *db.ProductionScheduleRow // latest scheduled/in_progress row, if any
}

// Result is the factory-level signal plus the limiting product that set
// the floor.
type Result struct {
	Signal          Signal
	OrderByDate     time.Time
	LimitingProduct string
	HasParticipant  bool
}

// Compute finds the earliest order_by_product across all products whose
// production gap exceeds MinProductionGapM2, classifies the resulting
// signal against the target boat, and returns the factory-wide result
// (spec §4.6).
func Compute(products []ProductSignalInput, factory db.Factory, boats []db.Boat, today time.Time) Result {
	leadDays := factory.ProductionLeadDays + factory.TransportToPortDays

	var (
		earliest        time.Time
		limitingProduct string
		limitingRow     *db.ProductionScheduleRow
		found           bool
	)

	for _, p := range products {
		effectiveSiesa := p.Siesa.Add(p.InProduction).Add(p.InTransitBulk).Add(p.InTransitDrafts).Sub(p.CommittedToShip)
		if effectiveSiesa.IsNegative() {
			effectiveSiesa = decimal.Zero
		}

		if p.Velocity.IsZero() {
			continue // coverage_days = infinity; never the limiting product
		}

		coverageDays := effectiveSiesa.Div(p.Velocity)
		runsOut := today.AddDate(0, 0, int(mustFloat(coverageDays)))
		orderBy := runsOut.AddDate(0, 0, -leadDays)

		gap := p.Velocity.Mul(coverageDays.Add(decimal.NewFromInt(int64(leadDays))).Add(decimal.NewFromInt(db.OrderingCycleDays))).Sub(effectiveSiesa)
		if gap.IsNegative() {
			gap = decimal.Zero
		}
		if gap.LessThanOrEqual(db.MinProductionGapM2) {
			continue
		}

		if !found || orderBy.Before(earliest) {
			earliest = orderBy
			limitingProduct = p.ProductID
			limitingRow = p.ActiveRow
			found = true
		}
	}

	if !found {
		return Result{Signal: SignalOnTrack, HasParticipant: false}
	}

	if !earliest.Before(today) {
		return Result{Signal: SignalOnTrack, OrderByDate: earliest, LimitingProduct: limitingProduct, HasParticipant: true}
	}

	targetBoat, hasBoat := targetBoatFor(boats, today, leadDays)

	var signal Signal
	switch {
	case limitingRow != nil && hasBoat && !limitingRow.EstimatedDeliveryDate.AddDate(0, 0, factory.TransportToPortDays).After(targetBoat.DepartureDate):
		signal = SignalInProduction
	case limitingRow != nil:
		signal = SignalProductionDelayed
	case hasBoat:
		signal = SignalOrderToday
	default:
		signal = SignalNoProduction
	}

	return Result{
		Signal:          signal,
		OrderByDate:     earliest,
		LimitingProduct: limitingProduct,
		HasParticipant:  true,
	}
}

// targetBoatFor returns the first boat departing strictly after
// today + production_lead + transport_to_port (spec §4.6).
func targetBoatFor(boats []db.Boat, today time.Time, leadDays int) (db.Boat, bool) {
	cutoff := today.AddDate(0, 0, leadDays)
	for _, b := range boats {
		if b.DepartureDate.After(cutoff) {
			return b, true
		}
	}
	return db.Boat{}, false
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

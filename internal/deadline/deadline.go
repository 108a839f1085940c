// Package deadline computes factory/shipping/SIESA/production-request
// deadlines and the ordered milestone timeline for a boat×factory pair
// (spec §4.5).
package deadline

import (
	"time"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// Milestone is one dated entry in the ordered timeline.
type Milestone struct {
	Key    string
	Label  string
	Date   time.Time
	Passed bool
}

// Timeline is the full set of computed deadlines for one boat×factory
// pair, plus the ordered milestone list and the "what's next" pointer.
type Timeline struct {
	FactoryRequestCutoff time.Time
	PiggybackCutoff      *time.Time
	OrderDeadline        time.Time
	DepartureDate        time.Time
	ArrivalDate          time.Time
	InWarehouseDate      time.Time
	SiesaOrderDate       *time.Time // only for m2-based factories

	Milestones          []Milestone
	CurrentMilestone    *Milestone
	DaysToNextMilestone int
}

// Compute builds the full Timeline for a boat departing/arriving at the
// given dates for factory f, given whether that factory currently has a
// scheduled-production row (has_scheduled_production, spec §4.5).
func Compute(f db.Factory, departure, arrival, today time.Time, hasScheduledProduction bool) Timeline {
	t := Timeline{
		FactoryRequestCutoff: departure.AddDate(0, 0, -(f.ProductionLeadDays + f.TransportToPortDays + 5)),
		OrderDeadline:        departure.AddDate(0, 0, -(f.TransportToPortDays + 3)),
		DepartureDate:        departure,
		ArrivalDate:          arrival,
		InWarehouseDate:      arrival.AddDate(0, 0, db.WarehouseBufferDays),
	}

	if hasScheduledProduction {
		next := nextOccurrence(today, f.CutoffDay)
		if next.Before(departure) {
			t.PiggybackCutoff = &next
		}
	}

	if f.HasSiesaStep() {
		siesa := departure.AddDate(0, 0, -db.OrderDeadlineDays)
		t.SiesaOrderDate = &siesa
	}

	t.Milestones = buildMilestones(t)
	t.CurrentMilestone = firstUpcoming(t.Milestones, today)
	if t.CurrentMilestone != nil {
		t.DaysToNextMilestone = int(t.CurrentMilestone.Date.Sub(today).Hours() / 24)
	}

	return t
}

// nextOccurrence returns the next date strictly after today that falls
// on weekday.
func nextOccurrence(today time.Time, weekday time.Weekday) time.Time {
	delta := (int(weekday) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

func buildMilestones(t Timeline) []Milestone {
	ms := []Milestone{
		{Key: "factory_request_cutoff", Label: "Factory request cutoff", Date: t.FactoryRequestCutoff},
	}
	if t.PiggybackCutoff != nil {
		ms = append(ms, Milestone{Key: "piggyback_cutoff", Label: "Piggyback cutoff", Date: *t.PiggybackCutoff})
	}
	ms = append(ms,
		Milestone{Key: "order_deadline", Label: "Order deadline", Date: t.OrderDeadline},
		Milestone{Key: "departure_date", Label: "Departure", Date: t.DepartureDate},
		Milestone{Key: "arrival_date", Label: "Arrival", Date: t.ArrivalDate},
		Milestone{Key: "in_warehouse_date", Label: "In warehouse", Date: t.InWarehouseDate},
	)
	return ms
}

func firstUpcoming(milestones []Milestone, today time.Time) *Milestone {
	for i := range milestones {
		milestones[i].Passed = milestones[i].Date.Before(today)
	}
	for i := range milestones {
		if !milestones[i].Date.Before(today) {
			return &milestones[i]
		}
	}
	return nil
}

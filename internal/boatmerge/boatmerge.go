// Package boatmerge combines real scheduled boats with synthetic
// "phantom" boats generated from recurring shipping-route patterns to
// produce a gap-filled chronological boat sequence for a horizon (spec
// §4.3).
package boatmerge

import (
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

func nullableCarrier(carrier string) sql.NullString {
	return sql.NullString{String: carrier, Valid: carrier != ""}
}

// suppressWindowDays is the window within which a real boat suppresses a
// candidate phantom sailing (spec: "within ±2 days").
const suppressWindowDays = 2

// Merge returns real boats plus route-synthesized phantom boats for the
// horizon (today, today+horizonDays], sorted by departure date. Real
// boats must already be filtered to origin port, status, and horizon by
// the caller (internal/db's ListBoatsInWindow does this).
//
// Phantom IDs are a deterministic hash of (route ID, candidate date), so
// repeated calls with identical inputs return identical IDs and order
// (spec §8.1 invariant 8: idempotence of phantom merge).
func Merge(realBoats []db.Boat, routes []db.ShippingRoute, today time.Time, horizonDays int) []db.Boat {
	merged := make([]db.Boat, 0, len(realBoats))
	merged = append(merged, realBoats...)

	windowEnd := today.AddDate(0, 0, horizonDays)

	for _, route := range routes {
		if !route.Active {
			continue
		}
		for _, candidate := range candidateDates(route, today, windowEnd) {
			if suppressedByRealBoat(candidate, realBoats) {
				continue
			}
			merged = append(merged, synthesizePhantom(route, candidate))
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].DepartureDate.Before(merged[j].DepartureDate)
	})

	return merged
}

// candidateDates steps from the next occurrence of route.DepartureWeekday
// after today, in frequency_weeks increments, through windowEnd.
func candidateDates(route db.ShippingRoute, today, windowEnd time.Time) []time.Time {
	start := today.AddDate(0, 0, 1)
	first := nextWeekday(start, route.DepartureWeekday)

	freqDays := route.FrequencyWeeks * 7
	if freqDays <= 0 {
		freqDays = 7
	}

	var dates []time.Time
	for d := first; !d.After(windowEnd); d = d.AddDate(0, 0, freqDays) {
		dates = append(dates, d)
	}
	return dates
}

// nextWeekday returns the first date on or after from that falls on
// weekday.
func nextWeekday(from time.Time, weekday time.Weekday) time.Time {
	delta := (int(weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, delta)
}

func suppressedByRealBoat(candidate time.Time, realBoats []db.Boat) bool {
	for _, b := range realBoats {
		diff := candidate.Sub(b.DepartureDate).Hours() / 24
		if diff < 0 {
			diff = -diff
		}
		if diff <= suppressWindowDays {
			return true
		}
	}
	return false
}

func synthesizePhantom(route db.ShippingRoute, departure time.Time) db.Boat {
	id := phantomID(route.ID, departure)
	return db.Boat{
		ID:              id,
		VesselName:      fmt.Sprintf("%s→%s (est.)", route.OriginPort, route.DestinationPort),
		OriginPort:      route.OriginPort,
		DestinationPort: route.DestinationPort,
		DepartureDate:   departure,
		ArrivalDate:     departure.AddDate(0, 0, route.TransitDays),
		Status:          db.BoatEstimated,
		ShippingLine:    nullableCarrier(route.Carrier),
	}
}

// phantomID is a deterministic hash of route ID and candidate date so
// the same (route, date) pair always yields the same synthetic boat ID.
func phantomID(routeID string, candidate time.Time) string {
	h := sha1.New()
	h.Write([]byte(routeID))
	h.Write([]byte(candidate.Format("2006-01-02")))
	return "phantom-" + hex.EncodeToString(h.Sum(nil))[:16]
}

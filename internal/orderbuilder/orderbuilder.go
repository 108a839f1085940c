// Package orderbuilder turns one boat's simulator output into a
// three-section ordering plan (ship-now, add-to-production, factory
// request), scores and tiers products, and spreads critical risk across
// bills of lading (spec §4.7).
package orderbuilder

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
	"github.com/pinggolf/tile-supply-planner/internal/recommend"
	"github.com/pinggolf/tile-supply-planner/internal/velocity"
)

// CandidateProduct is everything the order builder needs about one
// product when building a plan for a target boat.
type CandidateProduct struct {
	ProductID             string
	SKU                   string
	Warehouse             decimal.Decimal
	InTransit             decimal.Decimal
	Siesa                 decimal.Decimal
	CompletedProductionM2 decimal.Decimal // completed production rows' contribution to the §4.7.1.3 pipeline
	SuggestedM2           decimal.Decimal // from the simulator's projection at the target boat
	LatestRow             *db.ProductionScheduleRow
	Velocity              decimal.Decimal
	Stockout              recommend.Stockout
	DemandScore           decimal.Decimal // §4.9 customer-demand score, 0-unbounded
	Trend                 velocity.Direction
	ChangePct             decimal.Decimal
	PrimaryCustomer       string // top customer by volume, "" if none
}

// ShipNowLine is one SKU in the warehouse-order (ship-now) section.
type ShipNowLine struct {
	ProductID string
	SKU       string
	Pallets   int
	M2        decimal.Decimal
	Score     int
}

// AddToProductionLine is one SKU whose scheduled row is being topped up.
type AddToProductionLine struct {
	ProductID    string
	SKU          string
	RowID        string
	AdditionalM2 decimal.Decimal
}

// FactoryRequestLine is one SKU requested fresh from the factory.
type FactoryRequestLine struct {
	ProductID      string
	SKU            string
	M2             decimal.Decimal
	Containers     int
	MinimumApplied bool
	IsLowVolume    bool
}

// BL is one bill of lading's allocation.
type BL struct {
	Index            int
	Lines            []ShipNowLine
	Pallets          int
	Containers       int
	M2               decimal.Decimal
	WeightKg         decimal.Decimal
	CriticalCount    int
	PrimaryCustomers map[string]bool
}

// Plan is the full three-section output for one target boat.
type Plan struct {
	ShipNow         []ShipNowLine
	AddToProduction []AddToProductionLine
	FactoryRequest  []FactoryRequestLine
	BLs             []BL
	RiskEven        bool
	Warnings        []string // e.g. a critical line had to migrate for BL capacity (spec §4.7.4.5)
}

// score implements the score table of spec §4.7.3.
func score(c CandidateProduct) int {
	total := 0

	// Stockout risk, max 40.
	if c.Stockout.HasData {
		d := c.Stockout.DaysToStockout
		switch {
		case d.LessThanOrEqual(decimal.Zero):
			total += 40
		case d.LessThan(decimal.NewFromInt(7)):
			total += 35
		case d.LessThan(decimal.NewFromInt(14)):
			total += 30
		case d.LessThan(decimal.NewFromInt(30)):
			total += 20
		case d.LessThan(decimal.NewFromInt(60)):
			total += 10
		}
	}

	// Customer demand, max 30.
	switch {
	case c.DemandScore.GreaterThanOrEqual(decimal.NewFromInt(200)):
		total += 30
	case c.DemandScore.GreaterThanOrEqual(decimal.NewFromInt(100)):
		total += 25
	case c.DemandScore.GreaterThanOrEqual(decimal.NewFromInt(50)):
		total += 15
	case c.DemandScore.GreaterThan(decimal.Zero):
		total += 10
	}

	// Growth trend, max 20.
	if c.Trend == velocity.DirectionUp {
		switch {
		case c.ChangePct.GreaterThanOrEqual(decimal.NewFromInt(30)):
			total += 20
		case c.ChangePct.GreaterThanOrEqual(decimal.NewFromInt(15)):
			total += 15
		default:
			total += 10
		}
	} else if c.Trend == velocity.DirectionStable {
		total += 5
	}

	// Revenue impact, max 10.
	switch {
	case c.Velocity.GreaterThanOrEqual(decimal.NewFromInt(50)):
		total += 10
	case c.Velocity.GreaterThanOrEqual(decimal.NewFromInt(30)):
		total += 8
	case c.Velocity.GreaterThanOrEqual(decimal.NewFromInt(15)):
		total += 5
	case c.Velocity.GreaterThan(decimal.Zero):
		total += 3
	}

	return total
}

const criticalScoreThreshold = 85

// Build constructs the full plan for a target boat given every candidate
// product, the factory's num_bls, and a skip list. today, avgProductionDays,
// and boats (the merged departure-ordered sequence) feed the Factory
// Request section's target-boat selection (spec §4.7.1, steps 1-2).
func Build(candidates []CandidateProduct, numBLs int, excludedSKUs map[string]bool, today time.Time, avgProductionDays int, boats []db.Boat) Plan {
	capacityM2 := db.BLCapacityPallets(numBLs).Mul(db.M2PerPallet)

	shipNowCandidates := make([]CandidateProduct, 0, len(candidates))
	addToProd := make([]AddToProductionLine, 0)
	factoryReq := make([]FactoryRequestLine, 0)

	for _, c := range candidates {
		if excludedSKUs[c.SKU] {
			continue
		}
		switch {
		case c.Siesa.GreaterThan(decimal.Zero):
			shipNowCandidates = append(shipNowCandidates, c)
		case c.LatestRow != nil && c.LatestRow.CanAddMore() && c.SuggestedM2.GreaterThan(c.LatestRow.RequestedM2):
			addToProd = append(addToProd, AddToProductionLine{
				ProductID:    c.ProductID,
				SKU:          c.SKU,
				RowID:        c.LatestRow.ID,
				AdditionalM2: c.SuggestedM2.Sub(c.LatestRow.RequestedM2),
			})
		default:
			if line, ok := factoryRequestLine(c, today, avgProductionDays, boats); ok {
				factoryReq = append(factoryReq, line)
			}
		}
	}

	sort.SliceStable(shipNowCandidates, func(i, j int) bool {
		return score(shipNowCandidates[i]) > score(shipNowCandidates[j])
	})

	shipNow := make([]ShipNowLine, 0, len(shipNowCandidates))
	usedM2 := decimal.Zero
	for _, c := range shipNowCandidates {
		if usedM2.GreaterThanOrEqual(capacityM2) {
			break
		}
		available := decimal.Min(c.Siesa, capacityM2.Sub(usedM2))
		if available.LessThanOrEqual(decimal.Zero) {
			continue
		}
		pallets := int(math.Floor(mustFloat(available.Div(db.M2PerPallet))))
		if pallets <= 0 {
			continue
		}
		m2 := decimal.NewFromInt(int64(pallets)).Mul(db.M2PerPallet)
		usedM2 = usedM2.Add(m2)
		shipNow = append(shipNow, ShipNowLine{
			ProductID: c.ProductID,
			SKU:       c.SKU,
			Pallets:   pallets,
			M2:        m2,
			Score:     score(c),
		})
	}

	bls, warnings := allocateBLs(shipNow, shipNowCandidates, numBLs)

	return Plan{
		ShipNow:         shipNow,
		AddToProduction: addToProd,
		FactoryRequest:  factoryReq,
		BLs:             bls,
		RiskEven:        isRiskEven(bls),
		Warnings:        warnings,
	}
}

// factoryRequestLine runs the full dynamic Factory Request calculation of
// spec §4.7.1.3: picks a target boat from the production-ready date, then
// applies the container-minimum rule of §4.7.1.3.6.
func factoryRequestLine(c CandidateProduct, today time.Time, avgProductionDays int, boats []db.Boat) (FactoryRequestLine, bool) {
	// 1. production_ready = next_monday + avg_production_days.
	productionReady := nextMonday(today).AddDate(0, 0, avgProductionDays)

	// 2. Target boat = first boat departing after production_ready.
	targetBoat, ok := firstBoatDepartingAfter(boats, productionReady)
	if !ok {
		return FactoryRequestLine{}, false
	}

	// 3. Projected stock at target boat's arrival. Pipeline excludes
	// SIESA, which feeds the warehouse-order (ship-now) section instead.
	daysUntilArrival := int(targetBoat.ArrivalDate.Sub(today).Hours() / 24)
	if daysUntilArrival < 0 {
		daysUntilArrival = 0
	}
	pipeline := c.InTransit.Add(c.CompletedProductionM2)
	projected := c.Warehouse.Add(pipeline).Sub(c.Velocity.Mul(decimal.NewFromInt(int64(daysUntilArrival))))

	// 4. Covered: no request needed.
	if !projected.IsNegative() {
		return FactoryRequestLine{}, false
	}

	// 5. need = |projected| + v * days_to_next_boat_after_target.
	daysToNextBoat := decimal.Zero
	if nextBoat, ok := firstBoatDepartingAfter(boats, targetBoat.DepartureDate.AddDate(0, 0, 1)); ok {
		d := int(nextBoat.ArrivalDate.Sub(targetBoat.ArrivalDate).Hours() / 24)
		if d > 0 {
			daysToNextBoat = decimal.NewFromInt(int64(d))
		}
	}
	need := projected.Abs().Add(c.Velocity.Mul(daysToNextBoat))

	// 6. Container-minimum rule.
	if c.Velocity.IsZero() {
		return FactoryRequestLine{ProductID: c.ProductID, SKU: c.SKU, IsLowVolume: true}, true
	}

	daysToConsume := db.ContainerM2.Div(c.Velocity)
	if daysToConsume.GreaterThan(decimal.NewFromInt(365)) {
		return FactoryRequestLine{ProductID: c.ProductID, SKU: c.SKU, IsLowVolume: true}, true
	}

	if need.GreaterThanOrEqual(db.ContainerM2) {
		containers := int(math.Ceil(mustFloat(need.Div(db.ContainerM2))))
		m2 := decimal.NewFromInt(int64(containers)).Mul(db.ContainerM2)
		return FactoryRequestLine{ProductID: c.ProductID, SKU: c.SKU, M2: m2, Containers: containers}, true
	}

	return FactoryRequestLine{
		ProductID:      c.ProductID,
		SKU:            c.SKU,
		M2:             db.ContainerM2,
		Containers:     1,
		MinimumApplied: true,
	}, true
}

// nextMonday returns the next Monday strictly after today.
func nextMonday(today time.Time) time.Time {
	delta := (int(time.Monday) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

// firstBoatDepartingAfter returns the first boat (boats assumed sorted by
// departure) whose departure date is strictly after cutoff.
func firstBoatDepartingAfter(boats []db.Boat, cutoff time.Time) (db.Boat, bool) {
	for _, b := range boats {
		if b.DepartureDate.After(cutoff) {
			return b, true
		}
	}
	return db.Boat{}, false
}

// allocateBLs distributes ship-now lines across bills of lading per the
// round-robin/customs-safety rules of spec §4.7.4. Returns any warnings
// raised while rebalancing BLs over capacity.
func allocateBLs(lines []ShipNowLine, candidates []CandidateProduct, numBLs int) ([]BL, []string) {
	if numBLs < 1 {
		numBLs = 1
	}
	if numBLs > 5 {
		numBLs = 5
	}

	customerByProduct := map[string]string{}
	for _, c := range candidates {
		customerByProduct[c.ProductID] = c.PrimaryCustomer
	}

	bls := make([]BL, numBLs)
	for i := range bls {
		bls[i] = BL{Index: i, PrimaryCustomers: map[string]bool{}}
	}

	var critical, nonCritical []ShipNowLine
	for _, l := range lines {
		if l.Score >= criticalScoreThreshold {
			critical = append(critical, l)
		} else {
			nonCritical = append(nonCritical, l)
		}
	}
	sort.SliceStable(critical, func(i, j int) bool { return critical[i].Score > critical[j].Score })

	rr := 0
	for _, l := range critical {
		idx := rr % numBLs
		placeLine(&bls[idx], l, true)
		if cust := customerByProduct[l.ProductID]; cust != "" {
			bls[idx].PrimaryCustomers[cust] = true
		}
		rr++
	}

	for _, l := range nonCritical {
		cust := customerByProduct[l.ProductID]
		placed := false
		if cust != "" {
			for i := range bls {
				if bls[i].PrimaryCustomers[cust] {
					placeLine(&bls[i], l, false)
					placed = true
					break
				}
			}
		}
		if !placed {
			smallest := smallestBL(bls)
			placeLine(&bls[smallest], l, false)
		}
	}

	warnings := rebalanceOverCapacity(bls)

	return bls, warnings
}

func placeLine(bl *BL, l ShipNowLine, critical bool) {
	bl.Lines = append(bl.Lines, l)
	bl.Pallets += l.Pallets
	bl.M2 = bl.M2.Add(l.M2)
	bl.Containers = int(math.Ceil(float64(bl.Pallets) / 14.0))
	bl.WeightKg = bl.M2.Mul(decimal.NewFromFloat(20)) // nominal per-m2 weight factor
	if critical {
		bl.CriticalCount++
	}
}

func smallestBL(bls []BL) int {
	smallest := 0
	for i := range bls {
		if bls[i].Pallets < bls[smallest].Pallets {
			smallest = i
		}
	}
	return smallest
}

// rebalanceOverCapacity migrates lines off any BL exceeding
// MaxContainersPerBL, preferring to move a non-critical line first; when
// none is left, it migrates a critical line and emits a warning (spec
// §4.7.4.5).
func rebalanceOverCapacity(bls []BL) []string {
	var warnings []string
	for i := range bls {
		for bls[i].Containers > db.MaxContainersPerBL && len(bls[i].Lines) > 0 {
			target := mostSlack(bls, i)
			if target == i {
				break
			}
			idx := lastNonCriticalIdx(bls[i].Lines)
			migratingCritical := false
			if idx == -1 {
				idx = len(bls[i].Lines) - 1
				migratingCritical = true
			}
			migrated := bls[i].Lines[idx]
			bls[i].Lines = append(bls[i].Lines[:idx], bls[i].Lines[idx+1:]...)
			recomputeTotals(&bls[i])
			bls[target].Lines = append(bls[target].Lines, migrated)
			recomputeTotals(&bls[target])
			if migratingCritical {
				warnings = append(warnings, fmt.Sprintf(
					"BL %d exceeded %d containers with no non-critical line to migrate: moved critical SKU %s to BL %d",
					bls[i].Index, db.MaxContainersPerBL, migrated.SKU, bls[target].Index))
			}
		}
	}
	return warnings
}

func lastNonCriticalIdx(lines []ShipNowLine) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].Score < criticalScoreThreshold {
			return i
		}
	}
	return -1
}

func recomputeTotals(bl *BL) {
	bl.Pallets = 0
	bl.M2 = decimal.Zero
	bl.CriticalCount = 0
	for _, l := range bl.Lines {
		bl.Pallets += l.Pallets
		bl.M2 = bl.M2.Add(l.M2)
		if l.Score >= criticalScoreThreshold {
			bl.CriticalCount++
		}
	}
	bl.Containers = int(math.Ceil(float64(bl.Pallets) / 14.0))
	bl.WeightKg = bl.M2.Mul(decimal.NewFromFloat(20))
}

func mostSlack(bls []BL, exclude int) int {
	best := exclude
	for i := range bls {
		if i == exclude {
			continue
		}
		if best == exclude || bls[i].Containers < bls[best].Containers {
			best = i
		}
	}
	return best
}

// isRiskEven reports whether the max critical count in any single BL is
// within ceil(total_critical * 0.4) (spec §4.7.4.6).
func isRiskEven(bls []BL) bool {
	total := 0
	max := 0
	for _, bl := range bls {
		total += bl.CriticalCount
		if bl.CriticalCount > max {
			max = bl.CriticalCount
		}
	}
	if total == 0 {
		return true
	}
	threshold := int(math.Ceil(float64(total) * 0.4))
	return max <= threshold
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Package simulator implements the supply-cascade simulator (spec §4.4),
// the centerpiece of the planning core: it walks a chronologically
// ordered sequence of boats, consumes supply from ranked sources
// (warehouse -> in-transit -> SIESA finished goods -> scheduled
// production), drains demand at per-SKU velocity, and emits per-boat
// per-SKU projections with urgency, confidence, and coverage gap.
package simulator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
	"github.com/pinggolf/tile-supply-planner/internal/deadline"
)

// TransitEntry is a per-arrival-date in-transit bump originating from a
// committed draft on another factory's boat (spec §4.4.1).
type TransitEntry struct {
	ArrivalDate time.Time
	M2          decimal.Decimal
}

// DraftItemInput is one product's stored selection on one boat, already
// resolved to committed/tentative (spec §3: ordered/confirmed are
// committed; drafting/action_needed are tentative).
type DraftItemInput struct {
	BoatID          string
	ProductID       string
	SelectedPallets int
	Committed       bool
}

// ProductInput is everything the simulator needs for one active product
// of the factory (spec §4.4.1).
type ProductInput struct {
	ProductID           string
	SKU                 string
	Warehouse0          decimal.Decimal
	InTransit0          decimal.Decimal
	Siesa0              decimal.Decimal
	Velocity            decimal.Decimal
	PalletDivisor       decimal.Decimal // m2 (or units) per pallet for this product
	ProductionRows      []db.ProductionScheduleRow
	TransitEntries      []TransitEntry
	DemandScore         decimal.Decimal // customer-demand score, used as a sort tie-break
	TransportToPortDays int             // copied from the owning Factory by the caller
}

// Input bundles everything needed to run one simulation for one factory.
type Input struct {
	Factory      db.Factory
	Boats        []db.Boat // merged real+phantom sequence, departure-ordered
	Products     []ProductInput
	DraftItems   []DraftItemInput
	DraftsByBoat map[string]db.Draft // keyed by boat ID, for draft_status annotations
	Today        time.Time
}

// ProductDetail is one product's projection at one boat.
type ProductDetail struct {
	ProductID            string
	SKU                  string
	Effective            decimal.Decimal
	Projected            decimal.Decimal
	DaysOfStockAtArrival decimal.Decimal
	DaysOfStockAfterFill decimal.Decimal // coverage once this boat's suggested fill lands, feeds the stability-impact pass
	HasVelocity          bool            // false => the two DaysOfStock* fields are meaningless (infinite)
	Urgency              db.Urgency
	SuggestedPallets     int
	IsCommitted          bool
	DemandScore          decimal.Decimal
	Velocity             decimal.Decimal
}

// ConfidenceBand is the departure-distance-derived uncertainty band
// applied to a boat's aggregate projection (spec §4.4.5).
type ConfidenceBand struct {
	Label string
	Score int
}

// StabilityClass classifies one SKU's coverage trajectory across a boat
// (spec §4.4.6).
type StabilityClass string

const (
	StabilityStabilized StabilityClass = "stabilized"
	StabilityRecovering StabilityClass = "recovering"
	StabilityBlocked    StabilityClass = "blocked"
	StabilityUnaffected StabilityClass = "unaffected"
)

// stableCoverageDays is the 30-day threshold used by the stability-impact
// post-pass (spec §4.4.6).
const stableCoverageDays = 30

// BoatProjection is the simulator's full output for one boat.
type BoatProjection struct {
	Boat                db.Boat
	ProductDetails      []ProductDetail
	ProjectedPalletsMin int
	ProjectedPalletsMax int
	UrgencyHistogram    map[db.Urgency]int
	Confidence          ConfidenceBand
	DraftStatus         db.DraftState
	DraftID             string
	IsActive            bool
	IsDraftLocked       bool
	HasEarlierDrafts    bool
	EarlierDraftContext string
	NeedsReview         bool
	ReviewReason        string
	StabilityBySKU      map[string]StabilityClass
	ProgressBeforePct   decimal.Decimal
	ProgressAfterPct    decimal.Decimal
	Deadlines           deadline.Timeline
}

// productState is the per-product running state carried across boats
// (spec §4.4.2).
type productState struct {
	input          ProductInput
	stock          decimal.Decimal
	siesaConsumed  bool
	rowConsumed    map[string]bool
	transitEntries []TransitEntry
}

// Run executes the full cascade across every boat in in.Boats, in
// departure order, and returns one BoatProjection per boat.
func Run(in Input) []BoatProjection {
	states := make(map[string]*productState, len(in.Products))
	for _, p := range in.Products {
		states[p.ProductID] = &productState{
			input:          p,
			stock:          p.Warehouse0,
			rowConsumed:    map[string]bool{},
			transitEntries: append([]TransitEntry(nil), p.TransitEntries...),
		}
	}

	draftItemsByBoat := map[string][]DraftItemInput{}
	for _, di := range in.DraftItems {
		draftItemsByBoat[di.BoatID] = append(draftItemsByBoat[di.BoatID], di)
	}

	hasScheduledProduction := false
	for _, p := range in.Products {
		for _, row := range p.ProductionRows {
			if row.Status == db.ProductionScheduled || row.Status == db.ProductionInProgress {
				hasScheduledProduction = true
			}
		}
	}

	projections := make([]BoatProjection, 0, len(in.Boats))

	for _, boat := range in.Boats {
		daysUntilWarehouse := daysUntilWarehouseFor(boat, in.Today)

		details := make([]ProductDetail, 0, len(in.Products))
		draftItemsForBoat := indexByProduct(draftItemsByBoat[boat.ID])

		for _, p := range in.Products {
			st := states[p.ProductID]
			detail := stepProduct(st, boat, in.Today, daysUntilWarehouse, draftItemsForBoat[p.ProductID])
			details = append(details, detail)
		}

		sortDetails(details)

		proj := buildBoatProjection(boat, details, in.Today)
		proj.Deadlines = deadline.Compute(in.Factory, boat.DepartureDate, boat.ArrivalDate, in.Today, hasScheduledProduction)
		draft, hasDraft := in.DraftsByBoat[boat.ID]
		if hasDraft {
			proj.DraftStatus = draft.State
			proj.DraftID = draft.ID
			proj.IsActive = true
			proj.NeedsReview = draft.State == db.DraftActionNeeded
			if proj.NeedsReview {
				proj.ReviewReason = "draft requires review before it can be ordered"
			}
		}

		projections = append(projections, proj)
	}

	annotateDraftLock(projections, in.DraftsByBoat)
	annotateEarlierDraftContext(projections)
	annotateStabilityImpact(projections)

	return projections
}

func indexByProduct(items []DraftItemInput) map[string]DraftItemInput {
	out := make(map[string]DraftItemInput, len(items))
	for _, it := range items {
		out[it.ProductID] = it
	}
	return out
}

// daysUntilWarehouseFor computes max(1, (arrival-today).days + buffer)
// per spec §4.4.3.
func daysUntilWarehouseFor(boat db.Boat, today time.Time) int {
	daysToArrival := int(boat.ArrivalDate.Sub(today).Hours() / 24)
	d := daysToArrival + db.WarehouseBufferDays
	if d < 1 {
		d = 1
	}
	return d
}

// stepProduct runs steps A-G of spec §4.4.3 for one product at one boat.
func stepProduct(st *productState, boat db.Boat, today time.Time, daysUntilWarehouse int, draftItem DraftItemInput) ProductDetail {
	supply := decimal.Zero

	// A. Factory-SIESA contribution (one-time).
	if !st.siesaConsumed && !boat.DepartureDate.Before(today.AddDate(0, 0, st.input.TransportToPortDays)) {
		supply = supply.Add(st.input.Siesa0)
		st.siesaConsumed = true
	}

	// B. Production-pipeline contribution (one-time per row).
	for i := range st.input.ProductionRows {
		row := st.input.ProductionRows[i]
		if st.rowConsumed[row.ID] {
			continue
		}
		readyForDeparture := row.EstimatedDeliveryDate.AddDate(0, 0, st.input.TransportToPortDays)
		if readyForDeparture.After(boat.DepartureDate) {
			continue
		}
		supply = supply.Add(row.RemainingM2())
		st.rowConsumed[row.ID] = true
	}

	// C. In-transit from committed earlier drafts.
	remaining := st.transitEntries[:0]
	for _, entry := range st.transitEntries {
		if !entry.ArrivalDate.AddDate(0, 0, db.WarehouseBufferDays).After(boat.DepartureDate) {
			supply = supply.Add(entry.M2)
		} else {
			remaining = append(remaining, entry)
		}
	}
	st.transitEntries = remaining

	// D. Effective stock & projection.
	effective := st.stock.Add(supply)
	v := st.input.Velocity
	projected := effective.Sub(v.Mul(decimal.NewFromInt(int64(daysUntilWarehouse))))

	hasVelocity := !v.IsZero()
	var daysOfStock decimal.Decimal
	if hasVelocity {
		daysOfStock = projected.Div(v)
	}

	// E. Demand resolution.
	suggested := 0
	isCommitted := false
	switch {
	case draftItem.ProductID != "" && draftItem.Committed:
		suggested = draftItem.SelectedPallets
		isCommitted = true
	case draftItem.ProductID != "" && !draftItem.Committed && draftItem.SelectedPallets > 0:
		suggested = draftItem.SelectedPallets
	default:
		coverageTarget := db.OrderingCycleDays + daysUntilWarehouse
		gap := v.Mul(decimal.NewFromInt(int64(coverageTarget))).Sub(projected)
		if gap.IsNegative() {
			gap = decimal.Zero
		}
		if !gap.IsZero() && !st.input.PalletDivisor.IsZero() {
			suggested = ceilDiv(gap, st.input.PalletDivisor)
		}
	}

	// F. Cascade.
	if suggested > 0 {
		fill := decimal.NewFromInt(int64(suggested)).Mul(st.input.PalletDivisor)
		st.stock = projected.Add(fill)
	} else {
		st.stock = projected
	}

	// G. Classify urgency.
	urgency := classifyUrgency(hasVelocity, daysOfStock)

	var daysAfterFill decimal.Decimal
	if hasVelocity {
		daysAfterFill = st.stock.Div(v)
	}

	return ProductDetail{
		ProductID:            st.input.ProductID,
		SKU:                  st.input.SKU,
		Effective:            effective.Round(4),
		Projected:            projected.Round(4),
		DaysOfStockAtArrival: daysOfStock.Round(4),
		DaysOfStockAfterFill: daysAfterFill.Round(4),
		HasVelocity:          hasVelocity,
		Urgency:              urgency,
		SuggestedPallets:     suggested,
		IsCommitted:          isCommitted,
		DemandScore:          st.input.DemandScore,
		Velocity:             v,
	}
}

// ceilDiv computes ceil(amount/divisor) without ever leaving
// decimal.Decimal, per §9.1's "never floating point in supply
// conservation paths" mandate — this sizes SuggestedPallets.
func ceilDiv(amount, divisor decimal.Decimal) int {
	return int(amount.Div(divisor).Ceil().IntPart())
}

func classifyUrgency(hasVelocity bool, daysOfStock decimal.Decimal) db.Urgency {
	if !hasVelocity {
		return db.UrgencyOK
	}
	switch {
	case daysOfStock.LessThan(decimal.NewFromInt(7)):
		return db.UrgencyCritical
	case daysOfStock.LessThan(decimal.NewFromInt(14)):
		return db.UrgencyUrgent
	case daysOfStock.LessThan(decimal.NewFromInt(30)):
		return db.UrgencySoon
	default:
		return db.UrgencyOK
	}
}

// sortDetails orders per-product details by urgency rank, then
// descending customer-demand score, then descending velocity (spec §5).
func sortDetails(details []ProductDetail) {
	sort.SliceStable(details, func(i, j int) bool {
		if details[i].Urgency.Rank() != details[j].Urgency.Rank() {
			return details[i].Urgency.Rank() < details[j].Urgency.Rank()
		}
		if !details[i].DemandScore.Equal(details[j].DemandScore) {
			return details[i].DemandScore.GreaterThan(details[j].DemandScore)
		}
		return details[i].Velocity.GreaterThan(details[j].Velocity)
	})
}

func buildBoatProjection(boat db.Boat, details []ProductDetail, today time.Time) BoatProjection {
	histogram := map[db.Urgency]int{}
	total := 0
	for _, d := range details {
		histogram[d.Urgency]++
		total += d.SuggestedPallets
	}

	confidence := confidenceBand(boat.DepartureDate, today)
	score := decimal.NewFromInt(int64(confidence.Score)).Div(decimal.NewFromInt(100))
	totalDec := decimal.NewFromInt(int64(total))

	minF, _ := totalDec.Mul(score).Float64()
	maxScore := decimal.NewFromInt(2).Sub(score)
	maxF, _ := totalDec.Mul(maxScore).Float64()

	return BoatProjection{
		Boat:                boat,
		ProductDetails:      details,
		ProjectedPalletsMin: int(minF),
		ProjectedPalletsMax: int(maxF),
		UrgencyHistogram:    histogram,
		Confidence:          confidence,
	}
}

// confidenceBand classifies days_out = departure - today against the
// bands in spec §4.4.5.
func confidenceBand(departure, today time.Time) ConfidenceBand {
	daysOut := int(departure.Sub(today).Hours() / 24)
	switch {
	case daysOut <= 14:
		return ConfidenceBand{Label: "very_high", Score: 95}
	case daysOut <= 30:
		return ConfidenceBand{Label: "high", Score: 80}
	case daysOut <= 60:
		return ConfidenceBand{Label: "medium", Score: 60}
	case daysOut <= 90:
		return ConfidenceBand{Label: "low", Score: 40}
	default:
		return ConfidenceBand{Label: "very_low", Score: 20}
	}
}

// annotateDraftLock sets IsDraftLocked on every boat preceding a boat
// that already carries a stored draft (spec §4.4.6, invariant 6).
func annotateDraftLock(projections []BoatProjection, draftsByBoat map[string]db.Draft) {
	n := len(projections)
	sawLaterDraft := false
	for i := n - 1; i >= 0; i-- {
		if sawLaterDraft {
			projections[i].IsDraftLocked = true
		}
		if _, ok := draftsByBoat[projections[i].Boat.ID]; ok {
			sawLaterDraft = true
		}
	}
}

// annotateEarlierDraftContext summarizes preceding drafts a boat's
// baseline depends on (spec §4.4.6).
func annotateEarlierDraftContext(projections []BoatProjection) {
	var seen []string
	var totalPallets int
	for i := range projections {
		if i > 0 && projections[i-1].DraftID != "" {
			seen = append(seen, projections[i-1].Boat.VesselName)
			for _, d := range projections[i-1].ProductDetails {
				totalPallets += d.SuggestedPallets
			}
		}
		if len(seen) == 0 {
			continue
		}
		projections[i].HasEarlierDrafts = true
		if len(seen) == 1 {
			projections[i].EarlierDraftContext = "based on single draft of " + seen[0] + ": " + itoa(totalPallets) + " pallets"
		} else {
			projections[i].EarlierDraftContext = "based on multiple: " + itoa(len(seen)) + ", total " + itoa(totalPallets)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// annotateStabilityImpact classifies each SKU's coverage trajectory
// across a boat and computes before/after coverage percentages (spec
// §4.4.6).
func annotateStabilityImpact(projections []BoatProjection) {
	for i := range projections {
		classes := map[string]StabilityClass{}
		belowBefore := 0
		atOrAboveAfter := 0
		total := len(projections[i].ProductDetails)

		for _, d := range projections[i].ProductDetails {
			wasBelow := d.HasVelocity && d.DaysOfStockAtArrival.LessThan(decimal.NewFromInt(stableCoverageDays))
			isBelow := d.HasVelocity && d.DaysOfStockAfterFill.LessThan(decimal.NewFromInt(stableCoverageDays))

			if wasBelow {
				belowBefore++
			}

			switch {
			case wasBelow && !isBelow:
				classes[d.SKU] = StabilityStabilized
				atOrAboveAfter++
			case wasBelow && isBelow && hasLaterSupply(projections, i, d.ProductID):
				classes[d.SKU] = StabilityRecovering
			case wasBelow && isBelow:
				classes[d.SKU] = StabilityBlocked
			default:
				classes[d.SKU] = StabilityUnaffected
				atOrAboveAfter++
			}
		}

		projections[i].StabilityBySKU = classes
		if total > 0 {
			projections[i].ProgressBeforePct = decimal.NewFromInt(int64(total - belowBefore)).Div(decimal.NewFromInt(int64(total))).Mul(decimal.NewFromInt(100)).Round(2)
			projections[i].ProgressAfterPct = decimal.NewFromInt(int64(atOrAboveAfter)).Div(decimal.NewFromInt(int64(total))).Mul(decimal.NewFromInt(100)).Round(2)
		}
	}
}

func hasLaterSupply(projections []BoatProjection, afterIdx int, productID string) bool {
	for i := afterIdx + 1; i < len(projections); i++ {
		for _, d := range projections[i].ProductDetails {
			if d.ProductID == productID && d.SuggestedPallets > 0 {
				return true
			}
		}
	}
	return false
}

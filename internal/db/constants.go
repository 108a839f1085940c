package db

import "github.com/shopspring/decimal"

// Universal constants from the planning domain (spec §3). config.Config
// loads same-named environment settings for some of them, but nothing
// copies those values into these variables.
var (
	M2PerPallet              = decimal.NewFromFloat(134.4)
	PalletsPerContainer      = decimal.NewFromInt(14)
	ContainerMaxPallets      = decimal.NewFromInt(14)
	ContainerMaxWeightKg     = decimal.NewFromInt(27500)
	MaxContainersPerBL       = 5
	OrderDeadlineDays        = 30
	VelocityLookbackDays     = 90
	WarehouseCapacityPallets = decimal.NewFromInt(740)

	// WarehouseBufferDays is the gap between port arrival and warehouse
	// availability; ORDERING_CYCLE_DAYS is the nominal gap-to-next-boat
	// used for coverage targets. Both are fixed here per spec §3;
	// config.Config has no setting for either.
	WarehouseBufferDays = 3
	OrderingCycleDays   = 30

	// MinProductionGapM2 gates factory-order-signal participation (§4.6).
	MinProductionGapM2 = decimal.NewFromInt(1200)

	// ContainerM2 is one full container's worth of product in m2 terms
	// (PalletsPerContainer * M2PerPallet), used by the container-minimum
	// rule in the factory-request section of the order builder.
	ContainerM2 = PalletsPerContainer.Mul(M2PerPallet)

	SafetyStockZScore = decimal.NewFromFloat(1.645)
)

// BLCapacityPallets returns num_bls × MAX_CONTAINERS_PER_BL × PALLETS_PER_CONTAINER.
func BLCapacityPallets(numBLs int) decimal.Decimal {
	return decimal.NewFromInt(int64(numBLs * MaxContainersPerBL)).Mul(PalletsPerContainer)
}

// UnitType is the closed enum for a factory's unit-of-measure convention.
type UnitType string

const (
	UnitTypeM2    UnitType = "m2"
	UnitTypeUnits UnitType = "units"
)

// ProductionStatus is the closed enum for a ProductionScheduleRow's status.
type ProductionStatus string

const (
	ProductionScheduled  ProductionStatus = "scheduled"
	ProductionInProgress ProductionStatus = "in_progress"
	ProductionCompleted  ProductionStatus = "completed"
)

// BoatStatus is the closed enum for a Boat's status.
type BoatStatus string

const (
	BoatAvailable BoatStatus = "available"
	BoatBooked    BoatStatus = "booked"
	BoatEstimated BoatStatus = "estimated"
)

// DraftState is the closed enum for a Draft's lifecycle state (spec §3).
type DraftState string

const (
	DraftDrafting     DraftState = "drafting"
	DraftActionNeeded DraftState = "action_needed"
	DraftOrdered      DraftState = "ordered"
	DraftConfirmed    DraftState = "confirmed"
)

// IsCommitted reports whether items in this state are authoritative and
// locked (ordered/confirmed), per spec §3.
func (s DraftState) IsCommitted() bool {
	return s == DraftOrdered || s == DraftConfirmed
}

// WarehouseOrderStatus is the closed enum for a WarehouseOrder's lifecycle.
type WarehouseOrderStatus string

const (
	WOPending   WarehouseOrderStatus = "pending"
	WOShipped   WarehouseOrderStatus = "shipped"
	WOReceived  WarehouseOrderStatus = "received"
	WOCancelled WarehouseOrderStatus = "cancelled"
)

// Urgency is the closed enum for product urgency classification (§4.4.3.G).
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyUrgent   Urgency = "urgent"
	UrgencySoon     Urgency = "soon"
	UrgencyOK       Urgency = "ok"
)

// Rank orders urgency from most to least severe, lower is more severe.
// Used for the stable per-product sort within a boat (spec §5).
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyUrgent:
		return 1
	case UrgencySoon:
		return 2
	default:
		return 3
	}
}

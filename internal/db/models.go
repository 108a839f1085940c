package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ========================================
// REFERENCE ENTITIES
// ========================================

// Product is a sellable SKU, scoped to exactly one factory.
type Product struct {
	ID             string
	SKU            string
	FactoryID      string
	Category       sql.NullString
	RotationTag    sql.NullString
	Active         bool
	UnitsPerPallet sql.NullFloat64
}

// Factory is an offshore production site with its own deadline chain.
type Factory struct {
	ID                  string
	Name                string
	OriginPort          string
	ProductionLeadDays  int
	TransportToPortDays int
	CutoffDay           time.Weekday
	UnitType            UnitType
	Active              bool
	SortOrder           int
}

// HasSiesaStep reports whether this factory's deadline chain includes a
// finished-goods (SIESA) step. Unit-based factories skip it (spec §3).
func (f Factory) HasSiesaStep() bool {
	return f.UnitType == UnitTypeM2
}

// InventorySnapshot composes the latest independent row from each of the
// three inventory sources for one product (spec §3, §4.1). Each field
// reflects its own source's most recent snapshot date; an absent row is
// zero, not an error.
type InventorySnapshot struct {
	ProductID          string
	WarehouseM2        decimal.Decimal
	InTransitM2        decimal.Decimal
	FactoryAvailableM2 decimal.Decimal
	LargestLotM2       decimal.NullDecimal
	LotCode            sql.NullString
	LotCount           sql.NullInt32
	WarehouseAsOf      time.Time
	InTransitAsOf      time.Time
	FactoryAsOf        time.Time
}

// SalesRecord is a weekly sales bucket for one product.
type SalesRecord struct {
	ProductID          string
	WeekStart          time.Time // always a Monday
	QuantityM2         decimal.Decimal
	CustomerNormalized sql.NullString
	TotalPriceUSD      decimal.NullDecimal
}

// ProductionScheduleRow is one in-flight or completed production run.
type ProductionScheduleRow struct {
	ID                    string
	ProductID             string
	Status                ProductionStatus
	RequestedM2           decimal.Decimal
	CompletedM2           decimal.Decimal
	EstimatedDeliveryDate time.Time
}

// CanAddMore reports whether additional m2 can still be folded into this
// row (only true while the row is still `scheduled`).
func (r ProductionScheduleRow) CanAddMore() bool {
	return r.Status == ProductionScheduled
}

// RemainingM2 is the row's future-supply contribution: the completed
// amount for a finished row, or the outstanding balance for one still in
// flight (spec §3).
func (r ProductionScheduleRow) RemainingM2() decimal.Decimal {
	if r.Status == ProductionCompleted {
		return r.CompletedM2
	}
	remaining := r.RequestedM2.Sub(r.CompletedM2)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Boat is a scheduled (or phantom-synthesized) shipment.
type Boat struct {
	ID              string
	VesselName      string
	OriginPort      string
	DestinationPort string
	DepartureDate   time.Time
	ArrivalDate     time.Time
	Status          BoatStatus
	ShippingLine    sql.NullString
}

// OrderDeadline is departure minus the fixed ORDER_DEADLINE_DAYS window.
func (b Boat) OrderDeadline() time.Time {
	return b.DepartureDate.AddDate(0, 0, -OrderDeadlineDays)
}

// IsPhantom reports whether this boat was synthesized by the boat merger.
func (b Boat) IsPhantom() bool {
	return b.Status == BoatEstimated
}

// ShippingRoute describes a recurring sailing pattern used to synthesize
// phantom boats when no real boat is scheduled (spec §4.3).
type ShippingRoute struct {
	ID               string
	OriginPort       string
	DestinationPort  string
	DepartureWeekday time.Weekday
	TransitDays      int
	FrequencyWeeks   int
	Carrier          string
	Active           bool
}

// ========================================
// DRAFT (boat × factory × items)
// ========================================

// Draft is a factory's in-progress plan for one boat.
type Draft struct {
	ID        string
	BoatID    string
	FactoryID string
	State     DraftState
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []DraftItem
}

// DraftItem is one product's allocation within a Draft.
type DraftItem struct {
	DraftID         string
	ProductID       string
	SKU             string
	SelectedPallets int
	BLNumber        sql.NullInt32
}

// draftTransitions is the closed adjacency list for the Draft state
// machine (spec §3). Re-expressed here as data rather than scattered
// conditionals; NextDraftState reads it as the single source of truth.
var draftTransitions = map[DraftState][]DraftState{
	DraftDrafting:     {DraftActionNeeded, DraftOrdered},
	DraftActionNeeded: {DraftOrdered},
	DraftOrdered:      {DraftConfirmed},
	DraftConfirmed:    {},
}

// IllegalTransitionError reports a rejected state-machine move (spec §9.1:
// re-expressed as a typed result instead of exception-for-flow).
type IllegalTransitionError struct {
	From, To DraftState
}

func (e *IllegalTransitionError) Error() string {
	return "illegal transition from " + string(e.From) + " to " + string(e.To)
}

// NextDraftState validates a requested transition and returns the new
// state, or an *IllegalTransitionError if the move is not in the DAG.
func NextDraftState(from, to DraftState) (DraftState, error) {
	for _, allowed := range draftTransitions[from] {
		if allowed == to {
			return to, nil
		}
	}
	return from, &IllegalTransitionError{From: from, To: to}
}

// CanCancel reports whether a draft in this state may be cancelled
// (only `drafting`, per spec §3's diagram).
func (s DraftState) CanCancel() bool {
	return s == DraftDrafting
}

// ========================================
// WAREHOUSE ORDER (C8 ledger)
// ========================================

// WarehouseOrder is an exported, persisted order against a boat.
type WarehouseOrder struct {
	ID                     string
	BoatID                 string
	BoatName               string
	Status                 WarehouseOrderStatus
	TotalPallets           int
	TotalM2                decimal.Decimal
	TotalContainers        int
	TotalWeightKg          decimal.Decimal
	EstimatedWarehouseDate time.Time
	CreatedAt              time.Time
	Items                  []WarehouseOrderItem
}

// WarehouseOrderItem is one SKU's allocation within a WarehouseOrder.
type WarehouseOrderItem struct {
	OrderID   string
	ProductID string
	SKU       string
	Pallets   int
	M2        decimal.Decimal
	BLNumber  sql.NullInt32
	Score     decimal.NullDecimal
}

var warehouseOrderTransitions = map[WarehouseOrderStatus][]WarehouseOrderStatus{
	WOPending:   {WOShipped, WOCancelled},
	WOShipped:   {WOReceived},
	WOReceived:  {},
	WOCancelled: {},
}

// NextWarehouseOrderState validates a requested status transition, per the
// DAG `pending -> shipped -> received` / `pending -> cancelled` (spec §3, §4.8).
func NextWarehouseOrderState(from, to WarehouseOrderStatus) (WarehouseOrderStatus, error) {
	for _, allowed := range warehouseOrderTransitions[from] {
		if allowed == to {
			return to, nil
		}
	}
	return from, &IllegalTransitionError{From: DraftState(from), To: DraftState(to)}
}

// ========================================
// CUSTOMER PATTERN (feeds C9 demand score)
// ========================================

// CustomerTier is the closed enum assigned by cumulative revenue share
// (spec §4.9): A = top 20%, B = next 30%, C = the rest.
type CustomerTier string

const (
	CustomerTierA CustomerTier = "A"
	CustomerTierB CustomerTier = "B"
	CustomerTierC CustomerTier = "C"
)

// Weight returns the fixed point weight for a customer tier used in
// the demand score (spec §4.9).
func (t CustomerTier) Weight() decimal.Decimal {
	switch t {
	case CustomerTierA:
		return decimal.NewFromInt(100)
	case CustomerTierB:
		return decimal.NewFromInt(50)
	default:
		return decimal.NewFromInt(25)
	}
}

// CustomerPattern summarizes one customer's recurring purchase cadence
// for one product, used by the demand-score and factory-request logic.
type CustomerPattern struct {
	ProductID     string
	CustomerName  string
	Tier          CustomerTier
	LastOrderDate time.Time
	AvgGapDays    decimal.Decimal
	AvgQuantityM2 decimal.Decimal
	RevenueUSD    decimal.Decimal
}

// ========================================
// AUDIT LOG
// ========================================

// AuditLog is a structured record of a mutation to a Draft, a
// WarehouseOrder, or user/system settings.
type AuditLog struct {
	ID         int64
	Timestamp  time.Time
	UserID     sql.NullString
	UserName   sql.NullString
	EntityType string
	EntityID   sql.NullString
	Operation  string
	Metadata   json.RawMessage
	IPAddress  sql.NullString
	UserAgent  sql.NullString
	CreatedAt  time.Time
}

// ========================================
// DATA FRESHNESS / UPLOADS
// ========================================

// SourceFreshness is the most recent snapshot_date seen for one of the
// independent inventory/sales/schedule sources (spec §6.1 data-freshness).
type SourceFreshness struct {
	Source     string
	LastUpdate sql.NullTime
	RowCount   int64
}

// UploadHistoryEntry is one row of the upload_history table: a record of
// a file ingested into one of the snapshot/sales/schedule tables.
type UploadHistoryEntry struct {
	ID           int64
	Source       string
	Filename     string
	UploadedAt   time.Time
	RowsImported int64
	Status       string
	ErrorDetail  sql.NullString
}

// CreateAuditLogParams contains parameters for creating an audit log entry.
type CreateAuditLogParams struct {
	EntityType string
	EntityID   sql.NullString
	Operation  string
	UserID     sql.NullString
	UserName   sql.NullString
	Metadata   json.RawMessage
	IPAddress  sql.NullString
	UserAgent  sql.NullString
}

// GetAuditLogsParams contains parameters for querying audit logs.
type GetAuditLogsParams struct {
	EntityType sql.NullString
	Operation  sql.NullString
	UserID     sql.NullString
	StartTime  sql.NullTime
	EndTime    sql.NullTime
	Limit      int32
}

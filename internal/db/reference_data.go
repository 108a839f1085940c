package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
)

// ========================================
// FACTORIES
// ========================================

func (s *Store) ListActiveFactories(ctx context.Context) ([]Factory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, origin_port, production_lead_days, transport_to_port_days,
		       cutoff_day, unit_type, active, sort_order
		FROM factories
		WHERE active = true
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, apperr.Wrap("list active factories", err)
	}
	defer rows.Close()

	var out []Factory
	for rows.Next() {
		f, err := scanFactory(rows)
		if err != nil {
			return nil, apperr.Wrap("scan factory", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetFactory(ctx context.Context, id string) (Factory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, origin_port, production_lead_days, transport_to_port_days,
		       cutoff_day, unit_type, active, sort_order
		FROM factories
		WHERE id = $1
	`, id)
	f, err := scanFactory(row)
	if err == sql.ErrNoRows {
		return Factory{}, apperr.NotFound(fmt.Sprintf("factory %s not found", id))
	}
	if err != nil {
		return Factory{}, apperr.Wrap("get factory", err)
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFactory(r rowScanner) (Factory, error) {
	var f Factory
	var cutoffDay int
	err := r.Scan(
		&f.ID, &f.Name, &f.OriginPort, &f.ProductionLeadDays, &f.TransportToPortDays,
		&cutoffDay, &f.UnitType, &f.Active, &f.SortOrder,
	)
	f.CutoffDay = time.Weekday(cutoffDay)
	return f, err
}

// ========================================
// PRODUCTS
// ========================================

func (s *Store) ListActiveProductsByFactory(ctx context.Context, factoryID string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, factory_id, category, rotation_tag, active, units_per_pallet
		FROM products
		WHERE factory_id = $1 AND active = true
		ORDER BY sku
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list active products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.FactoryID, &p.Category, &p.RotationTag,
			&p.Active, &p.UnitsPerPallet); err != nil {
			return nil, apperr.Wrap("scan product", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sku, factory_id, category, rotation_tag, active, units_per_pallet
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.SKU, &p.FactoryID, &p.Category, &p.RotationTag, &p.Active, &p.UnitsPerPallet)
	if err == sql.ErrNoRows {
		return Product{}, apperr.NotFound(fmt.Sprintf("product %s not found", id))
	}
	if err != nil {
		return Product{}, apperr.Wrap("get product", err)
	}
	return p, nil
}

// ========================================
// INVENTORY (latest-per-source view, spec §4.1)
// ========================================

// ListInventorySnapshots returns, for every product of a factory, the
// most recent row from each of the three independent inventory sources.
// Sources are deliberately queried independently: a product missing one
// source's row still returns with that component at zero (spec §3).
func (s *Store) ListInventorySnapshots(ctx context.Context, factoryID string) (map[string]InventorySnapshot, error) {
	out := make(map[string]InventorySnapshot)

	warehouseRows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (ws.product_id) ws.product_id, ws.quantity_m2, ws.snapshot_date
		FROM warehouse_snapshots ws
		JOIN products p ON p.id = ws.product_id
		WHERE p.factory_id = $1
		ORDER BY ws.product_id, ws.snapshot_date DESC
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list warehouse snapshots", err)
	}
	defer warehouseRows.Close()
	for warehouseRows.Next() {
		var productID string
		snap := InventorySnapshot{}
		if err := warehouseRows.Scan(&productID, &snap.WarehouseM2, &snap.WarehouseAsOf); err != nil {
			return nil, apperr.Wrap("scan warehouse snapshot", err)
		}
		snap.ProductID = productID
		out[productID] = mergeSnapshot(out[productID], snap, "warehouse")
	}
	if err := warehouseRows.Err(); err != nil {
		return nil, apperr.Wrap("iterate warehouse snapshots", err)
	}

	factoryRows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (fs.product_id) fs.product_id, fs.quantity_m2, fs.snapshot_date
		FROM factory_snapshots fs
		JOIN products p ON p.id = fs.product_id
		WHERE p.factory_id = $1
		ORDER BY fs.product_id, fs.snapshot_date DESC
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list factory snapshots", err)
	}
	defer factoryRows.Close()
	for factoryRows.Next() {
		var productID string
		snap := InventorySnapshot{}
		if err := factoryRows.Scan(&productID, &snap.FactoryAvailableM2, &snap.FactoryAsOf); err != nil {
			return nil, apperr.Wrap("scan factory snapshot", err)
		}
		snap.ProductID = productID
		out[productID] = mergeSnapshot(out[productID], snap, "factory")
	}
	if err := factoryRows.Err(); err != nil {
		return nil, apperr.Wrap("iterate factory snapshots", err)
	}

	transitRows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (ts.product_id) ts.product_id, ts.quantity_m2, ts.snapshot_date
		FROM transit_snapshots ts
		JOIN products p ON p.id = ts.product_id
		WHERE p.factory_id = $1
		ORDER BY ts.product_id, ts.snapshot_date DESC
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list transit snapshots", err)
	}
	defer transitRows.Close()
	for transitRows.Next() {
		var productID string
		snap := InventorySnapshot{}
		if err := transitRows.Scan(&productID, &snap.InTransitM2, &snap.InTransitAsOf); err != nil {
			return nil, apperr.Wrap("scan transit snapshot", err)
		}
		snap.ProductID = productID
		out[productID] = mergeSnapshot(out[productID], snap, "transit")
	}
	if err := transitRows.Err(); err != nil {
		return nil, apperr.Wrap("iterate transit snapshots", err)
	}

	return out, nil
}

func mergeSnapshot(existing, incoming InventorySnapshot, source string) InventorySnapshot {
	existing.ProductID = incoming.ProductID
	switch source {
	case "warehouse":
		existing.WarehouseM2 = incoming.WarehouseM2
		existing.WarehouseAsOf = incoming.WarehouseAsOf
	case "factory":
		existing.FactoryAvailableM2 = incoming.FactoryAvailableM2
		existing.FactoryAsOf = incoming.FactoryAsOf
	case "transit":
		existing.InTransitM2 = incoming.InTransitM2
		existing.InTransitAsOf = incoming.InTransitAsOf
	}
	return existing
}

// ========================================
// SALES (feeds C2 velocity)
// ========================================

func (s *Store) ListSalesSince(ctx context.Context, factoryID string, since time.Time) ([]SalesRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.product_id, sr.week_start, sr.quantity_m2, sr.customer_normalized, sr.total_price_usd
		FROM sales sr
		JOIN products p ON p.id = sr.product_id
		WHERE p.factory_id = $1 AND sr.week_start >= $2
		ORDER BY sr.product_id, sr.week_start
	`, factoryID, since)
	if err != nil {
		return nil, apperr.Wrap("list sales", err)
	}
	defer rows.Close()

	var out []SalesRecord
	for rows.Next() {
		var r SalesRecord
		if err := rows.Scan(&r.ProductID, &r.WeekStart, &r.QuantityM2, &r.CustomerNormalized, &r.TotalPriceUSD); err != nil {
			return nil, apperr.Wrap("scan sales record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ========================================
// PRODUCTION SCHEDULE
// ========================================

func (s *Store) ListProductionSchedule(ctx context.Context, factoryID string) ([]ProductionScheduleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT psr.id, psr.product_id, psr.status, psr.requested_m2, psr.completed_m2, psr.estimated_delivery_date
		FROM production_schedule psr
		JOIN products p ON p.id = psr.product_id
		WHERE p.factory_id = $1 AND psr.status IN ('scheduled', 'in_progress')
		ORDER BY psr.estimated_delivery_date
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list production schedule", err)
	}
	defer rows.Close()

	var out []ProductionScheduleRow
	for rows.Next() {
		var r ProductionScheduleRow
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Status, &r.RequestedM2, &r.CompletedM2, &r.EstimatedDeliveryDate); err != nil {
			return nil, apperr.Wrap("scan production row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AverageCompletedProductionDays computes the mean lead time of recently
// completed production rows, falling back to 7 days when there is no
// history (used by the order builder's factory-request section, §4.7.1).
func (s *Store) AverageCompletedProductionDays(ctx context.Context, factoryID string) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(EXTRACT(DAY FROM (psr.estimated_delivery_date - psr.created_at)))
		FROM production_schedule psr
		JOIN products p ON p.id = psr.product_id
		WHERE p.factory_id = $1 AND psr.status = 'completed'
	`, factoryID).Scan(&avg)
	if err != nil {
		return 7, apperr.Wrap("average completed production days", err)
	}
	if !avg.Valid {
		return 7, nil
	}
	return avg.Float64, nil
}

// ========================================
// BOATS & ROUTES
// ========================================

func (s *Store) ListBoatsInWindow(ctx context.Context, originPort string, from, to time.Time) ([]Boat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vessel_name, origin_port, destination_port, departure_date, arrival_date, status, shipping_line
		FROM boat_schedules
		WHERE origin_port = $1 AND departure_date > $2 AND departure_date <= $3
		  AND status IN ('available', 'booked')
		ORDER BY departure_date
	`, originPort, from, to)
	if err != nil {
		return nil, apperr.Wrap("list boats", err)
	}
	defer rows.Close()

	var out []Boat
	for rows.Next() {
		var b Boat
		if err := rows.Scan(&b.ID, &b.VesselName, &b.OriginPort, &b.DestinationPort,
			&b.DepartureDate, &b.ArrivalDate, &b.Status, &b.ShippingLine); err != nil {
			return nil, apperr.Wrap("scan boat", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBoat(ctx context.Context, id string) (Boat, error) {
	var b Boat
	err := s.db.QueryRowContext(ctx, `
		SELECT id, vessel_name, origin_port, destination_port, departure_date, arrival_date, status, shipping_line
		FROM boat_schedules WHERE id = $1
	`, id).Scan(&b.ID, &b.VesselName, &b.OriginPort, &b.DestinationPort,
		&b.DepartureDate, &b.ArrivalDate, &b.Status, &b.ShippingLine)
	if err == sql.ErrNoRows {
		return Boat{}, apperr.NotFound(fmt.Sprintf("boat %s not found", id))
	}
	if err != nil {
		return Boat{}, apperr.Wrap("get boat", err)
	}
	return b, nil
}

func (s *Store) ListActiveRoutesByPort(ctx context.Context, originPort string) ([]ShippingRoute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, origin_port, destination_port, departure_day_of_week, transit_days, frequency_weeks, carrier, active
		FROM shipping_routes
		WHERE origin_port = $1 AND active = true
	`, originPort)
	if err != nil {
		return nil, apperr.Wrap("list shipping routes", err)
	}
	defer rows.Close()

	var out []ShippingRoute
	for rows.Next() {
		var r ShippingRoute
		var dow int
		if err := rows.Scan(&r.ID, &r.OriginPort, &r.DestinationPort, &dow, &r.TransitDays,
			&r.FrequencyWeeks, &r.Carrier, &r.Active); err != nil {
			return nil, apperr.Wrap("scan shipping route", err)
		}
		r.DepartureWeekday = time.Weekday(dow)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ========================================
// CUSTOMER PATTERNS
// ========================================

func (s *Store) ListCustomerPatternsByFactory(ctx context.Context, factoryID string) ([]CustomerPattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cp.product_id, cp.customer_name, cp.tier, cp.last_order_date,
		       cp.avg_gap_days, cp.avg_quantity_m2, cp.revenue_usd
		FROM customer_patterns cp
		JOIN products p ON p.id = cp.product_id
		WHERE p.factory_id = $1
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list customer patterns", err)
	}
	defer rows.Close()

	var out []CustomerPattern
	for rows.Next() {
		var c CustomerPattern
		if err := rows.Scan(&c.ProductID, &c.CustomerName, &c.Tier, &c.LastOrderDate,
			&c.AvgGapDays, &c.AvgQuantityM2, &c.RevenueUSD); err != nil {
			return nil, apperr.Wrap("scan customer pattern", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

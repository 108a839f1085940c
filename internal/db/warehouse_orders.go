package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/shopspring/decimal"
)

// PendingSKUSummary is one entry of the pending-by-SKU map C8 exposes so
// the simulator does not double-order against an already-exported order
// (spec §4.8).
type PendingSKUSummary struct {
	SKU                    string
	TotalM2                decimal.Decimal
	TotalPallets           int
	BoatName               string
	EstimatedWarehouseDate sql.NullTime
	OrderIDs               []string
}

// GetPendingBySKU returns the pending-order summary for every SKU with at
// least one pending WarehouseOrder.
func (s *Store) GetPendingBySKU(ctx context.Context, factoryID string) (map[string]PendingSKUSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.sku, woi.m2, woi.pallets, wo.id, wo.boat_id, b.vessel_name, b.arrival_date
		FROM warehouse_order_items woi
		JOIN warehouse_orders wo ON wo.id = woi.order_id
		JOIN products p ON p.id = woi.product_id
		JOIN boat_schedules b ON b.id = wo.boat_id
		WHERE wo.status = 'pending' AND p.factory_id = $1
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("get pending by sku", err)
	}
	defer rows.Close()

	out := make(map[string]PendingSKUSummary)
	for rows.Next() {
		var sku, orderID, boatID, vesselName string
		var m2 decimal.Decimal
		var pallets int
		var arrivalDate sql.NullTime
		if err := rows.Scan(&sku, &m2, &pallets, &orderID, &boatID, &vesselName, &arrivalDate); err != nil {
			return nil, apperr.Wrap("scan pending sku row", err)
		}
		entry := out[sku]
		entry.SKU = sku
		entry.TotalM2 = entry.TotalM2.Add(m2)
		entry.TotalPallets += pallets
		entry.BoatName = vesselName
		entry.EstimatedWarehouseDate = arrivalDate
		entry.OrderIDs = append(entry.OrderIDs, orderID)
		out[sku] = entry
	}
	return out, rows.Err()
}

// WarehouseOrderSummary is a lightweight projection of a warehouse order
// plus its boat's transit dates, used to bucket orders into Kanban stages
// without the core depending on vendor-specific date arithmetic in SQL.
type WarehouseOrderSummary struct {
	ID            string
	Status        WarehouseOrderStatus
	BoatID        string
	VesselName    string
	DepartureDate time.Time
	ArrivalDate   time.Time
	TotalPallets  int
	TotalM2       decimal.Decimal
}

// ListOpenWarehouseOrders returns every non-cancelled warehouse order
// joined with its boat's schedule, for pipeline-overview bucketing.
func (s *Store) ListOpenWarehouseOrders(ctx context.Context) ([]WarehouseOrderSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wo.id, wo.status, b.id, b.vessel_name, b.departure_date, b.arrival_date,
		       wo.total_pallets, wo.total_m2
		FROM warehouse_orders wo
		JOIN boat_schedules b ON b.id = wo.boat_id
		WHERE wo.status != 'cancelled'
		ORDER BY b.arrival_date
	`)
	if err != nil {
		return nil, apperr.Wrap("list open warehouse orders", err)
	}
	defer rows.Close()

	var out []WarehouseOrderSummary
	for rows.Next() {
		var w WarehouseOrderSummary
		if err := rows.Scan(&w.ID, &w.Status, &w.BoatID, &w.VesselName, &w.DepartureDate, &w.ArrivalDate,
			&w.TotalPallets, &w.TotalM2); err != nil {
			return nil, apperr.Wrap("scan open warehouse order", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateWarehouseOrder cancels any existing pending order for the same
// boat, then inserts the new order and its items as one logical
// transaction (spec §4.8, invariant 9: re-export law).
func (s *Store) CreateWarehouseOrder(ctx context.Context, order WarehouseOrder) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", apperr.Wrap("begin warehouse order create", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE warehouse_orders SET status = 'cancelled'
		WHERE boat_id = $1 AND status = 'pending'
	`, order.BoatID); err != nil {
		return "", apperr.Wrap("cancel prior pending order", err)
	}

	var orderID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO warehouse_orders (
			boat_id, status, total_pallets, total_m2, total_containers,
			total_weight_kg, estimated_warehouse_date, created_at
		) VALUES ($1, 'pending', $2, $3, $4, $5, $6, NOW())
		RETURNING id
	`, order.BoatID, order.TotalPallets, order.TotalM2, order.TotalContainers,
		order.TotalWeightKg, order.EstimatedWarehouseDate).Scan(&orderID)
	if err != nil {
		return "", apperr.Wrap("insert warehouse order", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO warehouse_order_items (order_id, product_id, pallets, m2, bl_number, score)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return "", apperr.Wrap("prepare warehouse order item insert", err)
	}
	defer stmt.Close()

	for _, item := range order.Items {
		if _, err := stmt.ExecContext(ctx, orderID, item.ProductID, item.Pallets, item.M2, item.BLNumber, item.Score); err != nil {
			return "", apperr.Wrap("insert warehouse order item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperr.Wrap("commit warehouse order create", err)
	}
	return orderID, nil
}

// UpdateWarehouseOrderStatus enforces the ledger's state machine
// (pending -> shipped -> received, pending -> cancelled). "Received" has
// no side effect beyond the status change (spec §9.2 open question,
// resolved: ledger-only).
func (s *Store) UpdateWarehouseOrderStatus(ctx context.Context, orderID string, to WarehouseOrderStatus) error {
	var current WarehouseOrderStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM warehouse_orders WHERE id = $1`, orderID).Scan(&current)
	if err == sql.ErrNoRows {
		return apperr.NotFound(fmt.Sprintf("warehouse order %s not found", orderID))
	}
	if err != nil {
		return apperr.Wrap("load warehouse order status", err)
	}

	next, err := NextWarehouseOrderState(current, to)
	if err != nil {
		return apperr.Conflict(err.Error())
	}

	_, err = s.db.ExecContext(ctx, `UPDATE warehouse_orders SET status = $1 WHERE id = $2`, next, orderID)
	if err != nil {
		return apperr.Wrap("update warehouse order status", err)
	}
	return nil
}

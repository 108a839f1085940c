// Package core wires the reference-data store together with every
// analytic component (velocity, boat merger, simulator, deadlines,
// factory signal, recommendations, order builder, XLSX export) into the
// two requests the HTTP surface exposes: the planning horizon and the
// order builder (spec §2, §6.1).
package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/boatmerge"
	"github.com/pinggolf/tile-supply-planner/internal/db"
	"github.com/pinggolf/tile-supply-planner/internal/factorysignal"
	"github.com/pinggolf/tile-supply-planner/internal/orderbuilder"
	"github.com/pinggolf/tile-supply-planner/internal/recommend"
	"github.com/pinggolf/tile-supply-planner/internal/simulator"
	"github.com/pinggolf/tile-supply-planner/internal/throttle"
	"github.com/pinggolf/tile-supply-planner/internal/velocity"
)

// Core is the stateless planning engine: every request recomputes from
// the store, per spec §5 ("no mutable global cache of projections").
type Core struct {
	Store *db.Store
	Now   func() time.Time // injected clock so requests can be replayed deterministically

	// Limiter bounds concurrent C1 read batches (C12); nil disables
	// throttling, which every unit test relies on implicitly.
	Limiter *throttle.Limiter
}

// New builds a Core over an already-constructed Store, defaulting the
// clock to time.Now and running unthrottled. Use WithLimiter to attach
// the concurrency cap once a Limiter is constructed from config.
func New(store *db.Store) *Core {
	return &Core{Store: store, Now: time.Now}
}

// WithLimiter attaches a concurrency throttle and returns the same Core
// for chaining at wiring time.
func (c *Core) WithLimiter(l *throttle.Limiter) *Core {
	c.Limiter = l
	return c
}

func (c *Core) today() time.Time {
	return c.Now().Truncate(24 * time.Hour)
}

// productContext bundles one product's derived signals for reuse across
// the simulator, factory-signal, and recommendation stages.
type productContext struct {
	product        db.Product
	trend          velocity.TrendMetrics
	demandScore    decimal.Decimal
	palletDivisor  decimal.Decimal
	snapshot       db.InventorySnapshot
	productionRows []db.ProductionScheduleRow
}

// loadProductContexts performs C1's batched reads and derives velocity
// and demand score for every active product of a factory.
func (c *Core) loadProductContexts(ctx context.Context, factory db.Factory, today time.Time) (map[string]*productContext, error) {
	if c.Limiter != nil {
		release, err := c.Limiter.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire query slot: %w", err)
		}
		defer release()
	}

	products, err := c.Store.ListActiveProductsByFactory(ctx, factory.ID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	snapshots, err := c.Store.ListInventorySnapshots(ctx, factory.ID)
	if err != nil {
		return nil, fmt.Errorf("list inventory snapshots: %w", err)
	}

	sales, err := c.Store.ListSalesSince(ctx, factory.ID, today.AddDate(0, 0, -180))
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	salesByProduct := map[string][]db.SalesRecord{}
	for _, s := range sales {
		salesByProduct[s.ProductID] = append(salesByProduct[s.ProductID], s)
	}

	rows, err := c.Store.ListProductionSchedule(ctx, factory.ID)
	if err != nil {
		return nil, fmt.Errorf("list production schedule: %w", err)
	}
	rowsByProduct := map[string][]db.ProductionScheduleRow{}
	for _, r := range rows {
		rowsByProduct[r.ProductID] = append(rowsByProduct[r.ProductID], r)
	}

	patterns, err := c.Store.ListCustomerPatternsByFactory(ctx, factory.ID)
	if err != nil {
		return nil, fmt.Errorf("list customer patterns: %w", err)
	}
	patternsByProduct := map[string][]db.CustomerPattern{}
	for _, p := range patterns {
		patternsByProduct[p.ProductID] = append(patternsByProduct[p.ProductID], p)
	}

	out := make(map[string]*productContext, len(products))
	for _, p := range products {
		divisor := db.M2PerPallet
		if factory.UnitType == db.UnitTypeUnits && p.UnitsPerPallet.Valid {
			divisor = decimal.NewFromFloat(p.UnitsPerPallet.Float64)
		}
		out[p.ID] = &productContext{
			product:        p,
			trend:          velocity.Analyze(p.ID, salesByProduct[p.ID], today),
			demandScore:    recommend.CustomerDemandScore(patternsByProduct[p.ID], today),
			palletDivisor:  divisor,
			snapshot:       snapshots[p.ID],
			productionRows: rowsByProduct[p.ID],
		}
	}
	return out, nil
}

// Horizon is the full planning-horizon response for one factory.
type Horizon struct {
	Factory  db.Factory
	Boats    []simulator.BoatProjection
	SignalAt factorysignal.Result
}

// cascade bundles everything C4's Run produces plus the inputs that feed
// both PlanningHorizon and OrderBuilder (C4->C7 edge, spec §2), so the two
// entry points run the simulator exactly once from shared code.
type cascade struct {
	contexts     map[string]*productContext
	merged       []db.Boat
	draftsByBoat map[string]db.Draft
	projections  []simulator.BoatProjection
}

// runCascade loads reference data, merges the boat sequence, and runs C4
// over a horizon window, netting any pending warehouse-order quantities
// (C8) out of each product's starting stock so the cascade does not
// double-order (spec §4.8, §2's C8->C4 data-flow edge).
func (c *Core) runCascade(ctx context.Context, factory db.Factory, today time.Time, horizonDays int) (cascade, error) {
	contexts, err := c.loadProductContexts(ctx, factory, today)
	if err != nil {
		return cascade{}, err
	}

	pendingBySKU, err := c.Store.GetPendingBySKU(ctx, factory.ID)
	if err != nil {
		return cascade{}, fmt.Errorf("get pending by sku: %w", err)
	}

	routes, err := c.Store.ListActiveRoutesByPort(ctx, factory.OriginPort)
	if err != nil {
		return cascade{}, fmt.Errorf("list routes: %w", err)
	}
	realBoats, err := c.Store.ListBoatsInWindow(ctx, factory.OriginPort, today, today.AddDate(0, 0, horizonDays))
	if err != nil {
		return cascade{}, fmt.Errorf("list boats: %w", err)
	}
	merged := boatmerge.Merge(realBoats, routes, today, horizonDays)

	drafts, err := c.Store.ListDraftsByFactory(ctx, factory.ID)
	if err != nil {
		return cascade{}, fmt.Errorf("list drafts: %w", err)
	}
	draftsByBoat := make(map[string]db.Draft, len(drafts))
	var draftItems []simulator.DraftItemInput
	for _, d := range drafts {
		draftsByBoat[d.BoatID] = d
		for _, item := range d.Items {
			draftItems = append(draftItems, simulator.DraftItemInput{
				BoatID:          d.BoatID,
				ProductID:       item.ProductID,
				SelectedPallets: item.SelectedPallets,
				Committed:       d.State.IsCommitted(),
			})
		}
	}

	productIDs := make([]string, 0, len(contexts))
	for id := range contexts {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	productInputs := make([]simulator.ProductInput, 0, len(productIDs))
	for _, id := range productIDs {
		pc := contexts[id]
		productInputs = append(productInputs, simulator.ProductInput{
			ProductID:           pc.product.ID,
			SKU:                 pc.product.SKU,
			Warehouse0:          pc.snapshot.WarehouseM2,
			InTransit0:          pc.snapshot.InTransitM2,
			Siesa0:              pc.snapshot.FactoryAvailableM2,
			Velocity:            pc.trend.DailyVelocityM2,
			PalletDivisor:       pc.palletDivisor,
			ProductionRows:      pc.productionRows,
			DemandScore:         pc.demandScore,
			TransportToPortDays: factory.TransportToPortDays,
			PendingM2:           pendingBySKU[pc.product.SKU].TotalM2,
		})
	}

	projections := simulator.Run(simulator.Input{
		Factory:      factory,
		Boats:        merged,
		Products:     productInputs,
		DraftItems:   draftItems,
		DraftsByBoat: draftsByBoat,
		Today:        today,
	})

	return cascade{contexts: contexts, merged: merged, draftsByBoat: draftsByBoat, projections: projections}, nil
}

// PlanningHorizon runs C2-C6 for one factory over the requested number of
// months (spec §4, §6.1 "GET /forward-simulation/horizon").
func (c *Core) PlanningHorizon(ctx context.Context, factoryID string, months int) (Horizon, error) {
	if months < 1 {
		months = 1
	}
	if months > 12 {
		months = 12
	}

	factory, err := c.Store.GetFactory(ctx, factoryID)
	if err != nil {
		return Horizon{}, fmt.Errorf("get factory: %w", err)
	}

	today := c.today()
	horizonDays := months * 30

	cas, err := c.runCascade(ctx, factory, today, horizonDays)
	if err != nil {
		return Horizon{}, err
	}

	signal := c.computeFactorySignal(cas.contexts, factory, cas.merged, cas.draftsByBoat, today)

	return Horizon{Factory: factory, Boats: cas.projections, SignalAt: signal}, nil
}

func (c *Core) computeFactorySignal(contexts map[string]*productContext, factory db.Factory, boats []db.Boat, draftsByBoat map[string]db.Draft, today time.Time) factorysignal.Result {
	inputs := make([]factorysignal.ProductSignalInput, 0, len(contexts))
	for _, pc := range contexts {
		committed := decimal.Zero
		for _, d := range draftsByBoat {
			if !d.State.IsCommitted() {
				continue
			}
			for _, item := range d.Items {
				if item.ProductID == pc.product.ID {
					committed = committed.Add(decimal.NewFromInt(int64(item.SelectedPallets)).Mul(pc.palletDivisor))
				}
			}
		}

		inProduction := decimal.Zero
		var activeRow *db.ProductionScheduleRow
		for i := range pc.productionRows {
			row := pc.productionRows[i]
			if row.Status == db.ProductionScheduled || row.Status == db.ProductionInProgress {
				inProduction = inProduction.Add(row.RemainingM2())
				if activeRow == nil || row.EstimatedDeliveryDate.Before(activeRow.EstimatedDeliveryDate) {
					r := row
					activeRow = &r
				}
			}
		}

		inputs = append(inputs, factorysignal.ProductSignalInput{
			ProductID:       pc.product.ID,
			CommittedToShip: committed,
			InProduction:    inProduction,
			Siesa:           pc.snapshot.FactoryAvailableM2,
			InTransitBulk:   pc.snapshot.InTransitM2,
			Velocity:        pc.trend.DailyVelocityM2,
			ActiveRow:       activeRow,
		})
	}

	return factorysignal.Compute(inputs, factory, boats, today)
}

// OrderBuilderPlan is the order-builder response for one target boat.
type OrderBuilderPlan struct {
	Boat db.Boat
	Plan orderbuilder.Plan
}

// OrderBuilder runs C7 for a target boat, reusing C4's cascade projection
// for that boat rather than recomputing a suggested quantity independently
// (spec §4.7: "given the simulator's output for the target boat, produce a
// three-section plan"; §2's C4->C7 edge).
func (c *Core) OrderBuilder(ctx context.Context, factoryID, boatID string, numBLs int, excludedSKUs map[string]bool) (OrderBuilderPlan, error) {
	factory, err := c.Store.GetFactory(ctx, factoryID)
	if err != nil {
		return OrderBuilderPlan{}, fmt.Errorf("get factory: %w", err)
	}

	boat, err := c.Store.GetBoat(ctx, boatID)
	if err != nil {
		return OrderBuilderPlan{}, fmt.Errorf("get boat: %w", err)
	}

	today := c.today()
	horizonDays := int(boat.ArrivalDate.Sub(today).Hours()/24) + 120

	cas, err := c.runCascade(ctx, factory, today, horizonDays)
	if err != nil {
		return OrderBuilderPlan{}, err
	}

	var targetProj *simulator.BoatProjection
	for i := range cas.projections {
		if cas.projections[i].Boat.ID == boat.ID {
			targetProj = &cas.projections[i]
			break
		}
	}
	if targetProj == nil {
		return OrderBuilderPlan{}, apperr.NotFound(fmt.Sprintf("boat %s has no cascade projection in this factory's horizon", boatID))
	}
	detailByProduct := make(map[string]simulator.ProductDetail, len(targetProj.ProductDetails))
	for _, d := range targetProj.ProductDetails {
		detailByProduct[d.ProductID] = d
	}

	var nextArrival, secondArrival time.Time
	for _, b := range cas.merged {
		if b.ArrivalDate.After(today) {
			if nextArrival.IsZero() {
				nextArrival = b.ArrivalDate
			} else if secondArrival.IsZero() {
				secondArrival = b.ArrivalDate
				break
			}
		}
	}

	candidates := make([]orderbuilder.CandidateProduct, 0, len(cas.contexts))
	for _, pc := range cas.contexts {
		detail := detailByProduct[pc.product.ID]
		suggestedM2 := decimal.NewFromInt(int64(detail.SuggestedPallets)).Mul(pc.palletDivisor)

		stockout := recommend.ClassifyStockout(pc.product.ID, pc.snapshot.WarehouseM2, pc.snapshot.InTransitM2, pc.trend.DailyVelocityM2, today, nextArrival, secondArrival)

		candidates = append(candidates, orderbuilder.CandidateProduct{
			ProductID:             pc.product.ID,
			SKU:                   pc.product.SKU,
			Warehouse:             pc.snapshot.WarehouseM2,
			InTransit:             pc.snapshot.InTransitM2,
			Siesa:                 pc.snapshot.FactoryAvailableM2,
			CompletedProductionM2: completedProductionM2(pc.productionRows),
			SuggestedM2:           suggestedM2,
			LatestRow:             latestRow(pc.productionRows),
			Velocity:              pc.trend.DailyVelocityM2,
			Stockout:              stockout,
			DemandScore:           pc.demandScore,
			Trend:                 pc.trend.Direction,
			ChangePct:             pc.trend.ChangePct,
		})
	}

	if numBLs < 1 || numBLs > 5 {
		numBLs = 1
	}

	plan := orderbuilder.Build(candidates, numBLs, excludedSKUs, today, avgProductionDays(factory), cas.merged)
	return OrderBuilderPlan{Boat: boat, Plan: plan}, nil
}

// avgProductionDays proxies spec §4.7.1.3.1's "mean over completed rows"
// with the factory's configured production lead time, falling back to
// the spec's literal default of 7 days when unset. It does not call the
// store's AverageCompletedProductionDays.
func avgProductionDays(factory db.Factory) int {
	if factory.ProductionLeadDays > 0 {
		return factory.ProductionLeadDays
	}
	return 7
}

func completedProductionM2(rows []db.ProductionScheduleRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		if r.Status == db.ProductionCompleted {
			total = total.Add(r.CompletedM2)
		}
	}
	return total
}

func latestRow(rows []db.ProductionScheduleRow) *db.ProductionScheduleRow {
	var latest *db.ProductionScheduleRow
	for i := range rows {
		if rows[i].Status != db.ProductionScheduled {
			continue
		}
		if latest == nil || rows[i].EstimatedDeliveryDate.After(latest.EstimatedDeliveryDate) {
			r := rows[i]
			latest = &r
		}
	}
	return latest
}

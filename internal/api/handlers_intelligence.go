package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/db"
	"github.com/pinggolf/tile-supply-planner/internal/diagnostics"
	"github.com/pinggolf/tile-supply-planner/internal/recommend"
)

// intelligenceParams reads the three query parameters shared by every
// /intelligence/* endpoint (spec §6.1).
type intelligenceParams struct {
	periodDays     int
	comparisonDays int
	limit          int
}

func parseIntelligenceParams(r *http.Request) intelligenceParams {
	q := r.URL.Query()
	p := intelligenceParams{periodDays: 30, comparisonDays: 30, limit: 20}
	if v, err := strconv.Atoi(q.Get("period_days")); err == nil && v > 0 {
		p.periodDays = v
	}
	if v, err := strconv.Atoi(q.Get("comparison_days")); err == nil && v > 0 {
		p.comparisonDays = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.limit = v
	}
	return p
}

func (s *Server) loadSalesWindow(r *http.Request, p intelligenceParams) ([]db.SalesRecord, time.Time, error) {
	factories, err := s.store.ListActiveFactories(r.Context())
	if err != nil {
		return nil, time.Time{}, err
	}
	today := time.Now().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(p.periodDays + p.comparisonDays))

	var all []db.SalesRecord
	for _, f := range factories {
		sales, err := s.store.ListSalesSince(r.Context(), f.ID, since)
		if err != nil {
			return nil, time.Time{}, err
		}
		all = append(all, sales...)
	}
	return all, today, nil
}

func splitWindows(sales []db.SalesRecord, today time.Time, p intelligenceParams, key func(db.SalesRecord) string) map[string][2]decimal.Decimal {
	currentStart := today.AddDate(0, 0, -p.periodDays)
	priorStart := currentStart.AddDate(0, 0, -p.comparisonDays)

	out := make(map[string][2]decimal.Decimal)
	for _, rec := range sales {
		k := key(rec)
		entry := out[k]
		if !rec.WeekStart.Before(currentStart) {
			entry[0] = entry[0].Add(rec.QuantityM2)
		} else if !rec.WeekStart.Before(priorStart) {
			entry[1] = entry[1].Add(rec.QuantityM2)
		}
		out[k] = entry
	}
	return out
}

func changeDirection(current, prior decimal.Decimal) (string, decimal.Decimal) {
	if prior.IsZero() {
		if current.IsPositive() {
			return "up", decimal.NewFromInt(100)
		}
		return "stable", decimal.Zero
	}
	pct := current.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100))
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromInt(5)):
		return "up", pct
	case pct.LessThanOrEqual(decimal.NewFromInt(-5)):
		return "down", pct
	default:
		return "stable", pct
	}
}

// productTrendEntry is the response shape for GET /intelligence/products.
type productTrendEntry struct {
	ProductID string          `json:"product_id"`
	CurrentM2 decimal.Decimal `json:"current_m2"`
	PriorM2   decimal.Decimal `json:"prior_m2"`
	ChangePct decimal.Decimal `json:"change_pct"`
	Direction string          `json:"direction"`
}

func (s *Server) handleIntelligenceProducts(w http.ResponseWriter, r *http.Request) {
	p := parseIntelligenceParams(r)
	sales, today, err := s.loadSalesWindow(r, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	windows := splitWindows(sales, today, p, func(rec db.SalesRecord) string { return rec.ProductID })

	entries := make([]productTrendEntry, 0, len(windows))
	for productID, w2 := range windows {
		dir, pct := changeDirection(w2[0], w2[1])
		entries = append(entries, productTrendEntry{
			ProductID: productID, CurrentM2: w2[0], PriorM2: w2[1], ChangePct: pct, Direction: dir,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CurrentM2.GreaterThan(entries[j].CurrentM2) })
	if len(entries) > p.limit {
		entries = entries[:p.limit]
	}
	writeJSON(w, http.StatusOK, entries)
}

// customerTrendEntry is the response shape for GET /intelligence/customers.
type customerTrendEntry struct {
	Customer   string          `json:"customer"`
	CurrentM2  decimal.Decimal `json:"current_m2"`
	PriorM2    decimal.Decimal `json:"prior_m2"`
	ChangePct  decimal.Decimal `json:"change_pct"`
	Direction  string          `json:"direction"`
	RevenueUSD decimal.Decimal `json:"revenue_usd"`
	Tier       db.CustomerTier `json:"tier"`
}

func (s *Server) handleIntelligenceCustomers(w http.ResponseWriter, r *http.Request) {
	p := parseIntelligenceParams(r)
	sales, today, err := s.loadSalesWindow(r, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	windows := splitWindows(sales, today, p, func(rec db.SalesRecord) string {
		if rec.CustomerNormalized.Valid {
			return rec.CustomerNormalized.String
		}
		return "UNKNOWN"
	})

	revenue := make(map[string]decimal.Decimal)
	for _, rec := range sales {
		customer := "UNKNOWN"
		if rec.CustomerNormalized.Valid {
			customer = rec.CustomerNormalized.String
		}
		if rec.TotalPriceUSD.Valid {
			revenue[customer] = revenue[customer].Add(rec.TotalPriceUSD.Decimal)
		}
	}
	tiers := recommend.AssignCustomerTiers(revenue)

	entries := make([]customerTrendEntry, 0, len(windows))
	for customer, w2 := range windows {
		dir, pct := changeDirection(w2[0], w2[1])
		entries = append(entries, customerTrendEntry{
			Customer: customer, CurrentM2: w2[0], PriorM2: w2[1], ChangePct: pct, Direction: dir,
			RevenueUSD: revenue[customer], Tier: tiers[customer],
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RevenueUSD.GreaterThan(entries[j].RevenueUSD) })
	if len(entries) > p.limit {
		entries = entries[:p.limit]
	}
	writeJSON(w, http.StatusOK, entries)
}

// extractCountry pulls a leading "<CODE> - " country prefix off a
// normalized customer name, falling back to "UNKNOWN" when absent.
func extractCountry(customer string) string {
	if idx := strings.Index(customer, " - "); idx > 0 && idx <= 4 {
		return customer[:idx]
	}
	return "UNKNOWN"
}

type countryTrendEntry struct {
	Country   string          `json:"country"`
	CurrentM2 decimal.Decimal `json:"current_m2"`
	PriorM2   decimal.Decimal `json:"prior_m2"`
	ChangePct decimal.Decimal `json:"change_pct"`
	Direction string          `json:"direction"`
}

func (s *Server) handleIntelligenceCountries(w http.ResponseWriter, r *http.Request) {
	p := parseIntelligenceParams(r)
	sales, today, err := s.loadSalesWindow(r, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	windows := splitWindows(sales, today, p, func(rec db.SalesRecord) string {
		if rec.CustomerNormalized.Valid {
			return extractCountry(rec.CustomerNormalized.String)
		}
		return "UNKNOWN"
	})

	entries := make([]countryTrendEntry, 0, len(windows))
	for country, w2 := range windows {
		dir, pct := changeDirection(w2[0], w2[1])
		entries = append(entries, countryTrendEntry{Country: country, CurrentM2: w2[0], PriorM2: w2[1], ChangePct: pct, Direction: dir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CurrentM2.GreaterThan(entries[j].CurrentM2) })
	if len(entries) > p.limit {
		entries = entries[:p.limit]
	}
	writeJSON(w, http.StatusOK, entries)
}

// dashboardSummary is the combined response for GET /intelligence/dashboard.
type dashboardSummary struct {
	TopProducts  []productTrendEntry  `json:"top_products"`
	TopCustomers []customerTrendEntry `json:"top_customers"`
	TopCountries []countryTrendEntry  `json:"top_countries"`
}

func (s *Server) handleIntelligenceDashboard(w http.ResponseWriter, r *http.Request) {
	p := parseIntelligenceParams(r)
	if p.limit > 5 {
		p.limit = 5
	}
	sales, today, err := s.loadSalesWindow(r, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	productWindows := splitWindows(sales, today, p, func(rec db.SalesRecord) string { return rec.ProductID })
	products := make([]productTrendEntry, 0, len(productWindows))
	for productID, w2 := range productWindows {
		dir, pct := changeDirection(w2[0], w2[1])
		products = append(products, productTrendEntry{ProductID: productID, CurrentM2: w2[0], PriorM2: w2[1], ChangePct: pct, Direction: dir})
	}
	sort.Slice(products, func(i, j int) bool { return products[i].CurrentM2.GreaterThan(products[j].CurrentM2) })
	if len(products) > p.limit {
		products = products[:p.limit]
	}

	revenue := make(map[string]decimal.Decimal)
	customerWindows := splitWindows(sales, today, p, func(rec db.SalesRecord) string {
		if rec.CustomerNormalized.Valid {
			return rec.CustomerNormalized.String
		}
		return "UNKNOWN"
	})
	for _, rec := range sales {
		customer := "UNKNOWN"
		if rec.CustomerNormalized.Valid {
			customer = rec.CustomerNormalized.String
		}
		if rec.TotalPriceUSD.Valid {
			revenue[customer] = revenue[customer].Add(rec.TotalPriceUSD.Decimal)
		}
	}
	tiers := recommend.AssignCustomerTiers(revenue)
	customers := make([]customerTrendEntry, 0, len(customerWindows))
	for customer, w2 := range customerWindows {
		dir, pct := changeDirection(w2[0], w2[1])
		customers = append(customers, customerTrendEntry{
			Customer: customer, CurrentM2: w2[0], PriorM2: w2[1], ChangePct: pct, Direction: dir,
			RevenueUSD: revenue[customer], Tier: tiers[customer],
		})
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].RevenueUSD.GreaterThan(customers[j].RevenueUSD) })
	if len(customers) > p.limit {
		customers = customers[:p.limit]
	}

	countryWindows := splitWindows(sales, today, p, func(rec db.SalesRecord) string {
		if rec.CustomerNormalized.Valid {
			return extractCountry(rec.CustomerNormalized.String)
		}
		return "UNKNOWN"
	})
	countries := make([]countryTrendEntry, 0, len(countryWindows))
	for country, w2 := range countryWindows {
		dir, pct := changeDirection(w2[0], w2[1])
		countries = append(countries, countryTrendEntry{Country: country, CurrentM2: w2[0], PriorM2: w2[1], ChangePct: pct, Direction: dir})
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].CurrentM2.GreaterThan(countries[j].CurrentM2) })
	if len(countries) > p.limit {
		countries = countries[:p.limit]
	}

	writeJSON(w, http.StatusOK, dashboardSummary{TopProducts: products, TopCustomers: customers, TopCountries: countries})
}

// pipelineStage groups open warehouse orders by Kanban column (spec §6.1).
type pipelineStage struct {
	Stage  string                     `json:"stage"`
	Orders []db.WarehouseOrderSummary `json:"orders"`
}

func (s *Server) handlePipelineOverview(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOpenWarehouseOrders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	today := time.Now().Truncate(24 * time.Hour)
	stages := map[string][]db.WarehouseOrderSummary{"ordered": {}, "shipped": {}, "in_transit": {}, "delivered": {}}

	for _, o := range orders {
		switch {
		case o.Status == db.WOPending:
			stages["ordered"] = append(stages["ordered"], o)
		case o.Status == db.WOReceived:
			if !o.ArrivalDate.Before(today.AddDate(0, 0, -30)) {
				stages["delivered"] = append(stages["delivered"], o)
			}
		case o.Status == db.WOShipped && today.Before(o.DepartureDate):
			stages["shipped"] = append(stages["shipped"], o)
		case o.Status == db.WOShipped && !today.Before(o.DepartureDate) && today.Before(o.ArrivalDate):
			stages["in_transit"] = append(stages["in_transit"], o)
		case o.Status == db.WOShipped && !today.Before(o.ArrivalDate):
			if !o.ArrivalDate.Before(today.AddDate(0, 0, -30)) {
				stages["delivered"] = append(stages["delivered"], o)
			}
		}
	}

	out := []pipelineStage{
		{Stage: "ordered", Orders: stages["ordered"]},
		{Stage: "shipped", Orders: stages["shipped"]},
		{Stage: "in_transit", Orders: stages["in_transit"]},
		{Stage: "delivered", Orders: stages["delivered"]},
	}
	writeJSON(w, http.StatusOK, out)
}

// stockoutSummaryEntry is one row of GET /dashboard/stockouts.
type stockoutSummaryEntry struct {
	FactoryID string `json:"factory_id"`
	ProductID string `json:"product_id"`
	Stockout  recommend.Stockout
}

func (s *Server) handleDashboardStockouts(w http.ResponseWriter, r *http.Request) {
	factories, err := s.store.ListActiveFactories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	today := time.Now().Truncate(24 * time.Hour)

	var out []stockoutSummaryEntry
	for _, f := range factories {
		products, err := s.store.ListActiveProductsByFactory(r.Context(), f.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		snapshots, err := s.store.ListInventorySnapshots(r.Context(), f.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sales, err := s.store.ListSalesSince(r.Context(), f.ID, today.AddDate(0, 0, -90))
		if err != nil {
			writeError(w, r, err)
			return
		}
		salesByProduct := make(map[string][]db.SalesRecord)
		for _, rec := range sales {
			salesByProduct[rec.ProductID] = append(salesByProduct[rec.ProductID], rec)
		}
		boats, err := s.store.ListBoatsInWindow(r.Context(), f.OriginPort, today, today.AddDate(0, 0, 120))
		if err != nil {
			writeError(w, r, err)
			return
		}
		var nextArrival, secondArrival time.Time
		if len(boats) > 0 {
			nextArrival = boats[0].ArrivalDate
		}
		if len(boats) > 1 {
			secondArrival = boats[1].ArrivalDate
		}

		for _, p := range products {
			snap := snapshots[p.ID]
			v := averageWeeklyVelocity(salesByProduct[p.ID])
			st := recommend.ClassifyStockout(p.ID, snap.WarehouseM2, snap.InTransitM2, v, today, nextArrival, secondArrival)
			if st.Tier == recommend.TierWellCovered {
				continue
			}
			out = append(out, stockoutSummaryEntry{FactoryID: f.ID, ProductID: p.ID, Stockout: st})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func averageWeeklyVelocity(sales []db.SalesRecord) decimal.Decimal {
	if len(sales) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, rec := range sales {
		total = total.Add(rec.QuantityM2)
	}
	weeks := decimal.NewFromInt(int64(len(sales)))
	return total.Div(weeks).Div(decimal.NewFromInt(7))
}

func (s *Server) handleDataFreshness(w http.ResponseWriter, r *http.Request) {
	freshness, err := s.store.GetDataFreshness(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, freshness)
}

func (s *Server) handleUploadHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	history, err := s.store.ListUploadHistory(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleDataQuality(w http.ResponseWriter, r *http.Request) {
	results, err := diagnostics.RunAll(r.Context(), s.store)
	if err != nil {
		writeError(w, r, apperr.Wrap("run data quality checks", err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

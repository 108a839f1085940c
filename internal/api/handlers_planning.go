package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/xlsxexport"
)

func (s *Server) handleListFactories(w http.ResponseWriter, r *http.Request) {
	factories, err := s.store.ListActiveFactories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factories)
}

func (s *Server) handleListActiveFactories(w http.ResponseWriter, r *http.Request) {
	s.handleListFactories(w, r)
}

func (s *Server) handleGetFactory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	factory, err := s.store.GetFactory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factory)
}

func monthsParam(r *http.Request) int {
	months := 3
	if raw := r.URL.Query().Get("months"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			months = parsed
		}
	}
	if months < 1 {
		months = 1
	}
	if months > 12 {
		months = 12
	}
	return months
}

func (s *Server) handleHorizon(w http.ResponseWriter, r *http.Request) {
	factoryID := mux.Vars(r)["factory_id"]
	horizon, err := s.core.PlanningHorizon(r.Context(), factoryID, monthsParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, horizon)
}

func (s *Server) handleHorizonDefault(w http.ResponseWriter, r *http.Request) {
	factories, err := s.store.ListActiveFactories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(factories) == 0 {
		writeError(w, r, apperr.NotFound("no active factory configured"))
		return
	}
	horizon, err := s.core.PlanningHorizon(r.Context(), factories[0].ID, monthsParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, horizon)
}

func (s *Server) handleOrderBuilder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	boatID := q.Get("boat_id")
	if boatID == "" {
		writeError(w, r, apperr.Validation("boat_id is required"))
		return
	}

	numBLs := 1
	if raw := q.Get("num_bls"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			numBLs = parsed
		}
	}

	excluded := map[string]bool{}
	for _, sku := range q["excluded_skus"] {
		excluded[sku] = true
	}

	boat, err := s.store.GetBoat(r.Context(), boatID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	factories, err := s.store.ListActiveFactories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	factoryID := q.Get("factory_id")
	if factoryID == "" && len(factories) > 0 {
		factoryID = factories[0].ID
	}

	plan, err := s.core.OrderBuilder(r.Context(), factoryID, boat.ID, numBLs, excluded)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// exportRequest is the body of POST /order-builder/export.
type exportRequest struct {
	Products []struct {
		SKU     string `json:"sku"`
		Pallets int    `json:"pallets"`
	} `json:"products"`
	BoatDeparture time.Time `json:"boat_departure"`
}

func (s *Server) handleOrderBuilderExport(w http.ResponseWriter, r *http.Request) {
	var body exportRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, apperr.Validation("invalid request body: "+err.Error()))
		return
	}

	lines := make([]xlsxexport.Line, 0, len(body.Products))
	for _, p := range body.Products {
		m2 := decimalFromPallets(p.Pallets)
		lines = append(lines, xlsxexport.Line{SKU: p.SKU, M2: m2, Pallets: p.Pallets})
	}

	data, err := xlsxexport.Build(lines, time.Now(), body.BoatDeparture)
	if err != nil {
		writeError(w, r, apperr.Internal("build factory order workbook", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="pedido-tarragona.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

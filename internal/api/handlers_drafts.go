package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/db"
	"github.com/pinggolf/tile-supply-planner/internal/services"
)

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	factoryID := mux.Vars(r)["factory_id"]
	drafts, err := s.store.ListDraftsByFactory(r.Context(), factoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

type upsertDraftRequest struct {
	BoatID     string        `json:"boat_id"`
	FactoryID  string        `json:"factory_id"`
	State      db.DraftState `json:"state"`
	ModifiedBy string        `json:"modified_by"`
	Items      []struct {
		ProductID       string `json:"product_id"`
		SelectedPallets int    `json:"selected_pallets"`
		BLNumber        *int32 `json:"bl_number,omitempty"`
	} `json:"items"`
}

func (s *Server) handleUpsertDraft(w http.ResponseWriter, r *http.Request) {
	var body upsertDraftRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, apperr.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.BoatID == "" || body.FactoryID == "" {
		writeError(w, r, apperr.Validation("boat_id and factory_id are required"))
		return
	}

	items := make([]db.DraftItem, 0, len(body.Items))
	for _, it := range body.Items {
		item := db.DraftItem{ProductID: it.ProductID, SelectedPallets: it.SelectedPallets}
		if it.BLNumber != nil {
			item.BLNumber.Int32 = *it.BLNumber
			item.BLNumber.Valid = true
		}
		items = append(items, item)
	}

	id, err := s.store.UpsertDraft(r.Context(), db.UpsertDraftParams{
		BoatID:    body.BoatID,
		FactoryID: body.FactoryID,
		State:     body.State,
		Items:     items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), services.AuditParams{
		EntityType: "draft",
		EntityID:   id,
		Operation:  "upsert",
		UserID:     body.ModifiedBy,
		Metadata:   map[string]interface{}{"boat_id": body.BoatID, "factory_id": body.FactoryID, "item_count": len(items)},
	})
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type transitionDraftRequest struct {
	To         db.DraftState `json:"to"`
	ModifiedBy string        `json:"modified_by"`
}

func (s *Server) handleTransitionDraft(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body transitionDraftRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, apperr.Validation("invalid request body: "+err.Error()))
		return
	}
	if err := s.store.TransitionDraft(r.Context(), id, body.To); err != nil {
		writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), services.AuditParams{
		EntityType: "draft", EntityID: id, Operation: "transition", UserID: body.ModifiedBy,
		Metadata: map[string]interface{}{"to": string(body.To)},
	})
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "state": string(body.To)})
}

func (s *Server) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.CancelDraft(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), services.AuditParams{
		EntityType: "draft", EntityID: id, Operation: "cancel", UserID: r.URL.Query().Get("modified_by"),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePendingWarehouseOrders(w http.ResponseWriter, r *http.Request) {
	factoryID := mux.Vars(r)["factory_id"]
	pending, err := s.store.GetPendingBySKU(r.Context(), factoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

type createWarehouseOrderRequest struct {
	db.WarehouseOrder
	ModifiedBy string `json:"modified_by"`
}

func (s *Server) handleCreateWarehouseOrder(w http.ResponseWriter, r *http.Request) {
	var body createWarehouseOrderRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, apperr.Validation("invalid request body: "+err.Error()))
		return
	}
	id, err := s.store.CreateWarehouseOrder(r.Context(), body.WarehouseOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), services.AuditParams{
		EntityType: "warehouse_order", EntityID: id, Operation: "create", UserID: body.ModifiedBy,
		Metadata: map[string]interface{}{"boat_id": body.BoatID, "total_pallets": body.TotalPallets},
	})
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type updateWarehouseOrderStatusRequest struct {
	To         db.WarehouseOrderStatus `json:"to"`
	ModifiedBy string                  `json:"modified_by"`
}

func (s *Server) handleUpdateWarehouseOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body updateWarehouseOrderStatusRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, apperr.Validation("invalid request body: "+err.Error()))
		return
	}
	if err := s.store.UpdateWarehouseOrderStatus(r.Context(), id, body.To); err != nil {
		writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), services.AuditParams{
		EntityType: "warehouse_order", EntityID: id, Operation: "status_update", UserID: body.ModifiedBy,
		Metadata: map[string]interface{}{"to": string(body.To)},
	})
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(body.To)})
}

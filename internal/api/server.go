// Package api exposes the planning core over HTTP, in the shape given
// by the external-interfaces table: factory lookups, the planning
// horizon, the order builder and its XLSX export, trend intelligence,
// and operational endpoints (pipeline, dashboard, data freshness,
// diagnostics).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/config"
	"github.com/pinggolf/tile-supply-planner/internal/core"
	"github.com/pinggolf/tile-supply-planner/internal/db"
	"github.com/pinggolf/tile-supply-planner/internal/queue"
	"github.com/pinggolf/tile-supply-planner/internal/services"
)

// Server wires the planning core, reference-data store, and job queue
// into the HTTP surface. One Server is constructed per process.
type Server struct {
	config   *config.Config
	store    *db.Store
	core     *core.Core
	queue    *queue.Manager
	audit    *services.AuditService
	settings *services.SettingsService
	router   *mux.Router
}

// NewServer builds a Server with routes already registered.
func NewServer(cfg *config.Config, store *db.Store, c *core.Core, q *queue.Manager) *Server {
	audit := services.NewAuditService(store)
	s := &Server{
		config:   cfg,
		store:    store,
		core:     c,
		queue:    q,
		audit:    audit,
		settings: services.NewSettingsService(store, audit),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router returns the configured HTTP handler, wrapped with CORS and the
// correlation-id middleware.
func (s *Server) Router() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.config.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: s.config.CORSAllowCredentials,
		MaxAge:           300,
	})
	return c.Handler(requestIDMiddleware(s.router))
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	api.HandleFunc("/factories", s.handleListFactories).Methods("GET")
	api.HandleFunc("/factories/active", s.handleListActiveFactories).Methods("GET")
	api.HandleFunc("/factories/{id}", s.handleGetFactory).Methods("GET")

	api.HandleFunc("/forward-simulation/horizon", s.handleHorizonDefault).Methods("GET")
	api.HandleFunc("/forward-simulation/horizon/{factory_id}", s.handleHorizon).Methods("GET")

	api.HandleFunc("/order-builder", s.handleOrderBuilder).Methods("GET")
	api.HandleFunc("/order-builder/export", s.handleOrderBuilderExport).Methods("POST")

	api.HandleFunc("/intelligence/products", s.handleIntelligenceProducts).Methods("GET")
	api.HandleFunc("/intelligence/customers", s.handleIntelligenceCustomers).Methods("GET")
	api.HandleFunc("/intelligence/countries", s.handleIntelligenceCountries).Methods("GET")
	api.HandleFunc("/intelligence/dashboard", s.handleIntelligenceDashboard).Methods("GET")

	api.HandleFunc("/pipeline/overview", s.handlePipelineOverview).Methods("GET")

	api.HandleFunc("/dashboard/stockouts", s.handleDashboardStockouts).Methods("GET")

	api.HandleFunc("/data-freshness", s.handleDataFreshness).Methods("GET")
	api.HandleFunc("/data-freshness/upload-history", s.handleUploadHistory).Methods("GET")

	api.HandleFunc("/diagnostics/data-quality", s.handleDataQuality).Methods("GET")

	api.HandleFunc("/drafts/{factory_id}", s.handleListDrafts).Methods("GET")
	api.HandleFunc("/drafts", s.handleUpsertDraft).Methods("POST")
	api.HandleFunc("/drafts/{id}/transition", s.handleTransitionDraft).Methods("POST")
	api.HandleFunc("/drafts/{id}", s.handleCancelDraft).Methods("DELETE")

	api.HandleFunc("/warehouse-orders/pending/{factory_id}", s.handlePendingWarehouseOrders).Methods("GET")
	api.HandleFunc("/warehouse-orders", s.handleCreateWarehouseOrder).Methods("POST")
	api.HandleFunc("/warehouse-orders/{id}/status", s.handleUpdateWarehouseOrderStatus).Methods("POST")

	api.HandleFunc("/audit-logs", s.handleListAuditLogs).Methods("GET")

	api.HandleFunc("/settings/user/{user_id}", s.handleGetUserSettings).Methods("GET")
	api.HandleFunc("/settings/user", s.handleUpsertUserSettings).Methods("PUT")
	api.HandleFunc("/settings/system", s.handleGetSystemSettings).Methods("GET")
	api.HandleFunc("/settings/system", s.handleUpdateSystemSetting).Methods("PUT")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorResponse is the closed `{ error: { code, message, details? } }`
// shape every non-2xx response uses (spec §6.1, §7).
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// writeError classifies err via apperr and writes the mapped status and
// body, logging the correlation ID the middleware attached to ctx.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.As(err)
	logBoundaryError(r, ae)
	writeJSON(w, apperr.HTTPStatus(ae.Kind), errorResponse{
		Error: errorBody{
			Code:    string(ae.Kind),
			Message: ae.Message,
		},
	})
}

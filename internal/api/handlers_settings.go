package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/db"
)

func (s *Server) handleGetUserSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	settings, err := s.settings.GetUserSettings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type upsertUserSettingsRequest struct {
	UserID     string `json:"user_id"`
	ModifiedBy string `json:"modified_by"`
	db.UpsertUserSettingsParams
}

func (s *Server) handleUpsertUserSettings(w http.ResponseWriter, r *http.Request) {
	var body upsertUserSettingsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, apperr.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.UserID == "" {
		writeError(w, r, apperr.Validation("user_id is required"))
		return
	}
	modifiedBy := body.ModifiedBy
	if modifiedBy == "" {
		modifiedBy = body.UserID
	}
	if err := s.settings.UpdateUserSettings(r.Context(), body.UserID, body.UpsertUserSettingsParams, modifiedBy); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": body.UserID})
}

func (s *Server) handleGetSystemSettings(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	var (
		settings []db.SystemSetting
		err      error
	)
	if category != "" {
		settings, err = s.store.GetSystemSettingsByCategory(r.Context(), category)
	} else {
		settings, err = s.settings.GetSystemSettings(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type updateSystemSettingsRequest struct {
	Updates    map[string]string `json:"updates"`
	ModifiedBy string            `json:"modified_by"`
}

func (s *Server) handleUpdateSystemSetting(w http.ResponseWriter, r *http.Request) {
	var body updateSystemSettingsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, apperr.Validation("invalid request body: "+err.Error()))
		return
	}
	if len(body.Updates) == 0 {
		writeError(w, r, apperr.Validation("updates is required"))
		return
	}
	if err := s.settings.UpdateSystemSettings(r.Context(), body.Updates, body.ModifiedBy); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(body.Updates)})
}

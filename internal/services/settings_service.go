package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// SettingsService manages user and system settings, including the
// runtime-overridable constants enumerated in spec §6.4.
type SettingsService struct {
	store        *db.Store
	auditService *AuditService
}

func NewSettingsService(store *db.Store, auditService *AuditService) *SettingsService {
	return &SettingsService{store: store, auditService: auditService}
}

// GetUserSettings retrieves user settings, returning empty settings if none exist.
func (s *SettingsService) GetUserSettings(ctx context.Context, userID string) (*db.UserSettings, error) {
	settings, err := s.store.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &db.UserSettings{UserID: userID}
	}
	return settings, nil
}

// UpdateUserSettings updates user settings and logs the change.
func (s *SettingsService) UpdateUserSettings(
	ctx context.Context,
	userID string,
	params db.UpsertUserSettingsParams,
	modifiedBy string,
) error {
	params.UserID = userID
	if err := s.store.UpsertUserSettings(ctx, params); err != nil {
		return err
	}
	return s.auditService.Log(ctx, AuditParams{
		EntityType: "user_settings",
		EntityID:   userID,
		Operation:  "update",
		UserID:     modifiedBy,
		Metadata:   map[string]interface{}{"settings_updated": true},
	})
}

// GetSystemSettings retrieves all system settings. These back the
// environment-provided configuration knobs listed in spec §6.4
// (lead_time_days, safety_stock_z_score, container arithmetic, warehouse
// capacity, stockout thresholds, velocity windows, production buffer).
func (s *SettingsService) GetSystemSettings(ctx context.Context) ([]db.SystemSetting, error) {
	return s.store.GetSystemSettings(ctx)
}

// UpdateSystemSettings updates multiple system settings (admin only) and
// clears the factory unit-config cache, since several of these knobs
// (container/m2-per-pallet, lead times surfaced via factory overrides)
// feed that cache.
func (s *SettingsService) UpdateSystemSettings(
	ctx context.Context,
	updates map[string]string,
	modifiedBy string,
) error {
	for key, value := range updates {
		if err := s.store.UpdateSystemSetting(ctx, db.UpdateSystemSettingParams{
			SettingKey:     key,
			SettingValue:   value,
			LastModifiedBy: modifiedBy,
		}); err != nil {
			return fmt.Errorf("failed to update setting %s: %w", key, err)
		}
	}

	s.store.ClearUnitConfigCache()

	return s.auditService.Log(ctx, AuditParams{
		EntityType: "system_settings",
		Operation:  "bulk_update",
		UserID:     modifiedBy,
		Metadata: map[string]interface{}{
			"settings_count": len(updates),
			"settings_keys":  getKeys(updates),
		},
	})
}

func getKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// ParseSettingValue parses a system setting value based on its type.
func ParseSettingValue(setting db.SystemSetting) (interface{}, error) {
	switch setting.SettingType {
	case "string":
		return setting.SettingValue, nil
	case "integer":
		return strconv.ParseInt(setting.SettingValue, 10, 64)
	case "float":
		return strconv.ParseFloat(setting.SettingValue, 64)
	case "boolean":
		return strconv.ParseBool(setting.SettingValue)
	case "json":
		var result interface{}
		if err := json.Unmarshal([]byte(setting.SettingValue), &result); err != nil {
			return nil, err
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unknown setting type: %s", setting.SettingType)
	}
}

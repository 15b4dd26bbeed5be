package handlers

import (
	"net/http"
	"time"

	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/config"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/storage/models"
)

// SettingsRequest is the body of PUT /api/settings. Empty fields keep their
// current value.
type SettingsRequest struct {
	Timezone  string `json:"timezone"`
	WeekStart string `json:"week_start"`
}

// effectiveSettings returns the caller's saved settings, falling back to the
// server defaults for anything unset.
func effectiveSettings(r *http.Request, store *storage.Store, cfg *config.Config, userID string) *models.UserSettings {
	settings := &models.UserSettings{
		UserID:    userID,
		Timezone:  cfg.Timezone,
		WeekStart: cfg.WeekStart,
	}
	if userID == "" {
		return settings
	}

	saved, err := store.Settings.Get(r.Context(), userID)
	if err != nil {
		return settings
	}
	if saved != nil {
		if saved.Timezone != "" {
			settings.Timezone = saved.Timezone
		}
		if saved.WeekStart != "" {
			settings.WeekStart = saved.WeekStart
		}
		settings.UpdatedAt = saved.UpdatedAt
	}
	return settings
}

// GetSettings returns the caller's calendar preferences.
func GetSettings(store *storage.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		writeJSON(w, http.StatusOK, effectiveSettings(r, store, cfg, userID))
	}
}

// UpdateSettings stores the caller's calendar preferences.
func UpdateSettings(store *storage.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		var req SettingsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		settings := effectiveSettings(r, store, cfg, userID)
		if req.Timezone != "" {
			if _, err := time.LoadLocation(req.Timezone); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown timezone")
				return
			}
			settings.Timezone = req.Timezone
		}
		if req.WeekStart != "" {
			if !config.ValidWeekStart(req.WeekStart) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "week_start must be monday or sunday")
				return
			}
			settings.WeekStart = req.WeekStart
		}

		if err := store.Settings.Save(r.Context(), settings); err != nil {
			writeStoreError(w, err, "update settings")
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}

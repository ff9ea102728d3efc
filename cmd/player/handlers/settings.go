package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/retroplay/backend/internal/db"
	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/export"
	"github.com/retroplay/backend/internal/models"
)

// SettingsHandler exposes the settings singleton and its export/import.
type SettingsHandler struct {
	repo     *db.Repository
	exporter *export.Service
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(repo *db.Repository, exporter *export.Service) *SettingsHandler {
	return &SettingsHandler{repo: repo, exporter: exporter}
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.GetSettings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Update handles PATCH /api/settings with a partial body; absent fields are
// left untouched.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "malformed settings patch", err))
		return
	}

	settings, err := h.repo.UpdateSettings(&patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Reset handles POST /api/settings/reset
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.ResetSettings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Export handles GET /api/settings/export as a downloadable JSON archive.
func (h *SettingsHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="retroplay-settings.json"`)
	if err := h.exporter.Export(w); err != nil {
		writeError(w, err)
	}
}

// Import handles POST /api/settings/import with an archive body.
func (h *SettingsHandler) Import(w http.ResponseWriter, r *http.Request) {
	settings, err := h.exporter.Import(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

package handlers

import (
	"net/http"

	"github.com/retroplay/backend/internal/catalog"
	apperrors "github.com/retroplay/backend/internal/errors"
)

// GamesHandler serves the game catalog. The catalog is read-only reference
// data; stored records are never validated against it.
type GamesHandler struct {
	provider catalog.Provider
}

// NewGamesHandler creates a new GamesHandler.
func NewGamesHandler(provider catalog.Provider) *GamesHandler {
	return &GamesHandler{provider: provider}
}

// List handles GET /api/games
func (h *GamesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": h.provider.Games()})
}

// Get handles GET /api/games/{game}
func (h *GamesHandler) Get(w http.ResponseWriter, r *http.Request) {
	game := h.provider.Game(r.PathValue("game"))
	if game == nil {
		writeError(w, apperrors.New(apperrors.ErrNotFound, "game not in catalog"))
		return
	}
	writeJSON(w, http.StatusOK, game)
}

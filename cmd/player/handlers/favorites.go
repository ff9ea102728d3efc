package handlers

import (
	"net/http"

	"github.com/retroplay/backend/internal/db"
)

// FavoritesHandler exposes favorite toggling and listing.
type FavoritesHandler struct {
	repo *db.Repository
}

// NewFavoritesHandler creates a new FavoritesHandler.
func NewFavoritesHandler(repo *db.Repository) *FavoritesHandler {
	return &FavoritesHandler{repo: repo}
}

// Toggle handles POST /api/games/{game}/favorite
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	favorite, err := h.repo.ToggleFavorite(r.PathValue("game"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorite": favorite})
}

// Get handles GET /api/games/{game}/favorite
func (h *FavoritesHandler) Get(w http.ResponseWriter, r *http.Request) {
	favorite, err := h.repo.IsFavorite(r.PathValue("game"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorite": favorite})
}

// List handles GET /api/favorites
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.repo.ListFavorites()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
}

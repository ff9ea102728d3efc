package handlers

import (
	"net/http"
	"strconv"

	"github.com/retroplay/backend/internal/db"
)

// SessionsHandler exposes play-session tracking and recent-play history.
type SessionsHandler struct {
	repo *db.Repository
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(repo *db.Repository) *SessionsHandler {
	return &SessionsHandler{repo: repo}
}

// Start handles POST /api/games/{game}/sessions
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	session, err := h.repo.StartPlaySession(r.PathValue("game"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// End handles POST /api/sessions/{id}/end
//
// Ending an unknown session is a no-op success, so a navigation race on the
// UI side never surfaces as an error.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.EndPlaySession(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ended": true})
}

// List handles GET /api/games/{game}/sessions
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListPlaySessions(r.PathValue("game"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// Recent handles GET /api/recent?limit=N
func (h *SessionsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	games, err := h.repo.GetRecentlyPlayedGames(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if games == nil {
		games = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

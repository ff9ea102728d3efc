package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/screenshots"
	"github.com/retroplay/backend/internal/slots"
)

// SavesHandler exposes the save-slot protocol.
type SavesHandler struct {
	manager *slots.Manager
}

// NewSavesHandler creates a new SavesHandler.
func NewSavesHandler(manager *slots.Manager) *SavesHandler {
	return &SavesHandler{manager: manager}
}

// saveRequest is the save body. Data and Screenshot are base64 in JSON.
// Confirm acknowledges an overwrite of an occupied slot.
type saveRequest struct {
	Data       []byte `json:"data"`
	Screenshot []byte `json:"screenshot,omitempty"`
	Confirm    bool   `json:"confirm,omitempty"`
}

// Slots handles GET /api/games/{game}/slots
func (h *SavesHandler) Slots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.manager.Slots(r.PathValue("game"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": infos})
}

// Save handles POST /api/games/{game}/slots/{slot}
//
// Saving into an occupied slot without confirm leaves the store untouched
// and answers 409; the client retries with confirm set after the user
// acknowledges the overwrite.
func (h *SavesHandler) Save(w http.ResponseWriter, r *http.Request) {
	gameID, slot, ok := h.slotParams(w, r)
	if !ok {
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "malformed save request", err))
		return
	}

	outcome, err := h.manager.Save(gameID, slot, req.Data, req.Screenshot)
	if err != nil {
		writeError(w, err)
		return
	}

	if outcome.Written {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": outcome.ID, "overwritten": false})
		return
	}

	if !req.Confirm {
		outcome.Pending.Cancel()
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"confirm_required": true,
			"slot":             slot,
		})
		return
	}

	id, err := outcome.Pending.Confirm()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "overwritten": true})
}

// Load handles GET /api/games/{game}/slots/{slot}
func (h *SavesHandler) Load(w http.ResponseWriter, r *http.Request) {
	gameID, slot, ok := h.slotParams(w, r)
	if !ok {
		return
	}

	data, err := h.manager.Load(gameID, slot)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Delete handles DELETE /api/games/{game}/slots/{slot}?confirm=true
//
// Deletion always requires confirmation; without it the store is untouched.
func (h *SavesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	gameID, slot, ok := h.slotParams(w, r)
	if !ok {
		return
	}

	pending, err := h.manager.Delete(gameID, slot)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		pending.Cancel()
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"confirm_required": true,
			"slot":             slot,
		})
		return
	}

	if err := pending.Confirm(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// Screenshot handles GET /api/games/{game}/slots/{slot}/screenshot?thumb=1
func (h *SavesHandler) Screenshot(w http.ResponseWriter, r *http.Request) {
	gameID, slot, ok := h.slotParams(w, r)
	if !ok {
		return
	}

	blob, err := h.manager.Screenshot(gameID, slot)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(blob) == 0 {
		writeError(w, apperrors.New(apperrors.ErrNotFound, "save has no screenshot"))
		return
	}

	if r.URL.Query().Get("thumb") == "1" {
		thumb, err := screenshots.Thumbnail(blob, screenshots.DefaultThumbWidth, screenshots.DefaultThumbHeight)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(thumb)
		return
	}

	info, err := screenshots.Inspect(blob)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", info.MIMEType)
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

func (h *SavesHandler) slotParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	gameID := r.PathValue("game")
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "slot must be an integer", err))
		return "", 0, false
	}
	return gameID, slot, true
}
